// Package atcmd is the typed AT command/response catalogue for the wire
// protocol named in spec §6: the small set of parsers Control needs for
// the identity, operator, and DNS queries layered on top of the AT Client.
package atcmd

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"

	"github.com/go-ublox/cellular/atc"
)

// DeviceInfo is the result of the identity-query sweep: AT+CGMI, +CGMM,
// +CGMR, +CGSN, +CIMI, +CCID — grounded on the teacher's cmd/modeminfo
// sweep and info.HasPrefix/info.TrimPrefix helpers, generalized here from a
// single line to a multi-line AT response.
type DeviceInfo struct {
	Manufacturer string
	Model        string
	Revision     string
	IMEI         string
	IMSI         string
	ICCID        string
}

// TrimLinePrefix returns the text after prefix on the first line that
// carries it.
func TrimLinePrefix(lines [][]byte, prefix string) (string, bool) {
	p := []byte(prefix)
	for _, line := range lines {
		if bytes.HasPrefix(line, p) {
			return string(bytes.TrimSpace(line[len(p):])), true
		}
	}
	return "", false
}

// PlainLine returns the first non-empty line verbatim, for commands like
// +CGMI/+CGMM/+CGMR/+CGSN/+CIMI that reply with a bare value line rather
// than a "+CMD: value" line (+CCID replies with a "+CCID: value" line).
func PlainLine(lines [][]byte) (string, bool) {
	for _, line := range lines {
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			return string(trimmed), true
		}
	}
	return "", false
}

// OperatorStatus is the parsed result of AT+COPS?.
type OperatorStatus struct {
	Mode   int
	Format int
	Name   string
	AcT    int
}

// ParseCOPS parses a "+COPS: <mode>[,<format>,<oper>[,<AcT>]]" line.
func ParseCOPS(lines [][]byte) (OperatorStatus, error) {
	text, ok := TrimLinePrefix(lines, "+COPS:")
	if !ok {
		return OperatorStatus{}, &atc.ParseError{Line: joinLines(lines), Err: errors.New("no +COPS line in response")}
	}
	fields := splitFields(text)
	var st OperatorStatus
	if len(fields) > 0 {
		st.Mode, _ = strconv.Atoi(fields[0])
	}
	if len(fields) > 1 {
		st.Format, _ = strconv.Atoi(fields[1])
	}
	if len(fields) > 2 {
		st.Name = unquote(fields[2])
	}
	if len(fields) > 3 {
		st.AcT, _ = strconv.Atoi(fields[3])
	}
	return st, nil
}

// ParseUDNSRN parses a `+UDNSRN: "<ip>"` response.
func ParseUDNSRN(lines [][]byte) (string, error) {
	text, ok := TrimLinePrefix(lines, "+UDNSRN:")
	if !ok {
		return "", &atc.ParseError{Line: joinLines(lines), Err: errors.New("no +UDNSRN line in response")}
	}
	return unquote(text), nil
}

// MessageWaiting is the decoded +UMWI status pair.
type MessageWaiting struct {
	Mode  int
	Count int
}

// ParseUMWI decodes a "+UMWI: <mode>,<count>" URC payload — a plain status
// pair, not an SMS TPDU (see SPEC_FULL.md's dropped-dependency note on
// github.com/warthog618/sms).
func ParseUMWI(payload []byte) (MessageWaiting, bool) {
	text, ok := TrimLinePrefix([][]byte{payload}, "+UMWI:")
	if !ok {
		return MessageWaiting{}, false
	}
	fields := splitFields(text)
	if len(fields) < 2 {
		return MessageWaiting{}, false
	}
	mode, err1 := strconv.Atoi(fields[0])
	count, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		return MessageWaiting{}, false
	}
	return MessageWaiting{Mode: mode, Count: count}, true
}

func joinLines(lines [][]byte) string {
	return string(bytes.Join(lines, []byte("; ")))
}

func splitFields(s string) []string {
	parts := bytes.Split([]byte(s), []byte(","))
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(bytes.TrimSpace(p))
	}
	return out
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
