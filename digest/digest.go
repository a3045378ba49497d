// Package digest implements the byte-level scanner that demarcates AT
// responses and unsolicited result codes (URCs) out of the raw byte stream
// read from a u-blox modem's UART.
//
// Digest is a pure, restartable function: given the unread prefix of the
// ingress ring buffer, it identifies the next complete frame and classifies
// it. It never blocks and it never fails — malformed input is discarded,
// never reported as an error. It holds no state of its own; the Ingress (not
// Digest) tracks whether a response is currently Pending, so a line can be
// recognized as a URC even while interleaved inside a response window.
package digest

import "bytes"

// Kind classifies the frame Digest has recognized.
type Kind int

const (
	// Incomplete means no frame was recognized. Either the prefix does not
	// yet contain a full frame (no bytes consumed), or the consumed bytes
	// were a blank line or a discarded malformed line.
	Incomplete Kind = iota
	// Prompt is a write-data prompt ("> " or "@") that requires the AT
	// Client to stream a payload before the command can complete.
	Prompt
	// Info is a non-terminal, non-URC line: an echoed command or a plain
	// response body line. The Ingress accumulates Info frames into the
	// pending command's response body.
	Info
	// Response is a terminal status line (OK / ERROR / +CME ERROR / +CMS
	// ERROR) that closes the current command window.
	Response
	// Urc is a recognized-prefix unsolicited result code.
	Urc
	// Binary is an opaque payload block introduced by a length-declaring
	// command response header (+USORD:, +URDBLOCK:).
	Binary
)

func (k Kind) String() string {
	switch k {
	case Incomplete:
		return "Incomplete"
	case Prompt:
		return "Prompt"
	case Info:
		return "Info"
	case Response:
		return "Response"
	case Urc:
		return "Urc"
	case Binary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Outcome classifies a Response frame.
type Outcome int

const (
	// OutcomeOK indicates the command completed successfully.
	OutcomeOK Outcome = iota
	// OutcomeErr indicates the command failed; Code carries +CME/+CMS
	// error text, if any, or is empty for a bare ERROR.
	OutcomeErr
)

// URCKind names the recognized URC families.
type URCKind int

const (
	URCUnknown URCKind = iota
	URCCREG
	URCCGREG
	URCCEREG
	URCUUSORD
	URCUUPSDD
	URCUUPSDA
	URCUMWI
	URCUUSOCL
	URCVendor // any other recognized-but-unspecified +UU… line
)

func (k URCKind) String() string {
	switch k {
	case URCCREG:
		return "+CREG:"
	case URCCGREG:
		return "+CGREG:"
	case URCCEREG:
		return "+CEREG:"
	case URCUUSORD:
		return "+UUSORD:"
	case URCUUPSDD:
		return "+UUPSDD:"
	case URCUUPSDA:
		return "+UUPSDA:"
	case URCUMWI:
		return "+UMWI:"
	case URCUUSOCL:
		return "+UUSOCL:"
	case URCVendor:
		return "vendor"
	default:
		return "unknown"
	}
}

// Action is the result of one Digest call.
type Action struct {
	Kind    Kind
	Outcome Outcome
	Code    string  // error code text, for Response/OutcomeErr
	ErrKind string  // "CME", "CMS", or "" for a bare ERROR
	URC     URCKind // for Kind == Urc
	Body    []byte  // line content (Info), URC payload (Urc), or raw payload (Binary)
	Header  []byte  // the declaring header line, for Kind == Binary
}

// MaxLineLookahead bounds how far Digest will scan for a line terminator
// before deciding a line is malformed and discarding it.
const MaxLineLookahead = 2048

var urcPrefixes = []struct {
	prefix []byte
	kind   URCKind
}{
	{[]byte("+CREG:"), URCCREG},
	{[]byte("+CGREG:"), URCCGREG},
	{[]byte("+CEREG:"), URCCEREG},
	{[]byte("+UUSORD:"), URCUUSORD},
	{[]byte("+UUPSDD:"), URCUUPSDD},
	{[]byte("+UUPSDA:"), URCUUPSDA},
	{[]byte("+UMWI:"), URCUMWI},
	{[]byte("+UUSOCL:"), URCUUSOCL},
}

var binaryHeaders = [][]byte{
	[]byte("+USORD:"),
	[]byte("+URDBLOCK:"),
}

// Digest scans buf, the unread prefix of the ingress buffer, and returns the
// number of bytes consumed and the action recognized from them. hexMode
// indicates whether socket payload bytes are framed as pairs of ASCII hex
// digits (doubling the declared byte count for Binary frames).
func Digest(buf []byte, hexMode bool) (consumed int, action Action) {
	if len(buf) == 0 {
		return 0, Action{Kind: Incomplete}
	}
	if k, n, ok := matchPrompt(buf); ok {
		return n, Action{Kind: k}
	}

	idx := bytes.Index(buf, crlf)
	if idx == -1 {
		return 0, Action{Kind: Incomplete}
	}
	if idx > MaxLineLookahead {
		// No terminator within the bound: the line is malformed. Discard the
		// whole span up to and including the first terminator, emitting
		// nothing.
		return idx + 2, Action{Kind: Incomplete}
	}
	line := buf[:idx]
	lineEnd := idx + 2

	if len(line) == 0 {
		// Blank line (bare CRLF) between frames; consume and report nothing.
		return lineEnd, Action{Kind: Incomplete}
	}

	if kind, ok := matchURCPrefix(line); ok {
		return lineEnd, Action{Kind: Urc, URC: kind, Body: dup(line)}
	}

	if hdr, ok := matchBinaryHeader(line); ok {
		n, ok := parseDeclaredLength(line)
		if !ok {
			return lineEnd, Action{Kind: Info, Body: dup(line)}
		}
		payloadLen := n
		if hexMode {
			payloadLen = n * 2
		}
		need := lineEnd + payloadLen + 2
		if len(buf) < need {
			return 0, Action{Kind: Incomplete}
		}
		payload := buf[lineEnd : lineEnd+payloadLen]
		if !bytes.Equal(buf[lineEnd+payloadLen:need], crlf) {
			// Malformed trailer; treat header as plain info and resync on
			// the next call from just past the header line.
			return lineEnd, Action{Kind: Info, Body: dup(line)}
		}
		return need, Action{Kind: Binary, Header: dup(hdr), Body: dup(payload)}
	}

	if outcome, kind, code, ok := matchTerminator(line); ok {
		return lineEnd, Action{Kind: Response, Outcome: outcome, ErrKind: kind, Code: code}
	}

	return lineEnd, Action{Kind: Info, Body: dup(line)}
}

var crlf = []byte("\r\n")

func matchPrompt(buf []byte) (Kind, int, bool) {
	switch buf[0] {
	case '@':
		return Prompt, 1, true
	case '>':
		if len(buf) < 2 {
			return 0, 0, false
		}
		if buf[1] == ' ' {
			return Prompt, 2, true
		}
	}
	return 0, 0, false
}

func matchURCPrefix(line []byte) (URCKind, bool) {
	for _, p := range urcPrefixes {
		if bytes.HasPrefix(line, p.prefix) {
			return p.kind, true
		}
	}
	if bytes.HasPrefix(line, []byte("+UU")) {
		return URCVendor, true
	}
	return URCUnknown, false
}

func matchBinaryHeader(line []byte) ([]byte, bool) {
	for _, h := range binaryHeaders {
		if bytes.HasPrefix(line, h) {
			return h, true
		}
	}
	return nil, false
}

// parseDeclaredLength extracts the last comma-separated integer field of a
// binary-payload header line, e.g. "+USORD: 0,5" -> 5.
func parseDeclaredLength(line []byte) (int, bool) {
	idx := bytes.LastIndexByte(line, ',')
	if idx == -1 {
		return 0, false
	}
	field := bytes.TrimSpace(line[idx+1:])
	if end := bytes.IndexByte(field, ','); end != -1 {
		field = field[:end]
	}
	n := 0
	if len(field) == 0 {
		return 0, false
	}
	for _, b := range field {
		if b < '0' || b > '9' {
			return 0, false
		}
		n = n*10 + int(b-'0')
	}
	return n, true
}

func matchTerminator(line []byte) (outcome Outcome, errKind, code string, ok bool) {
	switch {
	case bytes.Equal(line, []byte("OK")):
		return OutcomeOK, "", "", true
	case bytes.Equal(line, []byte("ERROR")), bytes.HasPrefix(line, []byte("ERROR")):
		return OutcomeErr, "", "", true
	case bytes.HasPrefix(line, []byte("+CME ERROR:")):
		return OutcomeErr, "CME", trimCode(line, len("+CME ERROR:")), true
	case bytes.HasPrefix(line, []byte("+CMS ERROR:")):
		return OutcomeErr, "CMS", trimCode(line, len("+CMS ERROR:")), true
	}
	return 0, "", "", false
}

func trimCode(line []byte, prefixLen int) string {
	return string(bytes.TrimSpace(line[prefixLen:]))
}

func dup(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
