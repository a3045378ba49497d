// Package control implements the Control (C5): the user-facing handle that
// reads state, writes desired state, awaits state transitions, and forwards
// ad-hoc commands. Any number of Control handles may coexist; none of them
// mutate modem state directly — the Runner is the sole mutator, per spec
// §4.5 and §9's "message passing, not shared mutable state" design note.
package control

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/go-ublox/cellular/atc"
	"github.com/go-ublox/cellular/internal/atcmd"
	"github.com/go-ublox/cellular/state"
	"github.com/go-ublox/cellular/urc"
)

// Control is a thin handle over the shared StateCell and AT Client.
type Control struct {
	cell      *state.Cell
	client    *atc.Client
	secondary *urc.Channel
}

// New creates a Control handle. secondary is optional; pass nil if
// SecondaryEvents is not needed.
func New(cell *state.Cell, client *atc.Client, secondary *urc.Channel) *Control {
	return &Control{cell: cell, client: client, secondary: secondary}
}

// LinkState returns a non-blocking snapshot of the PPP link state.
func (c *Control) LinkState() state.LinkState { return c.cell.Link() }

// OperationState returns a non-blocking snapshot of the actual operation
// state.
func (c *Control) OperationState() state.OperationState { return c.cell.Current() }

// DesiredState returns a non-blocking snapshot of the desired operation
// state.
func (c *Control) DesiredState() state.OperationState { return c.cell.Desired() }

// SetDesiredState writes the desired field and wakes the Runner. Last
// writer wins across concurrent Control handles — acceptable per spec §4.5
// because desired state is an intent, not a command.
func (c *Control) SetDesiredState(s state.OperationState) { c.cell.SetDesired(s) }

// WaitForOperationState suspends until OperationState() == s or ctx is
// done.
func (c *Control) WaitForOperationState(ctx context.Context, s state.OperationState) error {
	return c.cell.WaitForCurrent(ctx, s)
}

// WaitForDesiredState suspends until DesiredState() == s or ctx is done.
func (c *Control) WaitForDesiredState(ctx context.Context, s state.OperationState) error {
	return c.cell.WaitForDesired(ctx, s)
}

// Send forwards cmd to the AT Client. Strictly optional and advisory: the
// Runner does not guarantee invariants across caller-issued commands (spec
// §4.5).
func (c *Control) Send(ctx context.Context, cmd atc.Command) (atc.Response, error) {
	return c.client.Send(ctx, cmd)
}

// SecondaryEvents subscribes to URCs the Runner doesn't act on directly
// (+UUSOCL, +UUSORD, +UMWI, +UUPSDA, vendor), per spec §4.4.3, plus
// +UUPSDD, which the Runner acts on and then forwards. Callers must Close
// the returned subscription when done.
func (c *Control) SecondaryEvents() (*urc.Subscription, error) {
	if c.secondary == nil {
		return nil, errors.New("control: no secondary event channel configured")
	}
	return c.secondary.Subscribe()
}

// Info runs the identity-query sweep (AT+CGMI/+CGMM/+CGMR/+CGSN/+CIMI/+CCID),
// the ADDED feature supplementing spec §6's wire protocol with a
// control-surface operation (original_source's command/general/mod.rs).
func (c *Control) Info(ctx context.Context) (atcmd.DeviceInfo, error) {
	var info atcmd.DeviceInfo
	queries := []struct {
		cmd string
		dst *string
	}{
		{"+CGMI", &info.Manufacturer},
		{"+CGMM", &info.Model},
		{"+CGMR", &info.Revision},
		{"+CGSN", &info.IMEI},
		{"+CIMI", &info.IMSI},
		{"+CCID", &info.ICCID},
	}
	for _, q := range queries {
		resp, err := c.client.Send(ctx, atc.Command{Line: q.cmd})
		if err != nil {
			return atcmd.DeviceInfo{}, errors.Wrapf(err, "query %s", q.cmd)
		}
		val, ok := atcmd.TrimLinePrefix(resp.Lines, q.cmd+":")
		if !ok {
			val, ok = atcmd.PlainLine(resp.Lines)
		}
		if !ok {
			return atcmd.DeviceInfo{}, errors.Errorf("control: empty response to %s", q.cmd)
		}
		*q.dst = val
	}
	return info, nil
}

// Operator queries the current operator selection via AT+COPS?.
func (c *Control) Operator(ctx context.Context) (atcmd.OperatorStatus, error) {
	resp, err := c.client.Send(ctx, atc.Command{Line: "+COPS?", Timeout: 10 * time.Second})
	if err != nil {
		return atcmd.OperatorStatus{}, err
	}
	return atcmd.ParseCOPS(resp.Lines)
}

// SetOperatorMode sets the AT+COPS selection mode (0=automatic,
// 1=manual, 2=deregister, ...). The 180s timeout matches spec §4.3's
// COPS-specific command attribute.
func (c *Control) SetOperatorMode(ctx context.Context, mode int) error {
	_, err := c.client.Send(ctx, atc.Command{Line: fmt.Sprintf("+COPS=%d", mode), Timeout: 180 * time.Second})
	return err
}

// ResolveHost resolves host to an IP address via AT+UDNSRN, the DNS
// resolution ADDED feature (original_source's command/dns/mod.rs). Listed
// in spec §6's wire protocol but never given a control-surface operation
// there — Control is the natural home.
func (c *Control) ResolveHost(ctx context.Context, host string) (net.IP, error) {
	resp, err := c.client.Send(ctx, atc.Command{Line: fmt.Sprintf("+UDNSRN=0,%q", host), Timeout: 70 * time.Second})
	if err != nil {
		return nil, err
	}
	ipStr, err := atcmd.ParseUDNSRN(resp.Lines)
	if err != nil {
		return nil, err
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil, errors.Errorf("control: invalid resolved address %q", ipStr)
	}
	return ip, nil
}
