// Package atc implements the AT Client (C3): the TX side of the UART and
// the single response mailbox. Commands are serialized through a single
// worker goroutine — the same FIFO-ordering trick the teacher's
// at.AT.cmdLoop uses — so that at most one command is ever outstanding and
// concurrent callers are served in arrival order (spec §5's "mutex must be
// FIFO-fair").
package atc

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-ublox/cellular/digest"
	"github.com/go-ublox/cellular/gpio"
)

// PromptWaiter is satisfied by the Ingress: it signals SendWithPrompt once
// the digester frames a write-data prompt.
type PromptWaiter interface {
	// Next returns a channel that fires (once) the next time a prompt is
	// seen. Callers must call Next again for each prompt they want to wait
	// for; it is not a persistent subscription.
	Next() <-chan struct{}
}

// Client is the AT Client. Create one per Runner/UART with New, and share
// it with any number of Control handles — Send and SendWithPrompt are safe
// for concurrent use.
type Client struct {
	tx     gpio.UartTx
	slot   *Slot
	prompt PromptWaiter
	clock  gpio.Clock
	log    *slog.Logger

	reqCh  chan *request
	closed chan struct{}
}

type request struct {
	ctx      context.Context
	cmd      Command
	payload  []byte
	hasPromp bool
	resultCh chan sendResult
}

type sendResult struct {
	resp Response
	err  error
}

// New creates an AT Client. tx is the UART write half; slot is the single
// response mailbox shared with the Ingress; prompt signals write-data
// prompts; clock sources all timers.
func New(tx gpio.UartTx, slot *Slot, prompt PromptWaiter, clock gpio.Clock, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		tx:     tx,
		slot:   slot,
		prompt: prompt,
		clock:  clock,
		log:    log,
		reqCh:  make(chan *request),
		closed: make(chan struct{}),
	}
	go c.run()
	return c
}

// Close shuts the Client down; outstanding and future Send calls return
// ErrClosed.
func (c *Client) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

func (c *Client) run() {
	for {
		select {
		case req := <-c.reqCh:
			resp, err := c.process(req)
			req.resultCh <- sendResult{resp, err}
		case <-c.closed:
			return
		}
	}
}

// Send issues cmd and returns its result. At most one command is ever in
// flight; concurrent callers queue in FIFO order.
func (c *Client) Send(ctx context.Context, cmd Command) (Response, error) {
	return c.send(ctx, cmd, nil)
}

// SendWithPrompt issues cmd, awaits the modem's write-data prompt, writes
// payload, then awaits the final response — the two-step SMS/socket-write
// idiom of spec §4.3.
func (c *Client) SendWithPrompt(ctx context.Context, cmd Command, payload []byte) (Response, error) {
	return c.send(ctx, cmd, payload)
}

func (c *Client) send(ctx context.Context, cmd Command, payload []byte) (Response, error) {
	resultCh := make(chan sendResult, 1)
	req := &request{ctx: ctx, cmd: cmd, payload: payload, hasPromp: payload != nil, resultCh: resultCh}
	select {
	case c.reqCh <- req:
	case <-c.closed:
		return Response{}, ErrClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-c.closed:
		return Response{}, ErrClosed
	}
}

// SendRetry wraps Send with the retry policy of spec §4.3: on ErrTimeout,
// retry with exponential backoff 100ms*2^attempt capped at 2s, making at
// most cmd.Attempts (default DefaultAttempts) sends in total. A *ModemError
// is never retried.
func (c *Client) SendRetry(ctx context.Context, cmd Command) (Response, error) {
	var lastErr error
	for attempt := 0; attempt < cmd.attempts(); attempt++ {
		resp, err := c.Send(ctx, cmd)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if err != ErrTimeout {
			return Response{}, err
		}
		if attempt == cmd.attempts()-1 {
			break
		}
		backoff := 100 * time.Millisecond * (1 << uint(attempt))
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
		if sleepErr := c.clock.Sleep(ctx, backoff); sleepErr != nil {
			return Response{}, sleepErr
		}
	}
	return Response{}, lastErr
}

// process runs on the single worker goroutine: write the command, await the
// prompt (if any), write the payload, await the response slot, and map the
// result to a Response/error pair.
func (c *Client) process(req *request) (Response, error) {
	if err := req.ctx.Err(); err != nil {
		return Response{}, err
	}
	if err := c.slot.Begin(); err != nil {
		return Response{}, err
	}

	line := "AT" + req.cmd.Line + "\r\n"
	if req.hasPromp {
		line = "AT" + req.cmd.Line + "\r"
	}
	if _, err := c.tx.Write([]byte(line)); err != nil {
		c.slot.Reset()
		return Response{}, &TransportError{Err: err}
	}

	timeout := req.cmd.timeout()
	waitCtx, cancel := context.WithTimeout(req.ctx, timeout)
	defer cancel()

	if req.hasPromp {
		select {
		case <-c.prompt.Next():
		case <-waitCtx.Done():
			c.slot.Reset()
			return Response{}, c.timeoutOrCancel(req, waitCtx)
		}
		if _, err := c.tx.Write(append(append([]byte{}, req.payload...), 0x1a)); err != nil {
			c.slot.Reset()
			return Response{}, &TransportError{Err: err}
		}
	}

	result, err := c.slot.Take(waitCtx)
	if err != nil {
		c.slot.Reset()
		if req.cmd.Abortable {
			c.tx.Write([]byte{0x00})
		}
		return Response{}, c.timeoutOrCancel(req, waitCtx)
	}

	if result.Outcome == digest.OutcomeErr {
		if result.ErrKind != "" {
			return Response{}, &ModemError{Kind: result.ErrKind, Code: result.Code}
		}
		return Response{}, ErrError
	}
	return Response{Lines: result.Lines}, nil
}

func (c *Client) timeoutOrCancel(req *request, waitCtx context.Context) error {
	if req.ctx.Err() != nil {
		return req.ctx.Err()
	}
	if waitCtx.Err() != nil {
		return ErrTimeout
	}
	return waitCtx.Err()
}
