package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

const (
	defaultReadSize       = 4 << 10
	maxLineBytes          = 1 << 20
	defaultIdleTimeout    = 30 * time.Second
	defaultConnectTimeout = 15 * time.Second
)

var errLineTooLong = errors.New("sse line exceeds 1 MiB")

// Relay streams chat completions from an OpenAI-compatible endpoint into a Sink
type Relay struct {
	client      *http.Client
	idleTimeout time.Duration
	readSize    int
}

// RelayOption configures a Relay
type RelayOption func(*Relay)

// WithHTTPClient replaces the HTTP client. It must not set a global Timeout.
func WithHTTPClient(client *http.Client) RelayOption {
	return func(r *Relay) {
		if client != nil {
			r.client = client
		}
	}
}

// WithIdleTimeout aborts a stream that receives nothing for d. Zero disables it.
// The clock is paused while the sink handles a token.
func WithIdleTimeout(d time.Duration) RelayOption {
	return func(r *Relay) {
		r.idleTimeout = d
	}
}

// WithReadSize sets the body read chunk size
func WithReadSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.readSize = n
		}
	}
}

// NewHTTPClient builds a client for long-lived streams: bounded dial, TLS and
// response-header phases but no overall timeout
func NewHTTPClient(connectTimeout time.Duration) *http.Client {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = connectTimeout * 4
	return &http.Client{Transport: transport}
}

// NewRelay creates a relay
func NewRelay(opts ...RelayOption) *Relay {
	r := &Relay{
		client:      NewHTTPClient(defaultConnectTimeout),
		idleTimeout: defaultIdleTimeout,
		readSize:    defaultReadSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open streams on a new goroutine and returns immediately
func (r *Relay) Open(ctx context.Context, call Call, sink Sink) {
	go r.Stream(ctx, call, sink)
}

// Stream blocks until the stream completes, fails or ctx is canceled
func (r *Relay) Stream(ctx context.Context, call Call, sink Sink) {
	t := &terminal{ctx: ctx, sink: sink}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("❌ RELAY PANIC (model: %s): %v", call.Credentials.ModelID, p)
			t.fail(fmt.Errorf("relay panic: %v", p))
		}
	}()

	if err := r.stream(ctx, call, t); err != nil {
		t.fail(err)
		return
	}
	t.done()
}

func (r *Relay) stream(ctx context.Context, call Call, t *terminal) error {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	payload, err := json.Marshal(call.request())
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := ChatCompletionsURL(call.Credentials.BaseURL)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &StreamReadError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", call.Credentials.APIKey))
	req.Header.Set("Accept", "text/event-stream")

	var watchdog *time.Timer
	if r.idleTimeout > 0 {
		watchdog = time.AfterFunc(r.idleTimeout, func() { cancel(ErrStalled) })
		defer watchdog.Stop()
	}

	startTime := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return r.transportError(reqCtx, "request", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Printf("⚠️  Failed to close response body: %v", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newUpstreamHTTPError(resp)
	}

	var (
		lines     lineBuffer
		chunk     = make([]byte, r.readSize)
		malformed int
		tokens    int
	)
	defer func() {
		if malformed > 0 {
			log.Printf("⚠️  Skipped %d malformed frames (model: %s)", malformed, call.Credentials.ModelID)
		}
	}()

	// handle reports whether the stream is finished
	handle := func(line []byte) bool {
		kind, delta := parseLine(line)
		switch kind {
		case frameDone:
			return true
		case frameToken:
			tokens++
			// time spent in the sink is not upstream idleness
			if watchdog != nil {
				watchdog.Stop()
			}
			t.token(delta)
			if watchdog != nil {
				watchdog.Reset(r.idleTimeout)
			}
		case frameMalformed:
			malformed++
		}
		return false
	}

	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			if watchdog != nil {
				watchdog.Reset(r.idleTimeout)
			}
			lines.write(chunk[:n])
			for {
				line, ok := lines.next()
				if !ok {
					break
				}
				if handle(line) {
					log.Printf("✅ STREAM COMPLETED in %v (model: %s, tokens: %d)", time.Since(startTime), call.Credentials.ModelID, tokens)
					return nil
				}
			}
			if lines.len() > maxLineBytes {
				return &StreamReadError{Op: "read", Err: errLineTooLong}
			}
		}

		if errors.Is(readErr, io.EOF) {
			if tail := lines.rest(); len(tail) > 0 {
				handle(tail)
			}
			return nil
		}
		if readErr != nil {
			return r.transportError(reqCtx, "read", readErr)
		}
	}
}

func (r *Relay) transportError(reqCtx context.Context, op string, err error) error {
	if errors.Is(context.Cause(reqCtx), ErrStalled) {
		return &StreamReadError{Op: op, Err: ErrStalled}
	}
	return &StreamReadError{Op: op, Err: err}
}

// terminal forwards to the sink and guarantees at most one terminal callback.
// Nothing is forwarded once the caller's context is canceled.
type terminal struct {
	ctx   context.Context
	sink  Sink
	fired bool
}

func (t *terminal) token(delta string) {
	if t.fired || t.ctx.Err() != nil {
		return
	}
	t.sink.OnToken(delta)
}

func (t *terminal) done() {
	if t.fired || t.ctx.Err() != nil {
		return
	}
	t.fired = true
	t.sink.OnDone()
}

func (t *terminal) fail(err error) {
	if t.fired || t.ctx.Err() != nil {
		return
	}
	t.fired = true
	t.sink.OnError(err)
}
