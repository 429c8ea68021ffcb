// Package tts talks to the external text-to-speech service. Calls are
// retried with exponential backoff and jitter on rate limiting, server errors
// and network failures; other client errors fail at once.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/common"
	"github.com/dmitrijs2005/talkboard/internal/logging"
)

const (
	DefaultSpeaker = "mari"
	DefaultSpeed   = 1.0

	defaultAttempts  = 5
	defaultBaseDelay = 500 * time.Millisecond
	maxErrorBody     = 512
)

type Request struct {
	Text    string  `json:"text"`
	Speaker string  `json:"speaker"`
	Speed   float64 `json:"speed"`
}

// Kind classifies a failed synthesis.
type Kind int

const (
	// KindTransient means the service stayed unavailable for every attempt.
	KindTransient Kind = iota + 1
	// KindTerminal means the service rejected the request.
	KindTerminal
)

// Error describes a failed synthesis. It matches common.ErrTransientExternal
// or common.ErrTerminalExternal through errors.Is.
type Error struct {
	Kind     Kind
	Status   int // last HTTP status, 0 for network failures
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tts: status %d after %d attempt(s): %v", e.Status, e.Attempts, e.Err)
	}
	return fmt.Sprintf("tts: failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *Error) Unwrap() []error {
	sentinel := common.ErrTransientExternal
	if e.Kind == KindTerminal {
		sentinel = common.ErrTerminalExternal
	}
	return []error{sentinel, e.Err}
}

// AttemptRecorder observes attempt outcomes. *metrics.Metrics satisfies it.
type AttemptRecorder interface {
	TTSAttempt(outcome string)
	TTSResult(result string)
}

type Option func(*Client)

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithJitter replaces the source of the random extra delay. It receives the
// base delay and returns a value in [0, base).
func WithJitter(jitter func(base time.Duration) time.Duration) Option {
	return func(c *Client) { c.jitter = jitter }
}

func WithRecorder(r AttemptRecorder) Option {
	return func(c *Client) { c.recorder = r }
}

type Client struct {
	url       string
	http      *http.Client
	logger    logging.Logger
	recorder  AttemptRecorder
	attempts  int
	baseDelay time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	jitter    func(base time.Duration) time.Duration
}

func NewClient(url string, httpClient *http.Client, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		url:       url,
		http:      httpClient,
		logger:    logger.With("service", "TTSClient"),
		attempts:  defaultAttempts,
		baseDelay: defaultBaseDelay,
		sleep:     sleepCtx,
		jitter:    uniformJitter,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close releases idle upstream connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

type state int

const (
	stateAttempting state = iota
	stateRetryable
	stateTerminal
	stateSuccess
)

type outcome struct {
	state     state
	status    int
	audio     []byte
	err       error
	cancelled bool
}

// Synthesize returns the audio for req. Empty Speaker and zero Speed take
// their defaults.
func (c *Client) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if req.Speaker == "" {
		req.Speaker = DefaultSpeaker
	}
	if req.Speed == 0 {
		req.Speed = DefaultSpeed
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("tts: encode request: %w", err)
	}
	c.logger.Info(ctx, "requesting speech", "chars", len([]rune(req.Text)), "speaker", req.Speaker)

	var last outcome
	for attempt := 0; attempt < c.attempts; attempt++ {
		last = c.attempt(ctx, payload)

		switch last.state {
		case stateSuccess:
			c.record("success")
			c.result("success")
			return last.audio, nil

		case stateTerminal:
			if last.cancelled {
				c.result("cancelled")
				return nil, &Error{Kind: KindTransient, Attempts: attempt + 1, Err: last.err}
			}
			c.record("terminal")
			c.result("terminal")
			c.logger.Error(ctx, "speech request rejected", "status", last.status, "attempt", attempt+1, "error", last.err)
			return nil, &Error{Kind: KindTerminal, Status: last.status, Attempts: attempt + 1, Err: last.err}

		case stateRetryable:
			c.record("retryable")
			if attempt == c.attempts-1 {
				continue
			}
			delay := c.delay(attempt)
			c.logger.Warn(ctx, "retrying speech request", "status", last.status, "attempt", attempt+1, "delay", delay.String(), "error", last.err)
			if err := c.sleep(ctx, delay); err != nil {
				c.result("cancelled")
				return nil, &Error{Kind: KindTransient, Status: last.status, Attempts: attempt + 1, Err: err}
			}
		}
	}

	c.result("exhausted")
	c.logger.Error(ctx, "speech service unavailable", "attempts", c.attempts, "status", last.status, "error", last.err)
	return nil, &Error{Kind: KindTransient, Status: last.status, Attempts: c.attempts, Err: last.err}
}

func (c *Client) attempt(ctx context.Context, payload []byte) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{state: stateTerminal, err: err, cancelled: true}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return outcome{state: stateTerminal, err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return outcome{state: stateTerminal, err: ctxErr, cancelled: true}
		}
		return outcome{state: stateRetryable, err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		audio, err := io.ReadAll(resp.Body)
		if err != nil {
			return outcome{state: stateRetryable, status: resp.StatusCode, err: fmt.Errorf("read body: %w", err)}
		}
		return outcome{state: stateSuccess, status: resp.StatusCode, audio: audio}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return outcome{state: stateRetryable, status: resp.StatusCode, err: errors.New(http.StatusText(resp.StatusCode))}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return outcome{state: stateTerminal, status: resp.StatusCode, err: fmt.Errorf("upstream said: %s", bytes.TrimSpace(body))}
	}
}

// delay is base*2^attempt plus jitter in [0, base).
func (c *Client) delay(attempt int) time.Duration {
	return c.baseDelay*(1<<attempt) + c.jitter(c.baseDelay)
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.TTSAttempt(outcome)
	}
}

func (c *Client) result(result string) {
	if c.recorder != nil {
		c.recorder.TTSResult(result)
	}
}

func uniformJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return rand.N(base)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
