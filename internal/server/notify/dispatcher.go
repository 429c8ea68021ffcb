package notify

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/talkboard/internal/logging"
	"golang.org/x/sync/semaphore"
)

const sendTimeout = 30 * time.Second

// SendRecorder counts delivery outcomes. *metrics.Metrics satisfies it.
type SendRecorder interface {
	MailSent(ok bool)
}

// Dispatcher sends mail in the background with at most a fixed number of
// sends in flight. Messages queued after Drain has started are dropped.
type Dispatcher struct {
	mailer   Mailer
	sem      *semaphore.Weighted
	logger   logging.Logger
	recorder SendRecorder

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func NewDispatcher(mailer Mailer, workers int, logger logging.Logger, recorder SendRecorder) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		mailer:   mailer,
		sem:      semaphore.NewWeighted(int64(workers)),
		logger:   logger.With("service", "MailDispatcher"),
		recorder: recorder,
	}
}

// Dispatch queues msg and returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn(context.Background(), "dispatcher closed, dropping mail", "subject", msg.Subject)
		return
	}
	d.pending.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.pending.Done()
		ctx := context.Background()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		err := d.mailer.Send(ctx, msg)
		if d.recorder != nil {
			d.recorder.MailSent(err == nil)
		}
		if err != nil {
			d.logger.Error(ctx, "mail delivery failed", "subject", msg.Subject, "error", err)
			return
		}
		d.logger.Info(ctx, "mail delivered", "subject", msg.Subject)
	}()
}

// Drain stops accepting messages and waits for queued ones until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
