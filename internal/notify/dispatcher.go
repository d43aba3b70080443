package notify

import (
	"context"
	"strings"
	"sync"
	"time"

	applog "sierraspos/internal/log"
)

const sendTimeout = 30 * time.Second

// Dispatcher sends mail off the request path. Failures are logged and
// never reported back to the caller.
type Dispatcher struct {
	mailer Mailer
	wg     sync.WaitGroup

	// OnResult, when set, observes every delivery attempt.
	OnResult func(kind Kind, err error)
}

func NewDispatcher(m Mailer) *Dispatcher {
	return &Dispatcher{mailer: m}
}

// Go queues msg for delivery on its own goroutine.
func (d *Dispatcher) Go(kind Kind, msg Message) {
	if strings.TrimSpace(msg.To) == "" {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		_ = d.send(ctx, kind, msg)
	}()
}

// SendNow delivers msg synchronously and returns the mailer error.
func (d *Dispatcher) SendNow(ctx context.Context, kind Kind, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	return d.send(ctx, kind, msg)
}

func (d *Dispatcher) send(ctx context.Context, kind Kind, msg Message) error {
	err := d.mailer.Send(ctx, msg)
	if err != nil {
		applog.Error(nil, "mail.failed", err, map[string]any{"kind": string(kind), "to": msg.To})
	} else {
		applog.Info(nil, "mail.sent", map[string]any{"kind": string(kind), "to": msg.To})
	}
	if d.OnResult != nil {
		d.OnResult(kind, err)
	}
	return err
}

// Wait blocks until every queued message has been attempted.
func (d *Dispatcher) Wait() { d.wg.Wait() }
