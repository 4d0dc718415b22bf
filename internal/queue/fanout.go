package queue

import (
    "context"
    "sync"
    "time"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/notify"
)

// remote is satisfied by *Publisher.
type remote interface {
    Publish(ctx context.Context, env Envelope) error
}

// Fanout is a notify.Publisher that delivers to the local hub immediately
// and forwards to the broker from a background goroutine, so request
// handling never waits on RabbitMQ.
type Fanout struct {
    local  notify.Publisher
    remote remote
    origin string
    out    chan notify.Notification
    done   chan struct{}

    mu     sync.RWMutex // guards closed and sends on out
    closed bool
}

// NewFanout starts the forwarding goroutine; call Close to stop it.
func NewFanout(local notify.Publisher, pub remote, origin string, buffer int) *Fanout {
    if buffer < 1 {
        buffer = 256
    }
    f := &Fanout{
        local:  local,
        remote: pub,
        origin: origin,
        out:    make(chan notify.Notification, buffer),
        done:   make(chan struct{}),
    }
    go f.forward()
    return f
}

// Publish delivers n locally and queues it for the broker.  After Close
// it delivers locally only.
func (f *Fanout) Publish(n notify.Notification) {
    f.local.Publish(n)
    f.mu.RLock()
    defer f.mu.RUnlock()
    if f.closed {
        return
    }
    select {
    case f.out <- n:
    default:
        logging.Warn().Str("type", n.Type).Uint64("event_id", n.EventID).Msg("broker forward queue full; notification kept local")
    }
}

func (f *Fanout) forward() {
    defer close(f.done)
    for n := range f.out {
        ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
        err := f.remote.Publish(ctx, Envelope{Origin: f.origin, Notification: n})
        cancel()
        if err != nil && !IsOpen(err) {
            logging.Warn().Err(err).Str("type", n.Type).Msg("broker publish failed")
        }
    }
}

// Close drains pending forwards and stops the goroutine.  Safe to call
// more than once.
func (f *Fanout) Close() {
    f.mu.Lock()
    if !f.closed {
        f.closed = true
        close(f.out)
    }
    f.mu.Unlock()
    <-f.done
}
