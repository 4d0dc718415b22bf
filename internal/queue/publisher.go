package queue

import (
    "context"
    "errors"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    gobreaker "github.com/sony/gobreaker/v2"

    "github.com/iliyamo/evently/internal/logging"
)

// channel is the subset of *amqp.Channel used for publishing.
type channel interface {
    ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// dialFunc opens a channel on a fresh connection.  Replaced in tests.
type dialFunc func(url string) (channel, func() error, error)

func dialAMQP(url string) (channel, func() error, error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    return ch, conn.Close, nil
}

// Publisher sends envelopes to a fanout exchange.  The connection is opened
// lazily and re-dialled after a failure; a circuit breaker stops dialling a
// broker that keeps failing.
type Publisher struct {
    url      string
    exchange string
    dial     dialFunc
    cb       *gobreaker.CircuitBreaker[struct{}]

    mu        sync.Mutex
    ch        channel
    closeConn func() error
}

func NewPublisher(url, exchange string) *Publisher {
    return newPublisher(url, exchange, dialAMQP)
}

func newPublisher(url, exchange string, dial dialFunc) *Publisher {
    return &Publisher{
        url:      url,
        exchange: exchange,
        dial:     dial,
        cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
            Name:        "rabbitmq-publish",
            MaxRequests: 1,
            Timeout:     30 * time.Second,
            ReadyToTrip: func(counts gobreaker.Counts) bool {
                return counts.ConsecutiveFailures >= 5
            },
            OnStateChange: func(name string, from, to gobreaker.State) {
                logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
                    Msg("circuit breaker state changed")
            },
        }),
    }
}

// Publish sends one envelope.  Returns gobreaker.ErrOpenState while the
// breaker is open.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
    body, err := encodeEnvelope(env)
    if err != nil {
        return err
    }
    _, err = p.cb.Execute(func() (struct{}, error) {
        return struct{}{}, p.send(ctx, body)
    })
    return err
}

func (p *Publisher) send(ctx context.Context, body []byte) error {
    p.mu.Lock()
    defer p.mu.Unlock()

    if p.ch == nil {
        ch, closeConn, err := p.dial(p.url)
        if err != nil {
            return err
        }
        if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
            _ = ch.Close()
            _ = closeConn()
            return err
        }
        p.ch, p.closeConn = ch, closeConn
    }

    err := p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
        ContentType: "application/json",
        Timestamp:   time.Now().UTC(),
        Body:        body,
    })
    if err != nil {
        p.resetLocked()
    }
    return err
}

func (p *Publisher) resetLocked() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.closeConn != nil {
        _ = p.closeConn()
    }
    p.ch, p.closeConn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.resetLocked()
    return nil
}

// IsOpen reports whether the breaker is rejecting publishes.
func IsOpen(err error) bool {
    return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
