package queue

import (
    "context"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/evently/internal/logging"
    "github.com/iliyamo/evently/internal/notify"
)

// Consumer relays notifications published by other instances into the
// local hub.  Each instance binds its own exclusive, auto-deleted queue to
// the fanout exchange, so every instance sees every message.
type Consumer struct {
    URL      string
    Exchange string
    Origin   string
    Local    notify.Publisher
}

// Run keeps consuming until ctx is cancelled, reconnecting with exponential
// backoff (capped at 30s) whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            logging.Warn().Err(err).Dur("retry_in", backoff).Msg("notify-consumer: failed to dial broker")
            if !sleepCtx(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logging.Warn().Err(err).Msg("notify-consumer: consume loop ended; reconnecting")
        if !sleepCtx(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.ExchangeDeclare(c.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
        return fmt.Errorf("exchange declare: %w", err)
    }
    q, err := ch.QueueDeclare("", false, true, true, false, nil)
    if err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    if err := ch.QueueBind(q.Name, "", c.Exchange, false, nil); err != nil {
        return fmt.Errorf("queue bind: %w", err)
    }
    msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    logging.Info().Str("queue", q.Name).Str("exchange", c.Exchange).Msg("notify-consumer: consuming")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            c.handle(d.Body)
        }
    }
}

// handle decodes one message and republishes it locally unless it came from
// this instance.
func (c *Consumer) handle(body []byte) {
    env, err := decodeEnvelope(body)
    if err != nil {
        logging.Warn().Err(err).Msg("notify-consumer: dropping undecodable message")
        return
    }
    if env.Origin == c.Origin {
        return
    }
    c.Local.Publish(env.Notification)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
