package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/notify"
)

type fakeChannel struct {
	mu        sync.Mutex
	declared  []string
	published [][]byte
	failNext  bool
	closed    bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name+"/"+kind)
	return nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("channel closed")
	}
	f.published = append(f.published, msg.Body)
	return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func TestPublisherDialsLazilyAndRedialsAfterFailure(t *testing.T) {
	var dials int
	ch := &fakeChannel{}
	p := newPublisher("amqp://x", "evently.notifications", func(string) (channel, func() error, error) {
		dials++
		return ch, func() error { return nil }, nil
	})
	ctx := context.Background()
	assert.Zero(t, dials)

	require.NoError(t, p.Publish(ctx, Envelope{Origin: "a", Notification: notify.Notification{Type: notify.BookingConfirmed, EventID: 1}}))
	require.NoError(t, p.Publish(ctx, Envelope{Origin: "a", Notification: notify.Notification{Type: notify.BookingCancelled, EventID: 1}}))
	assert.Equal(t, 1, dials)
	assert.Equal(t, []string{"evently.notifications/fanout"}, ch.declared)

	ch.failNext = true
	assert.Error(t, p.Publish(ctx, Envelope{Origin: "a"}))
	assert.True(t, ch.closed)
	require.NoError(t, p.Publish(ctx, Envelope{Origin: "a"}))
	assert.Equal(t, 2, dials)
	assert.Len(t, ch.published, 3)

	env, err := decodeEnvelope(ch.published[1])
	require.NoError(t, err)
	assert.Equal(t, notify.BookingCancelled, env.Notification.Type)
}

func TestPublisherBreakerOpensAfterRepeatedDialFailures(t *testing.T) {
	var dials int
	p := newPublisher("amqp://x", "ex", func(string) (channel, func() error, error) {
		dials++
		return nil, nil, errors.New("connection refused")
	})
	for i := 0; i < 5; i++ {
		assert.Error(t, p.Publish(context.Background(), Envelope{}))
	}
	err := p.Publish(context.Background(), Envelope{})
	assert.True(t, IsOpen(err))
	assert.Equal(t, 5, dials)
}

func TestConsumerSkipsOwnOrigin(t *testing.T) {
	hub := notify.NewHub(4)
	sub := hub.Subscribe(nil)
	c := &Consumer{Origin: "me", Local: hub}

	own, _ := encodeEnvelope(Envelope{Origin: "me", Notification: notify.Notification{Type: notify.EventUpdated, EventID: 1}})
	other, _ := encodeEnvelope(Envelope{Origin: "peer", Notification: notify.Notification{Type: notify.EventUpdated, EventID: 2}})
	c.handle(own)
	c.handle([]byte("not json"))
	c.handle(other)

	select {
	case n := <-sub.C:
		assert.Equal(t, uint64(2), n.EventID)
	case <-time.After(time.Second):
		t.Fatal("expected relayed notification")
	}
	assert.Empty(t, sub.C)
}

type recordingRemote struct {
	mu   sync.Mutex
	envs []Envelope
}

func (r *recordingRemote) Publish(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func TestFanoutDeliversLocallyAndForwards(t *testing.T) {
	hub := notify.NewHub(4)
	sub := hub.Subscribe(nil)
	rem := &recordingRemote{}
	f := NewFanout(hub, rem, "inst-1", 8)

	f.Publish(notify.Notification{Type: notify.BookingPromoted, EventID: 3, UserID: 4})
	f.Close()

	n := <-sub.C
	assert.Equal(t, notify.BookingPromoted, n.Type)
	require.Len(t, rem.envs, 1)
	assert.Equal(t, "inst-1", rem.envs[0].Origin)
	assert.Equal(t, uint64(4), rem.envs[0].Notification.UserID)
}

func TestFanoutPublishAfterCloseStaysLocal(t *testing.T) {
	hub := notify.NewHub(4)
	sub := hub.Subscribe(nil)
	rem := &recordingRemote{}
	f := NewFanout(hub, rem, "inst-1", 8)
	f.Close()

	assert.NotPanics(t, func() {
		f.Publish(notify.Notification{Type: notify.EventUpdated, EventID: 9})
	})
	f.Close()

	n := <-sub.C
	assert.Equal(t, uint64(9), n.EventID)
	assert.Empty(t, rem.envs)
}

func TestFanoutConcurrentPublishAndClose(t *testing.T) {
	f := NewFanout(notify.Discard{}, &recordingRemote{}, "inst-1", 1)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.Publish(notify.Notification{Type: notify.EventUpdated, EventID: uint64(i)})
			}
		}(i)
	}
	f.Close()
	wg.Wait()
}
