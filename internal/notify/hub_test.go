package notify

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/evently/internal/model"
)

func recv(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n, ok := <-sub.C:
		require.True(t, ok, "subscription closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("no notification received")
	}
	return Notification{}
}

func TestHubFiltersByEventAndUser(t *testing.T) {
	h := NewHub(4)
	byEvent := h.Subscribe(ForEvent(1))
	byUser := h.Subscribe(ForUser(7))
	all := h.Subscribe(nil)

	h.Publish(Notification{Type: BookingConfirmed, EventID: 1, UserID: 3})
	h.Publish(Notification{Type: BookingPromoted, EventID: 2, UserID: 7})

	assert.Equal(t, BookingConfirmed, recv(t, byEvent).Type)
	assert.Equal(t, BookingPromoted, recv(t, byUser).Type)
	assert.Equal(t, BookingConfirmed, recv(t, all).Type)
	assert.Equal(t, BookingPromoted, recv(t, all).Type)
	assert.Empty(t, byEvent.C)
	assert.Empty(t, byUser.C)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(1)
	drops := 0
	h.OnDrop = func() { drops++ }
	sub := h.Subscribe(nil)

	h.Publish(Notification{Type: EventUpdated, EventID: 1})
	h.Publish(Notification{Type: EventUpdated, EventID: 2})

	assert.Equal(t, uint64(1), h.Dropped())
	assert.Equal(t, 1, drops)
	assert.Equal(t, uint64(1), recv(t, sub).EventID)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe(nil)
	assert.Equal(t, 1, h.Subscribers())
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, h.Subscribers())

	h.Close()
	late := h.Subscribe(nil)
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestWriteSSE(t *testing.T) {
	var buf bytes.Buffer
	at := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	b := &model.Booking{ID: 5, EventID: 1, Qty: 2, Status: model.BookingConfirmed, SeatIDs: []uint64{1, 2}, SeatLabels: []string{"A1", "A2"}}
	require.NoError(t, WriteSSE(&buf, 3, Notification{Type: BookingConfirmed, EventID: 1, Booking: b, At: at}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "id: 3\nevent: booking.confirmed\ndata: {"))
	assert.True(t, strings.HasSuffix(out, "}\n\n"))
	assert.Contains(t, out, `"seat_labels":["A1","A2"]`)
	assert.NotContains(t, out, "idempotency")
}
