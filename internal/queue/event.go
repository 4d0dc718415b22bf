// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "github.com/goccy/go-json"

    "github.com/iliyamo/evently/internal/notify"
)

// Envelope wraps a notification crossing the broker.  Origin identifies the
// publishing instance so its own consumer can skip messages it already
// delivered locally.
type Envelope struct {
    Origin       string              `json:"origin"`
    Notification notify.Notification `json:"notification"`
}

func encodeEnvelope(e Envelope) ([]byte, error) { return json.Marshal(e) }

func decodeEnvelope(body []byte) (Envelope, error) {
    var e Envelope
    err := json.Unmarshal(body, &e)
    return e, err
}
