package serialmux

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	EventTypeUpdate  = "update"
	EventTypeAck     = "ack"
	EventTypeError   = "error"
	EventTypeUnknown = "unknown"
)

// ClassifyPayload inspects a line and returns a simple event type token.
// It only looks at which top-level keys are present; decoding the value is
// left to the consumer.
func ClassifyPayload(payload string) string {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") {
		return EventTypeUnknown
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &keys); err != nil {
		return EventTypeUnknown
	}
	if _, ok := keys["error"]; ok {
		return EventTypeError
	}
	if _, ok := keys["subscribed"]; ok {
		return EventTypeAck
	}
	_, hasName := keys["name"]
	_, hasValue := keys["value"]
	if hasName && hasValue {
		return EventTypeUpdate
	}
	return EventTypeUnknown
}

// SubscribeCommand encodes the line that asks a controller to stream the
// named channels, e.g. {"subscribe":["Lift Height","Mode"]}.
func SubscribeCommand(channels []string) (string, error) {
	if len(channels) == 0 {
		return "", fmt.Errorf("no channels to subscribe to")
	}
	b, err := json.Marshal(struct {
		Subscribe []string `json:"subscribe"`
	}{channels})
	if err != nil {
		return "", fmt.Errorf("failed to encode subscribe command: %w", err)
	}
	return string(b), nil
}
