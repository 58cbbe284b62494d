package queue

import (
	"context"
	"encoding/json"

	"rollcall/internal/attendance"
)

// TypeRecognition tags recognition audit events on the queue.
const TypeRecognition = "recognition"

// Events adapts a Queue into the recognizer's audit publisher.
type Events struct {
	q Queue
}

// NewEvents wraps a queue.
func NewEvents(q Queue) *Events {
	return &Events{q: q}
}

// Publish enqueues one recognition attempt as JSON.
func (e *Events) Publish(ctx context.Context, evt attendance.RecognitionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return e.q.Publish(ctx, Message{Type: TypeRecognition, Body: body})
}

// DecodeEvent parses a queue message back into an event. Used by the worker.
func DecodeEvent(msg Message) (attendance.RecognitionEvent, error) {
	var evt attendance.RecognitionEvent
	err := json.Unmarshal(msg.Body, &evt)
	return evt, err
}
