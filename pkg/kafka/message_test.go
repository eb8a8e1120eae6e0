package kafka

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageBuilder_Build(t *testing.T) {
	msg, err := NewMessage().
		WithKey("CA123").
		WithValue(map[string]string{"state": "GREETING"}).
		WithEventType("call.turn").
		WithCallID("CA123").
		WithSource("agent").
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	if msg.GetEventID() == "" {
		t.Errorf("Build() should assign an event id")
	}
	if msg.Headers[HeaderTimestamp] == "" {
		t.Errorf("Build() should stamp a timestamp header")
	}
	if msg.GetCallID() != "CA123" || msg.GetEventType() != "call.turn" {
		t.Errorf("headers = %v", msg.Headers)
	}

	var decoded map[string]string
	if err := msg.DecodeValue(&decoded); err != nil || decoded["state"] != "GREETING" {
		t.Errorf("DecodeValue() = %v, %v", decoded, err)
	}
}

func TestMessageBuilder_UnencodableValue(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("Build() error = %v, want ErrInvalidMessage", err)
	}
}

func TestMessage_RetryCount(t *testing.T) {
	msg := Message{Headers: map[string]string{}}
	for i := 1; i <= 12; i++ {
		msg.IncrementRetryCount()
		if msg.GetRetryCount() != i {
			t.Fatalf("after %d increments GetRetryCount() = %d", i, msg.GetRetryCount())
		}
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		retries int
		want    bool
	}{
		{"nil error", nil, 0, false},
		{"network error", fmt.Errorf("dial tcp: connection refused"), 0, true},
		{"retries exhausted", fmt.Errorf("i/o timeout"), 3, false},
		{"explicit transient", NewTransientError("twilio busy", nil), 1, true},
		{"explicit permanent", NewPermanentError("bad phone", nil), 0, false},
		{"unknown defaults to permanent", errors.New("boom"), 0, false},
		{"invalid message", fmt.Errorf("wrap: %w", ErrInvalidMessage), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err, tt.retries, 3); got != tt.want {
				t.Errorf("ShouldRetry(%v, %d, 3) = %v, want %v", tt.err, tt.retries, got, tt.want)
			}
		})
	}
}
