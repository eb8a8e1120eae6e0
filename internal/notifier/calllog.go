package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"barberline/pkg/events"
	"barberline/pkg/kafka"
)

// CallLog appends every call turn and call close as one JSON line.
type CallLog struct {
	mu sync.Mutex
	w  io.Writer
}

func NewCallLog(w io.Writer) *CallLog {
	return &CallLog{w: w}
}

// OpenCallLog opens path for appending, creating it if needed.
func OpenCallLog(path string) (*CallLog, *os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open call log: %w", err)
	}
	return NewCallLog(f), f, nil
}

func (l *CallLog) Handle(_ context.Context, msg kafka.Message) error {
	switch msg.GetEventType() {
	case events.TypeCallTurn, events.TypeCallClosed:
	default:
		return nil
	}

	var entry events.TurnPayload
	if err := msg.DecodeValue(&entry); err != nil {
		return kafka.NewPermanentError("undecodable call event", err)
	}
	if msg.GetEventType() == events.TypeCallClosed {
		if entry.Extra == nil {
			entry.Extra = map[string]any{}
		}
		entry.Extra["event"] = events.TypeCallClosed
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return kafka.NewPermanentError("unencodable call event", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append call log: %w", err)
	}
	return nil
}
