package events

import (
	"encoding/json"
	"time"
)

// Event types published while a run progresses.
const (
	RunStarted    = "run.started"
	RunProgress   = "run.progress"
	RunFinished   = "run.finished"
	AccountStatus = "account.status"
)

type Event struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	At      time.Time       `json:"at"`
	RunID   string          `json:"run_id,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// MakeEvent renders one SSE payload. Data that fails to marshal is dropped.
func MakeEvent(runID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	e := Event{
		Type:    typ,
		Version: 1,
		At:      time.Now().UTC(),
		RunID:   runID,
		Data:    raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// StatusChange is the data of an AccountStatus event.
type StatusChange struct {
	AccountID string `json:"account_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}
