package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

type ControlAction string

const (
	ActionStart ControlAction = "start"
	ActionStop  ControlAction = "stop"
)

// ControlCommand asks a scanner to start or stop its session. An empty
// SessionID addresses every scanner.
type ControlCommand struct {
	Action      ControlAction `json:"action"`
	SessionID   string        `json:"session_id,omitempty"`
	RequestedAt time.Time     `json:"requested_at"`
}

func (c ControlCommand) Marshal() ([]byte, error) {
	if c.Action != ActionStart && c.Action != ActionStop {
		return nil, fmt.Errorf("unknown control action %q", c.Action)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal control command: %w", err)
	}
	return data, nil
}

func ParseControl(data []byte) (ControlCommand, error) {
	var c ControlCommand
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("unmarshal control command: %w", err)
	}
	if c.Action != ActionStart && c.Action != ActionStop {
		return c, fmt.Errorf("unknown control action %q", c.Action)
	}
	return c, nil
}

// Targets reports whether the command is addressed to sessionID.
func (c ControlCommand) Targets(sessionID string) bool {
	return c.SessionID == "" || c.SessionID == sessionID
}
