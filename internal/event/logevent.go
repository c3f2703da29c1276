package event

import (
	"encoding/json"
	"fmt"
)

// LogType classifies a log line for dashboard viewers.
type LogType string

const (
	LogSuccess LogType = "success"
	LogError   LogType = "error"
	LogInfo    LogType = "info"
	LogWarning LogType = "warning"
	LogDebug   LogType = "debug"
)

func (t LogType) Valid() bool {
	switch t {
	case LogSuccess, LogError, LogInfo, LogWarning, LogDebug:
		return true
	}
	return false
}

// LogEvent is the wire record published to the logs topic. It is never
// persisted; the consumer broadcasts it to connected dashboards verbatim.
type LogEvent struct {
	Type      LogType `json:"type"`
	Message   string  `json:"message"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
}

// ParseLogEvent decodes and validates a raw message body, rejecting bad
// JSON and unknown log types.
func ParseLogEvent(raw []byte) (LogEvent, error) {
	var e LogEvent
	if err := json.Unmarshal(raw, &e); err != nil {
		return LogEvent{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !e.Type.Valid() {
		return LogEvent{}, fmt.Errorf("%w: log type %q", ErrBadPayload, e.Type)
	}
	return e, nil
}

// Dashboard filter keys. The server pushes every line; filtering is done
// client-side with these exact keys.
const (
	FilterErrorsOnly  = "1"
	FilterSuccessOnly = "2"
	FilterAll         = "0"
)

// MatchesFilter reports whether a log line passes the given client
// filter key. Unknown keys behave like FilterAll.
func MatchesFilter(key string, e LogEvent) bool {
	switch key {
	case FilterErrorsOnly:
		return e.Type == LogError
	case FilterSuccessOnly:
		return e.Type == LogSuccess
	}
	return true
}
