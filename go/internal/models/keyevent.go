package models

// KeyBackspace is the key name clients send for the correcting keystroke.
const KeyBackspace = "BACK_SPACE"

// KeyEvent is one recorded keystroke. Expected is nil once the target text
// has been fully typed.
type KeyEvent struct {
	Key         string  `json:"key"`
	Expected    *string `json:"expected"`
	TimestampMs int64   `json:"timestamp"`
	IsError     bool    `json:"error"`
}

// ExpectedKey returns the expected key or "" when none was expected.
func (e KeyEvent) ExpectedKey() string {
	if e.Expected == nil {
		return ""
	}
	return *e.Expected
}
