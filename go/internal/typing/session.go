package typing

import (
	"math"
	"strings"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Session tracks one attempt at typing a fixed target text.
//
// The correctness model is strict: once a key is mistyped every following key
// is expected to be BACK_SPACE until the pending error count drops back to
// zero. Pending errors are only a count, not a stack of the specific mistakes.
//
// Session is not safe for concurrent use.
type Session struct {
	target        []rune
	targetText    string
	cursor        int
	pendingErrors int
	durationMs    int64
	events        []models.KeyEvent
}

// NewSession starts a session against targetText, upper-cased.
func NewSession(targetText string) *Session {
	upper := strings.ToUpper(targetText)
	return &Session{
		target:     []rune(upper),
		targetText: upper,
	}
}

// RecordKeystroke validates key against the current expectation, appends the
// resulting event and advances the cursor. It never rejects input.
func (s *Session) RecordKeystroke(key string, timestampMs int64) models.KeyEvent {
	s.clampCursor()

	var expected *string
	switch {
	case s.pendingErrors > 0:
		bs := models.KeyBackspace
		expected = &bs
	case s.cursor < len(s.target):
		ch := string(s.target[s.cursor])
		expected = &ch
	}

	if expected != nil && *expected == models.KeyBackspace && key == models.KeyBackspace {
		s.pendingErrors = max(s.pendingErrors-1, 0)
	}

	isError := expected == nil || key != *expected
	if isError && key != models.KeyBackspace {
		s.pendingErrors++
	}

	event := models.KeyEvent{
		Key:         key,
		Expected:    expected,
		TimestampMs: timestampMs,
		IsError:     isError,
	}
	s.events = append(s.events, event)

	if len(s.events) > 1 {
		s.durationMs = timestampMs - s.events[0].TimestampMs
	}

	if key == models.KeyBackspace {
		if s.cursor > 0 {
			s.cursor--
		}
	} else {
		s.cursor++
	}
	s.clampCursor()

	return event
}

func (s *Session) clampCursor() {
	if s.cursor < 0 {
		s.cursor = 0
	} else if s.cursor > len(s.target) {
		s.cursor = len(s.target)
	}
}

// TargetText returns the upper-cased target.
func (s *Session) TargetText() string { return s.targetText }

// CursorPosition returns the index of the next character to type.
func (s *Session) CursorPosition() int { return s.cursor }

// PendingErrorCount returns the number of uncorrected mistakes.
func (s *Session) PendingErrorCount() int { return s.pendingErrors }

// DurationMs is the time between the first and the latest keystroke.
func (s *Session) DurationMs() int64 { return s.durationMs }

// Complete reports whether the whole target has been typed with no pending errors.
func (s *Session) Complete() bool {
	return s.cursor == len(s.target) && s.pendingErrors == 0
}

// Events returns a copy of the recorded events in chronological order.
func (s *Session) Events() []models.KeyEvent {
	out := make([]models.KeyEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Counts returns the number of correct and erroneous keystrokes.
func (s *Session) Counts() (correct, errors int) {
	for _, e := range s.events {
		if e.IsError {
			errors++
		} else {
			correct++
		}
	}
	return correct, errors
}

// Accuracy is the percentage of keystrokes that were not errors, 0 when
// nothing has been typed.
func (s *Session) Accuracy() float64 {
	if len(s.events) == 0 {
		return 0
	}
	correct, _ := s.Counts()
	return float64(correct) / float64(len(s.events)) * 100
}

// EstimateWPM derives words per minute from the log: correct non-backspace
// keystrokes, five characters per word, over the session duration. Bursts
// of keys a few milliseconds apart are capped at models.MaxWPM.
func (s *Session) EstimateWPM() int {
	if s.durationMs <= 0 {
		return 0
	}
	chars := 0
	for _, e := range s.events {
		if !e.IsError && e.Key != models.KeyBackspace {
			chars++
		}
	}
	minutes := float64(s.durationMs) / 60000.0
	return min(int(math.Round(float64(chars)/5.0/minutes)), models.MaxWPM)
}

// Result finalizes the session. reportedWPM is the last speed sample from the
// client; when it is not positive the WPM is estimated from the log.
func (s *Session) Result(reportedWPM int) models.TypingResult {
	wpm := reportedWPM
	if wpm <= 0 {
		wpm = s.EstimateWPM()
	}
	_, errs := s.Counts()
	return models.TypingResult{
		WPM:        wpm,
		Accuracy:   s.Accuracy(),
		DurationMs: s.durationMs,
		Keystrokes: len(s.events),
		ErrorCount: errs,
		Complete:   s.Complete(),
	}
}
