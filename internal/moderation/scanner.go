// Package moderation scans outgoing text against the operator-managed list of
// critical words and captures recent conversation context when a word matches.
package moderation

import (
	"context"
	"fmt"
	"strings"

	"relaychat/internal/domain"
)

const (
	// ContextMessages is how many recent pair messages go into a snippet.
	ContextMessages = 50
	// ContextMaxChars bounds the snippet; the tail is kept.
	ContextMaxChars = 5120
)

// Outcome is the result of a successful scan.
type Outcome struct {
	Flagged bool
	Word    string
	Context string
}

// ScanError reports that the scan could not complete. Callers decide the
// policy; the dispatcher treats it as not flagged.
type ScanError struct {
	Op  string
	Err error
}

func (e *ScanError) Error() string { return fmt.Sprintf("moderation %s: %v", e.Op, e.Err) }
func (e *ScanError) Unwrap() error { return e.Err }

// HistorySource is the subset of the message store the scanner reads.
type HistorySource interface {
	History(ctx context.Context, a, b string, limit int) ([]*domain.Message, error)
}

type Scanner struct {
	words   domain.CriticalWordRepository
	history HistorySource
}

func NewScanner(words domain.CriticalWordRepository, history HistorySource) *Scanner {
	return &Scanner{words: words, history: history}
}

// Scan checks text for the first critical word, in ascending word order.
func (s *Scanner) Scan(ctx context.Context, text, pairLow, pairHigh string) (Outcome, error) {
	words, err := s.words.List(ctx)
	if err != nil {
		return Outcome{}, &ScanError{Op: "load words", Err: err}
	}
	word, ok := FirstMatch(text, words)
	if !ok {
		return Outcome{}, nil
	}

	msgs, err := s.history.History(ctx, pairLow, pairHigh, ContextMessages)
	if err != nil {
		return Outcome{}, &ScanError{Op: "load context", Err: err}
	}
	return Outcome{Flagged: true, Word: word, Context: BuildContext(msgs)}, nil
}

// FirstMatch returns the first word contained in the lower-cased text.
func FirstMatch(text string, words []string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, w := range words {
		w = strings.ToLower(w)
		if w != "" && strings.Contains(lower, w) {
			return w, true
		}
	}
	return "", false
}

// BuildContext renders msgs (oldest first) one per line and keeps the last
// ContextMaxChars characters.
func BuildContext(msgs []*domain.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Text != nil:
			lines = append(lines, m.From+": "+*m.Text)
		case m.FileRef != nil:
			lines = append(lines, m.From+": [file "+*m.FileRef+"]")
		}
	}
	return tail(strings.Join(lines, "\n"), ContextMaxChars)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
