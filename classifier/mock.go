package classifier

import (
	"context"
	"errors"
	"strings"
)

// Mock flags any text containing one of the configured substrings. For
// tests and local development.
type Mock struct {
	FlagSubstrings []string
	// when set, every Check call fails with this error
	Err error
}

var _ Classifier = (*Mock)(nil)

var ErrUnavailable = errors.New("classifier unavailable")

func (m *Mock) Check(ctx context.Context, text string) (*Flagging, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	lower := strings.ToLower(text)
	for _, sub := range m.FlagSubstrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return &Flagging{
				Flagged:        true,
				CategoryScores: map[string]float64{"spam": 0.99},
			}, nil
		}
	}
	return &Flagging{Flagged: false}, nil
}
