package engine

import (
	"log/slog"
	"os"
	"time"

	"github.com/siftmod/sift/casestore"
	"github.com/siftmod/sift/classifier"
	"github.com/siftmod/sift/decisionstore"
	"github.com/siftmod/sift/similarity"
)

// EngineTestFixture assembles an engine on in-memory collaborators with a
// substring-matching mock classifier, for tests in this and other packages.
func EngineTestFixture() Engine {
	decisions := decisionstore.NewMemDecisionStore()
	return Engine{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelError,
		})),
		Classifier: &classifier.Mock{
			FlagSubstrings: []string{"free views", "fr33", "robux", "spam"},
		},
		Matcher:   similarity.NewMatcher(decisions, similarity.NewMemDecisionCache(1000, time.Hour)),
		Decisions: decisions,
		Cases:     casestore.NewRegistry(),
		Journal:   &casestore.NopJournal{},
		ReviewLog: NewMemReviewLog(),
		Config:    DefaultConfig(),
	}
}
