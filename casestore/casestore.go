package casestore

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry is the live index of open flag cases, keyed by content
// identifier. It replaces the ambient singleton dictionary of review
// sessions with an explicit store injected into the engine. Safe for
// concurrent use; distinct cases proceed fully in parallel.
type Registry struct {
	cases *xsync.MapOf[string, *FlagCase]
}

func NewRegistry() *Registry {
	return &Registry{
		cases: xsync.NewMapOf[string, *FlagCase](),
	}
}

func (r *Registry) Put(fc *FlagCase) {
	r.cases.Store(fc.Content.ContentID, fc)
}

func (r *Registry) Get(contentID string) (*FlagCase, bool) {
	return r.cases.Load(contentID)
}

func (r *Registry) Delete(contentID string) {
	r.cases.Delete(contentID)
}

func (r *Registry) Len() int {
	return r.cases.Size()
}

func (r *Registry) Range(fn func(fc *FlagCase) bool) {
	r.cases.Range(func(_ string, fc *FlagCase) bool {
		return fn(fc)
	})
}

// Journal durably records open-case snapshots so that in-flight reviews
// survive a process restart. Bookkeeping only: the Registry remains the
// source of truth while the process is up, and journal failures must never
// block voting.
type Journal interface {
	Save(ctx context.Context, fc *FlagCase) error
	Delete(ctx context.Context, contentID string) error
	LoadAll(ctx context.Context) ([]*FlagCase, error)
}

// NopJournal discards snapshots, for deployments without redis.
type NopJournal struct{}

var _ Journal = (*NopJournal)(nil)

func (NopJournal) Save(ctx context.Context, fc *FlagCase) error       { return nil }
func (NopJournal) Delete(ctx context.Context, contentID string) error { return nil }
func (NopJournal) LoadAll(ctx context.Context) ([]*FlagCase, error)   { return nil, nil }
