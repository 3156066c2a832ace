package decisionstore

import (
	"context"
	"sync"
	"time"
)

// MemDecisionStore keeps decisions in process memory. Intended for tests and
// single-node deployments without a database.
type MemDecisionStore struct {
	mu       sync.Mutex
	primary  map[string]*Decision
	pointers map[string]string
	order    []string
}

var _ DecisionStore = (*MemDecisionStore)(nil)

func NewMemDecisionStore() *MemDecisionStore {
	return &MemDecisionStore{
		primary:  make(map[string]*Decision),
		pointers: make(map[string]string),
	}
}

func (s *MemDecisionStore) Put(ctx context.Context, d *Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := *d
	cpy.VariantFingerprints = append([]string(nil), d.VariantFingerprints...)
	if cpy.CreatedAt.IsZero() {
		cpy.CreatedAt = time.Now()
	}

	if _, exists := s.primary[cpy.PrimaryFingerprint]; exists {
		// re-judgement counts as the newest decision
		for i, fp := range s.order {
			if fp == cpy.PrimaryFingerprint {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.order = append(s.order, cpy.PrimaryFingerprint)
	s.primary[cpy.PrimaryFingerprint] = &cpy
	s.pointers[cpy.PrimaryFingerprint] = cpy.PrimaryFingerprint
	for _, fp := range cpy.VariantFingerprints {
		s.pointers[fp] = cpy.PrimaryFingerprint
	}
	return nil
}

func (s *MemDecisionStore) Get(ctx context.Context, fingerprint string) (*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	primaryFP, ok := s.pointers[fingerprint]
	if !ok {
		return nil, nil
	}
	d, ok := s.primary[primaryFP]
	if !ok {
		return nil, nil
	}
	cpy := *d
	cpy.VariantFingerprints = append([]string(nil), d.VariantFingerprints...)
	return &cpy, nil
}

func (s *MemDecisionStore) RecentWindow(ctx context.Context, limit int) ([]*Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Decision, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		d := s.primary[s.order[i]]
		cpy := *d
		cpy.VariantFingerprints = nil
		out = append(out, &cpy)
	}
	return out, nil
}
