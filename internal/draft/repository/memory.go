package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
)

// MemoryRepo is an in-memory Repository used in development and tests.
// All mutations of one draft happen under a single lock, so attachment
// appends never lose updates.
type MemoryRepo struct {
	mu    sync.RWMutex
	clock clock.Clock
	store map[string]*draft.Draft
}

func NewMemoryRepo(c clock.Clock) *MemoryRepo {
	if c == nil {
		c = clock.Real{}
	}
	return &MemoryRepo{clock: c, store: make(map[string]*draft.Draft)}
}

func (m *MemoryRepo) Create(_ context.Context, d *draft.Draft) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[d.ID]; ok {
		return nil, ErrExists
	}
	stored := clone(d)
	now := m.clock.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Attachments == nil {
		stored.Attachments = []draft.Attachment{}
	}
	m.store[d.ID] = stored
	return clone(stored), nil
}

func (m *MemoryRepo) Get(_ context.Context, orgID, id string) (*draft.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.lookup(orgID, id)
	if !ok {
		return nil, ErrNotFound
	}
	return clone(d), nil
}

func (m *MemoryRepo) List(_ context.Context, orgID string, status draft.Status) ([]*draft.Draft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*draft.Draft, 0)
	for _, d := range m.store {
		if d.OrganizationID != orgID || (status != "" && d.Status != status) {
			continue
		}
		out = append(out, clone(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *MemoryRepo) Update(_ context.Context, orgID, id string, expect draft.Status, c Changes) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(orgID, id)
	if !ok {
		return nil, ErrNotFound
	}
	if expect != "" && d.Status != expect {
		return nil, ErrStatusConflict
	}
	if c.Title != nil {
		d.Title = *c.Title
	}
	if c.Content != nil {
		d.Content = *c.Content
	}
	if s := c.Score; s != nil {
		score := s.AlignmentScore
		d.AlignmentScore = &score
		d.Justification = s.Justification
		d.Suggestions = append([]string(nil), s.SuggestedActions...)
		d.Rationale = s.Rationale
		d.Feedback = s.Feedback
	}
	d.UpdatedAt = m.clock.Now()
	return clone(d), nil
}

func (m *MemoryRepo) Transition(_ context.Context, orgID, id string, from, to draft.Status, feedback *string) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(orgID, id)
	if !ok {
		return nil, ErrNotFound
	}
	if d.Status != from {
		return nil, ErrStatusConflict
	}
	d.Status = to
	if feedback != nil {
		d.Feedback = *feedback
	}
	d.UpdatedAt = m.clock.Now()
	return clone(d), nil
}

func (m *MemoryRepo) AppendAttachment(_ context.Context, orgID, id string, a draft.Attachment) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(orgID, id)
	if !ok {
		return nil, ErrNotFound
	}
	for _, existing := range d.Attachments {
		if existing.URL == a.URL {
			return nil, ErrAttachmentExists
		}
	}
	d.Attachments = append(d.Attachments, a)
	d.UpdatedAt = m.clock.Now()
	return clone(d), nil
}

func (m *MemoryRepo) RemoveAttachment(_ context.Context, orgID, id, url string) (*draft.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.lookup(orgID, id)
	if !ok {
		return nil, ErrNotFound
	}
	kept := make([]draft.Attachment, 0, len(d.Attachments))
	for _, a := range d.Attachments {
		if a.URL != url {
			kept = append(kept, a)
		}
	}
	d.Attachments = kept
	d.UpdatedAt = m.clock.Now()
	return clone(d), nil
}

// lookup must be called with m.mu held.
func (m *MemoryRepo) lookup(orgID, id string) (*draft.Draft, bool) {
	d, ok := m.store[id]
	if !ok || d.OrganizationID != orgID {
		return nil, false
	}
	return d, true
}

func clone(d *draft.Draft) *draft.Draft {
	c := *d
	c.Attachments = append([]draft.Attachment{}, d.Attachments...)
	if d.Suggestions != nil {
		c.Suggestions = append([]string(nil), d.Suggestions...)
	}
	if d.AlignmentScore != nil {
		s := *d.AlignmentScore
		c.AlignmentScore = &s
	}
	return &c
}
