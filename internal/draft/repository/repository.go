package repository

import (
	"context"
	"errors"

	"github.com/ezkiller2517/arkzkh-app/internal/draft"
)

var (
	ErrNotFound         = errors.New("draft not found")
	ErrExists           = errors.New("draft id already in use")
	ErrStatusConflict   = errors.New("draft status changed")
	ErrAttachmentExists = errors.New("attachment url already registered")
)

// Changes is a field-level merge. Nil fields are not written.
type Changes struct {
	Title   *string
	Content *string
	Score   *draft.ScoreResult
}

// Repository persists drafts per organization. Every write merges named
// fields and stamps updatedAt from the store's clock.
type Repository interface {
	Create(ctx context.Context, d *draft.Draft) (*draft.Draft, error)
	Get(ctx context.Context, orgID, id string) (*draft.Draft, error)
	// List returns the organization's drafts, newest update first. An empty
	// status lists all.
	List(ctx context.Context, orgID string, status draft.Status) ([]*draft.Draft, error)
	// Update applies c if the stored status equals expect (any status when
	// expect is empty).
	Update(ctx context.Context, orgID, id string, expect draft.Status, c Changes) (*draft.Draft, error)
	// Transition moves from -> to as a compare-and-set. feedback, when non-nil,
	// is written in the same update.
	Transition(ctx context.Context, orgID, id string, from, to draft.Status, feedback *string) (*draft.Draft, error)
	// AppendAttachment appends a unless an attachment with the same URL exists.
	AppendAttachment(ctx context.Context, orgID, id string, a draft.Attachment) (*draft.Draft, error)
	// RemoveAttachment drops the attachment with url; absent urls are a no-op.
	RemoveAttachment(ctx context.Context, orgID, id, url string) (*draft.Draft, error)
}
