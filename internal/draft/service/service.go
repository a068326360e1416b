package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/draft/repository"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/ezkiller2517/arkzkh-app/pkg/events"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

// Service is the draft workflow engine. Every operation takes the caller's
// principal and the organization named in the request path.
type Service struct {
	repo repository.Repository
	bus  *events.Bus
	wg   sync.WaitGroup
}

// New wires a service over repo. bus may be nil, in which case async
// failures are only logged.
func New(repo repository.Repository, bus *events.Bus) *Service {
	return &Service{repo: repo, bus: bus}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(bus *events.Bus) *Service {
	return New(repository.NewMemoryRepo(nil), bus)
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(col *mongo.Collection, bus *events.Bus) *Service {
	return New(repository.NewMongoRepo(col), bus)
}

// Save creates the draft on first save and merges title/content afterwards.
func (s *Service) Save(ctx context.Context, p auth.Principal, orgID string, patch draft.Patch) (*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	if !ids.ValidDraftID(patch.ID) {
		return nil, apperr.New(apperr.InvalidArgument, "draft id must be a UUID")
	}
	// one retry covers a concurrent create or a status change between read and write
	for attempt := 0; ; attempt++ {
		existing, err := s.repo.Get(ctx, orgID, patch.ID)
		if errors.Is(err, repository.ErrNotFound) {
			d, err := s.create(ctx, p, orgID, patch)
			if errors.Is(err, repository.ErrExists) {
				if attempt == 0 {
					continue
				}
				return nil, apperr.New(apperr.InvalidArgument, "draft id already in use")
			}
			return d, err
		}
		if err != nil {
			return nil, internal(err, "load draft")
		}
		if !patch.TouchesBody() {
			return existing, nil
		}
		if !draft.CanEdit(p.Role, existing.Status) {
			return nil, apperr.New(apperr.PermissionDenied, "%s cannot edit a draft in status %s", roleName(p), existing.Status)
		}
		d, err := s.repo.Update(ctx, orgID, patch.ID, existing.Status, repository.Changes{Title: patch.Title, Content: patch.Content})
		if errors.Is(err, repository.ErrStatusConflict) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, mapRepoErr(err, "save draft")
		}
		return d, nil
	}
}

func (s *Service) create(ctx context.Context, p auth.Principal, orgID string, patch draft.Patch) (*draft.Draft, error) {
	if !draft.CanCreate(p.Role) {
		return nil, apperr.New(apperr.PermissionDenied, "%s cannot create drafts", roleName(p))
	}
	d := &draft.Draft{
		ID:             patch.ID,
		OrganizationID: orgID,
		Status:         draft.StatusDraft,
		Author:         p.DisplayName,
		AuthorID:       p.UserID,
	}
	if patch.Title != nil {
		d.Title = *patch.Title
	}
	if patch.Content != nil {
		d.Content = *patch.Content
	}
	created, err := s.repo.Create(ctx, d)
	if errors.Is(err, repository.ErrExists) {
		return nil, err
	}
	if err != nil {
		return nil, internal(err, "create draft")
	}
	logger.Infow("draft created", logger.Fields{"org": orgID, "draftId": d.ID, "author": p.UserID})
	return created, nil
}

// SaveAsync validates synchronously and persists in the background. Write
// failures are published on the event bus instead of being returned.
func (s *Service) SaveAsync(ctx context.Context, p auth.Principal, orgID string, patch draft.Patch) error {
	if err := p.RequireOrg(orgID); err != nil {
		return err
	}
	if !ids.ValidDraftID(patch.ID) {
		return apperr.New(apperr.InvalidArgument, "draft id must be a UUID")
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.Save(bg, p, orgID, patch); err != nil {
			s.Report("save", p, orgID, patch.ID, err)
		}
	}()
	return nil
}

// Wait blocks until background writes started by SaveAsync finish.
func (s *Service) Wait() { s.wg.Wait() }

// Report publishes an asynchronous failure.
func (s *Service) Report(op string, p auth.Principal, orgID, draftID string, err error) {
	e := events.Event{
		Op:      op,
		OrgID:   orgID,
		DraftID: draftID,
		UserID:  p.UserID,
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.PublicMessage(err),
	}
	if s.bus == nil || s.bus.Publish(e) == 0 {
		logger.Errorw("async draft write failed", logger.Fields{"op": op, "draftId": draftID, "err": err})
	}
}

func (s *Service) Submit(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error) {
	return s.transition(ctx, p, orgID, id, draft.ActionSubmit, nil)
}

func (s *Service) Approve(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error) {
	return s.transition(ctx, p, orgID, id, draft.ActionApprove, nil)
}

// Reject requires non-empty feedback, stored on the draft.
func (s *Service) Reject(ctx context.Context, p auth.Principal, orgID, id, feedback string) (*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, apperr.New(apperr.InvalidArgument, "feedback is required to reject a draft")
	}
	return s.transition(ctx, p, orgID, id, draft.ActionReject, &feedback)
}

func (s *Service) transition(ctx context.Context, p auth.Principal, orgID, id string, action draft.Action, feedback *string) (*draft.Draft, error) {
	d, err := s.Get(ctx, p, orgID, id)
	if err != nil {
		return nil, err
	}
	next, ok := draft.Next(action, d.Status)
	if !ok {
		return nil, apperr.New(apperr.PermissionDenied, "cannot %s a draft in status %s", action, d.Status)
	}
	if !draft.CanTransition(p.Role, action, d.AuthorID == p.UserID) {
		return nil, apperr.New(apperr.PermissionDenied, "%s cannot %s this draft", roleName(p), action)
	}
	updated, err := s.repo.Transition(ctx, orgID, id, d.Status, next, feedback)
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, apperr.New(apperr.PermissionDenied, "draft status changed concurrently")
	}
	if err != nil {
		return nil, mapRepoErr(err, "transition draft")
	}
	metrics.DraftTransitions.WithLabelValues(string(next)).Inc()
	logger.Infow("draft transition", logger.Fields{"org": orgID, "draftId": id, "from": d.Status, "to": next, "by": p.UserID})
	return updated, nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	d, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, mapRepoErr(err, "load draft")
	}
	return d, nil
}

// List returns the organization's drafts; an empty status lists all.
func (s *Service) List(ctx context.Context, p auth.Principal, orgID string, status draft.Status) ([]*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	out, err := s.repo.List(ctx, orgID, status)
	if err != nil {
		return nil, internal(err, "list drafts")
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context, p auth.Principal, orgID string) (draft.Stats, error) {
	drafts, err := s.List(ctx, p, orgID, "")
	if err != nil {
		return draft.Stats{}, err
	}
	return draft.Summarize(drafts), nil
}

// ApplyScore persists score fields in one merge-update. Status is untouched.
func (s *Service) ApplyScore(ctx context.Context, p auth.Principal, orgID, id string, r draft.ScoreResult) (*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	if math.IsNaN(r.AlignmentScore) || r.AlignmentScore < 0 || r.AlignmentScore > 1 {
		return nil, apperr.New(apperr.InvalidArgument, "alignment score must be within [0, 1]")
	}
	d, err := s.repo.Update(ctx, orgID, id, "", repository.Changes{Score: &r})
	if err != nil {
		return nil, mapRepoErr(err, "apply score")
	}
	return d, nil
}

// AddAttachment appends a within the caller's edit window. Registering the
// same URL twice returns the draft unchanged.
func (s *Service) AddAttachment(ctx context.Context, p auth.Principal, orgID, id string, a draft.Attachment) (*draft.Draft, error) {
	if a.URL == "" || a.ObjectPath == "" {
		return nil, apperr.New(apperr.InvalidArgument, "attachment url and objectPath are required")
	}
	d, err := s.editable(ctx, p, orgID, id)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.AppendAttachment(ctx, orgID, id, a)
	if errors.Is(err, repository.ErrAttachmentExists) {
		return d, nil
	}
	if err != nil {
		return nil, mapRepoErr(err, "append attachment")
	}
	metrics.AttachmentsRegistered.Inc()
	return updated, nil
}

// RemoveAttachment drops the attachment with url. The stored object is kept.
func (s *Service) RemoveAttachment(ctx context.Context, p auth.Principal, orgID, id, url string) (*draft.Draft, error) {
	if url == "" {
		return nil, apperr.New(apperr.InvalidArgument, "url is required")
	}
	if _, err := s.editable(ctx, p, orgID, id); err != nil {
		return nil, err
	}
	updated, err := s.repo.RemoveAttachment(ctx, orgID, id, url)
	if err != nil {
		return nil, mapRepoErr(err, "remove attachment")
	}
	return updated, nil
}

func (s *Service) editable(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error) {
	d, err := s.Get(ctx, p, orgID, id)
	if err != nil {
		return nil, err
	}
	if !draft.CanEdit(p.Role, d.Status) {
		return nil, apperr.New(apperr.PermissionDenied, "%s cannot change attachments of a draft in status %s", roleName(p), d.Status)
	}
	return d, nil
}

func mapRepoErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, "draft not found")
	}
	return internal(err, op)
}

func internal(err error, op string) error {
	logger.Errorf("drafts: %s: %v", op, err)
	return apperr.Wrap(apperr.Internal, err, "%s failed", op)
}

func roleName(p auth.Principal) string {
	if p.Role == "" {
		return "user without role"
	}
	return string(p.Role)
}
