package blueprint

import (
	"context"
	"errors"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
)

// Extractor turns an uploaded strategy document into blueprint fields.
type Extractor interface {
	ExtractContent(ctx context.Context, doc ai.Document) (string, error)
	ExtractBlueprint(ctx context.Context, documentContent string) (models.BlueprintPatch, error)
}

type Service struct {
	repo      Repository
	extractor Extractor
}

func NewService(repo Repository, extractor Extractor) *Service {
	return &Service{repo: repo, extractor: extractor}
}

func (s *Service) Get(ctx context.Context, p auth.Principal, orgID string) (*models.Blueprint, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	b, err := s.repo.Get(ctx, orgID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "organization has no blueprint")
	}
	if err != nil {
		logger.Errorf("blueprints: get %s: %v", orgID, err)
		return nil, apperr.Wrap(apperr.Internal, err, "load blueprint failed")
	}
	return b, nil
}

// Update merge-updates the blueprint. Existing scores are snapshots and are
// not recomputed.
func (s *Service) Update(ctx context.Context, p auth.Principal, orgID string, patch models.BlueprintPatch) (*models.Blueprint, error) {
	if err := canManage(p, orgID); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperr.New(apperr.InvalidArgument, "blueprint update sets no fields")
	}
	return s.merge(ctx, orgID, patch)
}

// Extract runs the content extractor and the blueprint extractor over doc
// and merges the result.
func (s *Service) Extract(ctx context.Context, p auth.Principal, orgID string, doc ai.Document) (*models.Blueprint, error) {
	if err := canManage(p, orgID); err != nil {
		return nil, err
	}
	if s.extractor == nil {
		return nil, apperr.New(apperr.ScoringFailed, "extraction service is not configured")
	}
	text, err := s.extractor.ExtractContent(ctx, doc)
	if err != nil {
		return nil, err
	}
	patch, err := s.extractor.ExtractBlueprint(ctx, text)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, apperr.New(apperr.ScoringFailed, "no blueprint fields found in document")
	}
	logger.Infow("blueprint extracted", logger.Fields{"org": orgID, "by": p.UserID, "chars": len(text)})
	return s.merge(ctx, orgID, patch)
}

// Serialized returns the blueprint as the JSON document sent to the scorer.
func (s *Service) Serialized(ctx context.Context, p auth.Principal, orgID string) (string, error) {
	b, err := s.Get(ctx, p, orgID)
	if err != nil {
		return "", err
	}
	if b.IsBlank() {
		return "", apperr.New(apperr.InvalidArgument, "organization blueprint is empty")
	}
	out, err := b.Serialize()
	if err != nil {
		return "", apperr.Wrap(apperr.Internal, err, "serialize blueprint")
	}
	return out, nil
}

func (s *Service) merge(ctx context.Context, orgID string, patch models.BlueprintPatch) (*models.Blueprint, error) {
	b, err := s.repo.Merge(ctx, orgID, patch)
	if err != nil {
		logger.Errorf("blueprints: merge %s: %v", orgID, err)
		return nil, apperr.Wrap(apperr.Internal, err, "save blueprint failed")
	}
	return b, nil
}

func canManage(p auth.Principal, orgID string) error {
	if err := p.RequireOrg(orgID); err != nil {
		return err
	}
	if p.Role != models.RoleAdmin && p.Role != models.RoleApprover {
		return apperr.New(apperr.PermissionDenied, "only approvers and admins can change the blueprint")
	}
	return nil
}
