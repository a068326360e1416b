// Package alignment scores drafts against their organization's blueprint.
package alignment

import (
	"context"
	"sync"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
)

// Scorer is the subset of ai.ScorerClient used here.
type Scorer interface {
	Score(ctx context.Context, content, blueprint string) (draft.ScoreResult, error)
	Suggest(ctx context.Context, content, blueprint string) (ai.Suggestions, error)
}

// Drafts is the subset of the draft workflow engine used here.
type Drafts interface {
	Get(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error)
	ApplyScore(ctx context.Context, p auth.Principal, orgID, id string, r draft.ScoreResult) (*draft.Draft, error)
	Report(op string, p auth.Principal, orgID, draftID string, err error)
}

// Blueprints serializes an organization's blueprint for the scorer.
type Blueprints interface {
	Serialized(ctx context.Context, p auth.Principal, orgID string) (string, error)
}

type Service struct {
	scorer     Scorer
	drafts     Drafts
	blueprints Blueprints
	wg         sync.WaitGroup
}

func NewService(s Scorer, d Drafts, b Blueprints) *Service {
	return &Service{scorer: s, drafts: d, blueprints: b}
}

// ScoreDraft scores the stored draft content and persists the result. On
// failure the draft's previous score fields are left as they were.
func (s *Service) ScoreDraft(ctx context.Context, p auth.Principal, orgID, draftID string) (*draft.Draft, error) {
	d, bp, err := s.inputs(ctx, p, orgID, draftID)
	if err != nil {
		return nil, err
	}
	res, err := s.scorer.Score(ctx, d.Content, bp)
	if err != nil {
		logger.Warnw("draft scoring failed", logger.Fields{"org": orgID, "draftId": draftID, "code": apperr.CodeOf(err)})
		return nil, err
	}
	return s.drafts.ApplyScore(ctx, p, orgID, draftID, res)
}

// ScoreDraftAsync validates inputs, then scores in the background and
// reports failures on the draft event bus.
func (s *Service) ScoreDraftAsync(ctx context.Context, p auth.Principal, orgID, draftID string) error {
	d, bp, err := s.inputs(ctx, p, orgID, draftID)
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.scorer.Score(bg, d.Content, bp)
		if err == nil {
			_, err = s.drafts.ApplyScore(bg, p, orgID, draftID, res)
		}
		if err != nil {
			s.drafts.Report("score", p, orgID, draftID, err)
		}
	}()
	return nil
}

// Wait blocks until background scoring finishes.
func (s *Service) Wait() { s.wg.Wait() }

// ScoreContent scores arbitrary text against the organization blueprint
// without touching any draft.
func (s *Service) ScoreContent(ctx context.Context, p auth.Principal, orgID, content string) (draft.ScoreResult, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return draft.ScoreResult{}, err
	}
	if content == "" {
		return draft.ScoreResult{}, apperr.New(apperr.InvalidArgument, "content is required for scoring")
	}
	bp, err := s.blueprints.Serialized(ctx, p, orgID)
	if err != nil {
		return draft.ScoreResult{}, err
	}
	return s.scorer.Score(ctx, content, bp)
}

// Suggest returns improvement ideas for a draft. Nothing is persisted.
func (s *Service) Suggest(ctx context.Context, p auth.Principal, orgID, draftID string) (ai.Suggestions, error) {
	d, bp, err := s.inputs(ctx, p, orgID, draftID)
	if err != nil {
		return ai.Suggestions{}, err
	}
	return s.scorer.Suggest(ctx, d.Content, bp)
}

func (s *Service) inputs(ctx context.Context, p auth.Principal, orgID, draftID string) (*draft.Draft, string, error) {
	d, err := s.drafts.Get(ctx, p, orgID, draftID)
	if err != nil {
		return nil, "", err
	}
	if d.Content == "" {
		return nil, "", apperr.New(apperr.InvalidArgument, "draft has no content to score")
	}
	bp, err := s.blueprints.Serialized(ctx, p, orgID)
	if err != nil {
		return nil, "", err
	}
	return d, bp, nil
}
