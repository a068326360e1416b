// Package ai talks to the external scoring service: alignment scoring,
// draft suggestions, document content extraction and blueprint extraction.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
)

// maxResponse caps how much of a scorer response is read.
const maxResponse = 4 << 20

// ScorerClient calls the scoring service. Calls are never retried.
type ScorerClient struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
}

// NewScorerClient returns a client for baseURL. A zero timeout leaves the
// call bounded only by the caller's context.
func NewScorerClient(baseURL string, timeout time.Duration, hc *http.Client) *ScorerClient {
	if hc == nil {
		hc = &http.Client{}
	}
	return &ScorerClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc, timeout: timeout}
}

// Configured reports whether a scorer URL was set.
func (c *ScorerClient) Configured() bool { return c != nil && c.baseURL != "" }

type scoreRequest struct {
	Content            string `json:"content"`
	StrategicBlueprint string `json:"strategicBlueprint"`
}

type scoreResponse struct {
	AlignmentScore   *float64 `json:"alignmentScore"`
	Justification    string   `json:"justification"`
	SuggestedActions []string `json:"suggestedActions"`
	Rationale        string   `json:"rationale"`
	Feedback         *string  `json:"feedback"`
}

// Score rates content against a serialized blueprint. Empty inputs fail
// with InvalidArgument before any request is made.
func (c *ScorerClient) Score(ctx context.Context, content, blueprint string) (draft.ScoreResult, error) {
	if strings.TrimSpace(content) == "" {
		return draft.ScoreResult{}, apperr.New(apperr.InvalidArgument, "content is required for scoring")
	}
	if strings.TrimSpace(blueprint) == "" {
		return draft.ScoreResult{}, apperr.New(apperr.InvalidArgument, "a strategic blueprint is required for scoring")
	}
	var out scoreResponse
	if err := c.post(ctx, "/score", scoreRequest{Content: content, StrategicBlueprint: blueprint}, &out); err != nil {
		metrics.ScoringRequests.WithLabelValues("failed").Inc()
		return draft.ScoreResult{}, err
	}
	res, err := normalize(out)
	if err != nil {
		metrics.ScoringRequests.WithLabelValues("failed").Inc()
		return draft.ScoreResult{}, err
	}
	metrics.ScoringRequests.WithLabelValues("ok").Inc()
	return res, nil
}

// normalize enforces the score range and backfills feedback from rationale.
func normalize(r scoreResponse) (draft.ScoreResult, error) {
	if r.AlignmentScore == nil {
		return draft.ScoreResult{}, apperr.New(apperr.ScoringFailed, "scorer returned no alignment score")
	}
	score := *r.AlignmentScore
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 || score > 1 {
		return draft.ScoreResult{}, apperr.New(apperr.ScoringFailed, "scorer returned alignment score %v outside [0, 1]", score)
	}
	res := draft.ScoreResult{
		AlignmentScore:   score,
		Justification:    r.Justification,
		SuggestedActions: r.SuggestedActions,
		Rationale:        r.Rationale,
	}
	if res.SuggestedActions == nil {
		res.SuggestedActions = []string{}
	}
	if r.Feedback != nil && *r.Feedback != "" {
		res.Feedback = *r.Feedback
	} else {
		res.Feedback = r.Rationale
	}
	return res, nil
}

// Suggestions are improvement ideas for a draft. They are returned to the
// caller, not persisted.
type Suggestions struct {
	Suggestions []string `json:"suggestions"`
	Rationale   string   `json:"rationale"`
}

func (c *ScorerClient) Suggest(ctx context.Context, content, blueprint string) (Suggestions, error) {
	if strings.TrimSpace(content) == "" || strings.TrimSpace(blueprint) == "" {
		return Suggestions{}, apperr.New(apperr.InvalidArgument, "draft content and blueprint are required")
	}
	var out Suggestions
	req := map[string]string{"draftContent": content, "strategicBlueprint": blueprint}
	if err := c.post(ctx, "/suggest", req, &out); err != nil {
		return Suggestions{}, err
	}
	if out.Suggestions == nil {
		out.Suggestions = []string{}
	}
	return out, nil
}

// Document is the extractor input: exactly one of URL or Data (a base64
// data URI) is set.
type Document struct {
	URL  string `json:"url,omitempty"`
	Data string `json:"data,omitempty"`
}

// ExtractContent returns the plain text of a document.
func (c *ScorerClient) ExtractContent(ctx context.Context, doc Document) (string, error) {
	if (doc.URL == "") == (doc.Data == "") {
		return "", apperr.New(apperr.InvalidArgument, "exactly one of document url or data is required")
	}
	if doc.Data != "" && !strings.HasPrefix(doc.Data, "data:") {
		return "", apperr.New(apperr.InvalidArgument, "document data must be a data URI")
	}
	var out struct {
		Content string `json:"content"`
	}
	if err := c.post(ctx, "/extract-content", map[string]Document{"document": doc}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

// ExtractBlueprint derives blueprint fields from document text.
func (c *ScorerClient) ExtractBlueprint(ctx context.Context, documentContent string) (models.BlueprintPatch, error) {
	if strings.TrimSpace(documentContent) == "" {
		return models.BlueprintPatch{}, apperr.New(apperr.InvalidArgument, "document content is required")
	}
	var out struct {
		Vision        *string  `json:"vision"`
		Mission       *string  `json:"mission"`
		Values        []string `json:"values"`
		Objectives    []string `json:"objectives"`
		Pillars       []string `json:"pillars"`
		TaxonomyTerms []string `json:"taxonomyTerms"`
	}
	if err := c.post(ctx, "/extract-blueprint", map[string]string{"documentContent": documentContent}, &out); err != nil {
		return models.BlueprintPatch{}, err
	}
	p := models.BlueprintPatch{Vision: out.Vision, Mission: out.Mission}
	if out.Values != nil {
		p.Values = &out.Values
	}
	if out.Objectives != nil {
		p.Objectives = &out.Objectives
	}
	if out.Pillars != nil {
		p.Pillars = &out.Pillars
	}
	if out.TaxonomyTerms != nil {
		p.TaxonomyTerms = &out.TaxonomyTerms
	}
	return p, nil
}

// post sends one JSON request. Every failure past validation is
// ScoringFailed; the raw cause is only logged.
func (c *ScorerClient) post(ctx context.Context, path string, in, out interface{}) error {
	if !c.Configured() {
		return apperr.New(apperr.ScoringFailed, "scoring service is not configured")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	body, err := json.Marshal(in)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "encode scorer request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "build scorer request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warnf("scorer %s: transport error after %s: %v", path, time.Since(start), err)
		return apperr.Wrap(apperr.ScoringFailed, err, "scoring service unavailable")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		return apperr.Wrap(apperr.ScoringFailed, err, "read scorer response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warnf("scorer %s returned %d: %s", path, resp.StatusCode, truncate(string(raw), 256))
		return apperr.New(apperr.ScoringFailed, "scoring service returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Wrap(apperr.ScoringFailed, err, "malformed scorer response")
	}
	logger.Debugf("scorer %s ok in %s", path, time.Since(start))
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...(%d bytes)", s[:n], len(s))
}
