// Package upload issues content-type-bound write authorizations for draft
// attachments. Bytes go straight from the client to the object store.
package upload

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
	"github.com/ezkiller2517/arkzkh-app/pkg/metrics"
)

const (
	DefaultContentType = "application/octet-stream"
	MinExpiry          = 10 * time.Minute
	MaxExpiry          = 15 * time.Minute
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	unsafe     = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// Request asks for one write authorization.
type Request struct {
	OrgID       string `json:"orgId"`
	DraftID     string `json:"draftId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType,omitempty"`
}

// SignedURL is the issued authorization. The transfer must send
// ContentType verbatim as its Content-Type header.
type SignedURL struct {
	URL         string    `json:"url"`
	ObjectPath  string    `json:"objectPath"`
	Bucket      string    `json:"bucket"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ContentType string    `json:"contentType"`
}

type Issuer struct {
	backend storage.Backend
	clock   clock.Clock
	expiry  time.Duration
}

// NewIssuer clamps expiry into [MinExpiry, MaxExpiry].
func NewIssuer(b storage.Backend, c clock.Clock, expiry time.Duration) *Issuer {
	if c == nil {
		c = clock.Real{}
	}
	return &Issuer{backend: b, clock: c, expiry: ClampExpiry(expiry)}
}

// ClampExpiry bounds d to the allowed authorization lifetime. Zero selects
// the minimum.
func ClampExpiry(d time.Duration) time.Duration {
	if d < MinExpiry {
		return MinExpiry
	}
	if d > MaxExpiry {
		return MaxExpiry
	}
	return d
}

// Issue validates the request and asks the backend for a signed PUT URL.
func (i *Issuer) Issue(ctx context.Context, p auth.Principal, req Request) (*SignedURL, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	req.OrgID = strings.TrimSpace(req.OrgID)
	req.DraftID = strings.TrimSpace(req.DraftID)
	switch {
	case req.OrgID == "":
		return nil, apperr.New(apperr.InvalidArgument, "orgId is required")
	case req.DraftID == "":
		return nil, apperr.New(apperr.InvalidArgument, "draftId is required")
	case strings.TrimSpace(req.FileName) == "":
		return nil, apperr.New(apperr.InvalidArgument, "fileName is required")
	}
	if err := p.RequireOrg(req.OrgID); err != nil {
		return nil, err
	}
	if strings.ContainsAny(req.DraftID, "/\\") {
		return nil, apperr.New(apperr.InvalidArgument, "draftId is malformed")
	}
	contentType := req.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = DefaultContentType
	}

	now := i.clock.Now()
	objectPath := ObjectPath(req.OrgID, req.DraftID, now, req.FileName)
	url, err := i.backend.PresignPut(ctx, objectPath, contentType, i.expiry)
	if err != nil {
		logger.Errorw("signed url issuance failed", logger.Fields{"org": req.OrgID, "draftId": req.DraftID, "err": err})
		return nil, apperr.Wrap(apperr.Internal, err, "could not issue upload url")
	}
	metrics.UploadURLsIssued.Inc()
	return &SignedURL{
		URL:         url,
		ObjectPath:  objectPath,
		Bucket:      i.backend.Bucket(),
		ExpiresAt:   now.Add(i.expiry),
		ContentType: contentType,
	}, nil
}

// SanitizeFileName replaces whitespace runs with "-" and drops everything
// outside [A-Za-z0-9._-].
func SanitizeFileName(name string) string {
	s := whitespace.ReplaceAllString(strings.TrimSpace(name), "-")
	s = unsafe.ReplaceAllString(s, "")
	if s == "" || s == "." || s == ".." {
		return "file"
	}
	return s
}

// DraftPrefix is the object path prefix every attachment of a draft shares.
func DraftPrefix(orgID, draftID string) string {
	return fmt.Sprintf("organizations/%s/drafts/%s/", orgID, draftID)
}

// ObjectPath builds the time-ordered storage path for one upload.
func ObjectPath(orgID, draftID string, at time.Time, fileName string) string {
	return fmt.Sprintf("%s%d-%s", DraftPrefix(orgID, draftID), at.UnixMilli(), SanitizeFileName(fileName))
}

// BelongsToDraft reports whether objectPath was issued for the draft.
func BelongsToDraft(objectPath, orgID, draftID string) bool {
	rest, ok := strings.CutPrefix(objectPath, DraftPrefix(orgID, draftID))
	return ok && rest != "" && !strings.Contains(rest, "/") && !strings.Contains(rest, "..")
}
