package upload

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
)

// Drafts is the part of the draft service the registrar writes through.
type Drafts interface {
	Get(ctx context.Context, p auth.Principal, orgID, id string) (*draft.Draft, error)
	AddAttachment(ctx context.Context, p auth.Principal, orgID, id string, a draft.Attachment) (*draft.Draft, error)
}

// Registration is sent by the client after a successful transfer.
type Registration struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ObjectPath string `json:"objectPath"`
}

// Registrar turns a completed transfer into a draft attachment.
type Registrar struct {
	backend storage.Backend
	drafts  Drafts
	baseURL string
	readTTL time.Duration
}

// NewRegistrar builds attachment URLs under baseURL; an empty baseURL yields
// server-relative URLs.
func NewRegistrar(b storage.Backend, d Drafts, baseURL string, readTTL time.Duration) *Registrar {
	if readTTL <= 0 {
		readTTL = MaxExpiry
	}
	return &Registrar{backend: b, drafts: d, baseURL: strings.TrimRight(baseURL, "/"), readTTL: readTTL}
}

// DownloadURL is the stable attachment URL stored on the draft. It redirects
// to a short-lived read authorization.
func (r *Registrar) DownloadURL(orgID, draftID, objectPath string) string {
	return r.baseURL + "/api/orgs/" + url.PathEscape(orgID) + "/drafts/" + url.PathEscape(draftID) +
		"/attachments/download?objectPath=" + url.QueryEscape(objectPath)
}

// Register verifies that objectPath was issued for the draft and exists in the
// store, then appends it as an attachment.
func (r *Registrar) Register(ctx context.Context, p auth.Principal, orgID, draftID string, reg Registration) (*draft.Draft, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	if !BelongsToDraft(reg.ObjectPath, orgID, draftID) {
		return nil, apperr.New(apperr.InvalidArgument, "objectPath does not belong to this draft")
	}
	info, err := r.backend.Stat(ctx, reg.ObjectPath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, apperr.New(apperr.UploadFailed, "uploaded object not found")
	}
	if err != nil {
		logger.Errorw("object stat failed", logger.Fields{"org": orgID, "draftId": draftID, "objectPath": reg.ObjectPath, "err": err})
		return nil, apperr.Wrap(apperr.Internal, err, "stat object")
	}

	// the stored type is the one the signed transfer was bound to
	declared := strings.TrimSpace(reg.Type)
	if info.ContentType != "" && declared != "" && !strings.EqualFold(declared, info.ContentType) {
		return nil, apperr.New(apperr.InvalidArgument, "type %q does not match the stored object (%s)", declared, info.ContentType)
	}
	a := draft.Attachment{
		Name:       strings.TrimSpace(reg.Name),
		Type:       info.ContentType,
		ObjectPath: reg.ObjectPath,
		URL:        r.DownloadURL(orgID, draftID, reg.ObjectPath),
	}
	if a.Type == "" {
		a.Type = declared
	}
	if a.Name == "" {
		a.Name = reg.ObjectPath[strings.LastIndex(reg.ObjectPath, "/")+1:]
	}
	return r.drafts.AddAttachment(ctx, p, orgID, draftID, a)
}

// ReadURL issues a short-lived read authorization for an attachment of a
// draft the caller can see.
func (r *Registrar) ReadURL(ctx context.Context, p auth.Principal, orgID, draftID, objectPath string) (string, error) {
	if !BelongsToDraft(objectPath, orgID, draftID) {
		if err := p.RequireOrg(orgID); err != nil {
			return "", err
		}
		return "", apperr.New(apperr.InvalidArgument, "objectPath does not belong to this draft")
	}
	if _, err := r.drafts.Get(ctx, p, orgID, draftID); err != nil {
		return "", err
	}
	u, err := r.backend.PresignGet(ctx, objectPath, r.readTTL)
	if err != nil {
		logger.Errorw("read url issuance failed", logger.Fields{"org": orgID, "objectPath": objectPath, "err": err})
		return "", apperr.Wrap(apperr.Internal, err, "could not issue read url")
	}
	return u, nil
}
