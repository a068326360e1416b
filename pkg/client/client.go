// Package client is a typed HTTP client for the drafts API, used by arkzctl
// and by integration tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/internal/upload"
)

// Client talks to one organization on one server with a bearer token.
type Client struct {
	base  *url.URL
	token string
	org   string
	http  *http.Client
}

// New parses baseURL. A nil hc uses a client without an overall timeout;
// scoring may take as long as the scorer needs, so calls are bounded only by
// their context.
func New(baseURL, token, orgID string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q must be absolute", baseURL)
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{base: u, token: token, org: orgID, http: hc}, nil
}

// OrgID returns the organization the client acts in.
func (c *Client) OrgID() string { return c.org }

// WithOrg returns a copy scoped to orgID.
func (c *Client) WithOrg(orgID string) *Client {
	cp := *c
	cp.org = orgID
	return &cp
}

// Resolve turns a server-relative reference (signed URLs and attachment URLs
// from the memory store) into an absolute URL. Absolute references are
// returned unchanged.
func (c *Client) Resolve(ref string) (string, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return c.base.ResolveReference(r).String(), nil
}

func (c *Client) orgPath(format string, args ...interface{}) string {
	return "/api/orgs/" + url.PathEscape(c.org) + fmt.Sprintf(format, args...)
}

// do sends a JSON request and decodes a JSON response into out. Error
// bodies become *apperr.Error with the server's code.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	target, err := c.Resolve(path)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Internal, err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.Internal, err, "decode %s response", path)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	code := apperr.FromHTTPStatus(resp.StatusCode)
	if json.Unmarshal(raw, &body) == nil && body.Code != "" {
		code = apperr.Code(body.Code)
	}
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return apperr.New(code, "%s", msg)
}

// Me returns the caller's profile.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Setup creates an organization with the caller as its first member and
// scopes the client to it.
func (c *Client) Setup(ctx context.Context, organizationName string, role models.Role) (*models.User, *models.Organization, error) {
	var out struct {
		User         models.User         `json:"user"`
		Organization models.Organization `json:"organization"`
	}
	req := map[string]string{"organizationName": organizationName, "role": string(role)}
	if err := c.do(ctx, http.MethodPost, "/api/setup", req, &out); err != nil {
		return nil, nil, err
	}
	c.org = out.Organization.ID
	return &out.User, &out.Organization, nil
}

// SetOwnRole switches the caller's role.
func (c *Client) SetOwnRole(ctx context.Context, role models.Role) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPut, "/api/users/me/role", map[string]string{"role": string(role)}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetDraft(ctx context.Context, id string) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodGet, c.orgPath("/drafts/%s", url.PathEscape(id)), nil)
}

// ListDrafts lists the organization's drafts; an empty status lists all.
func (c *Client) ListDrafts(ctx context.Context, status draft.Status) ([]*draft.Draft, error) {
	path := c.orgPath("/drafts")
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}
	var out struct {
		Drafts []*draft.Draft `json:"drafts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Drafts, nil
}

// SaveDraft creates or merge-updates the draft with patch.ID.
func (c *Client) SaveDraft(ctx context.Context, patch draft.Patch) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPut, c.orgPath("/drafts/%s", url.PathEscape(patch.ID)), patch)
}

func (c *Client) Submit(ctx context.Context, id string) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPost, c.orgPath("/drafts/%s/submit", url.PathEscape(id)), nil)
}

func (c *Client) Approve(ctx context.Context, id string) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPost, c.orgPath("/drafts/%s/approve", url.PathEscape(id)), nil)
}

func (c *Client) Reject(ctx context.Context, id, feedback string) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPost, c.orgPath("/drafts/%s/reject", url.PathEscape(id)), map[string]string{"feedback": feedback})
}

// Score runs the scorer on a stored draft and returns the updated draft.
func (c *Client) Score(ctx context.Context, id string) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPost, c.orgPath("/drafts/%s/score", url.PathEscape(id)), nil)
}

// ScoreContent scores text without a draft. Empty content is rejected
// locally before any request is made.
func (c *Client) ScoreContent(ctx context.Context, content string) (draft.ScoreResult, error) {
	var r draft.ScoreResult
	if strings.TrimSpace(content) == "" {
		return r, apperr.New(apperr.InvalidArgument, "content is required")
	}
	err := c.do(ctx, http.MethodPost, c.orgPath("/score"), map[string]string{"content": content}, &r)
	return r, err
}

func (c *Client) Suggest(ctx context.Context, id string) (ai.Suggestions, error) {
	var s ai.Suggestions
	err := c.do(ctx, http.MethodPost, c.orgPath("/drafts/%s/suggestions", url.PathEscape(id)), nil, &s)
	return s, err
}

// SignedURL asks for a write authorization. OrgID defaults to the client's.
func (c *Client) SignedURL(ctx context.Context, req upload.Request) (*upload.SignedURL, error) {
	if req.OrgID == "" {
		req.OrgID = c.org
	}
	var s upload.SignedURL
	if err := c.do(ctx, http.MethodPost, "/api/orgs/"+url.PathEscape(req.OrgID)+"/uploads/signed-url", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RegisterAttachment appends an uploaded object to the draft.
func (c *Client) RegisterAttachment(ctx context.Context, draftID string, reg upload.Registration) (*draft.Draft, error) {
	return c.draftCall(ctx, http.MethodPost, c.orgPath("/drafts/%s/attachments", url.PathEscape(draftID)), reg)
}

// RemoveAttachment drops the attachment with attachmentURL. The object stays
// in the store.
func (c *Client) RemoveAttachment(ctx context.Context, draftID, attachmentURL string) (*draft.Draft, error) {
	path := c.orgPath("/drafts/%s/attachments?url=%s", url.PathEscape(draftID), url.QueryEscape(attachmentURL))
	return c.draftCall(ctx, http.MethodDelete, path, nil)
}

func (c *Client) draftCall(ctx context.Context, method, path string, in interface{}) (*draft.Draft, error) {
	var d draft.Draft
	if err := c.do(ctx, method, path, in, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
