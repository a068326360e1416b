package upload

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	path, contentType string
	expires           time.Duration
	err               error
}

func (r *recordingBackend) Bucket() string { return "arkz-uploads" }

func (r *recordingBackend) PresignPut(_ context.Context, p, ct string, exp time.Duration) (string, error) {
	r.path, r.contentType, r.expires = p, ct, exp
	if r.err != nil {
		return "", r.err
	}
	return "https://store.example/" + p, nil
}

func (r *recordingBackend) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (r *recordingBackend) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", nil
}

var contributor = auth.Principal{UserID: "u-1", Role: models.RoleContributor, OrganizationID: "org-1"}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":            "photo.jpg",
		"my summer  photo.jpg": "my-summer-photo.jpg",
		"résumé (final).pdf":   "rsum-final.pdf",
		"../../etc/passwd":     "....etcpasswd",
		"   ":                  "file",
		"###":                  "file",
		"..":                   "file",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeFileName(in), "SanitizeFileName(%q)", in)
	}
}

func TestIssueBindsContentTypeAndPath(t *testing.T) {
	be := &recordingBackend{}
	clk := clock.Fixed()
	iss := NewIssuer(be, clk, 0)

	got, err := iss.Issue(context.Background(), contributor, Request{OrgID: "org-1", DraftID: "d-1", FileName: "photo.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	wantPath := "organizations/org-1/drafts/d-1/1741597200000-photo.jpg"
	require.Equal(t, wantPath, got.ObjectPath)
	require.Equal(t, wantPath, be.path)
	require.Equal(t, "image/jpeg", be.contentType)
	require.Equal(t, "image/jpeg", got.ContentType)
	require.Equal(t, "arkz-uploads", got.Bucket)
	require.Equal(t, MinExpiry, be.expires)
	require.Equal(t, clk.Now().Add(10*time.Minute), got.ExpiresAt)
	require.True(t, BelongsToDraft(got.ObjectPath, "org-1", "d-1"))
	require.False(t, BelongsToDraft(got.ObjectPath, "org-1", "d-2"))
}

func TestIssueDefaultsContentType(t *testing.T) {
	be := &recordingBackend{}
	got, err := NewIssuer(be, nil, 0).Issue(context.Background(), contributor, Request{OrgID: "org-1", DraftID: "d-1", FileName: "blob"})
	require.NoError(t, err)
	require.Equal(t, DefaultContentType, got.ContentType)
	require.Equal(t, DefaultContentType, be.contentType)
}

func TestIssueFailures(t *testing.T) {
	cases := []struct {
		name string
		p    auth.Principal
		req  Request
		err  error
		code apperr.Code
	}{
		{"anonymous", auth.Principal{}, Request{OrgID: "org-1", DraftID: "d", FileName: "f"}, nil, apperr.Unauthenticated},
		{"missing org", contributor, Request{DraftID: "d", FileName: "f"}, nil, apperr.InvalidArgument},
		{"missing draft", contributor, Request{OrgID: "org-1", FileName: "f"}, nil, apperr.InvalidArgument},
		{"missing file", contributor, Request{OrgID: "org-1", DraftID: "d", FileName: "  "}, nil, apperr.InvalidArgument},
		{"other org", contributor, Request{OrgID: "org-2", DraftID: "d", FileName: "f"}, nil, apperr.PermissionDenied},
		{"backend", contributor, Request{OrgID: "org-1", DraftID: "d", FileName: "f"}, errors.New("dial tcp: refused"), apperr.Internal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			be := &recordingBackend{err: tc.err}
			_, err := NewIssuer(be, nil, 0).Issue(context.Background(), tc.p, tc.req)
			require.Equal(t, tc.code, apperr.CodeOf(err))
			if tc.code == apperr.Internal {
				require.Equal(t, "internal error", apperr.PublicMessage(err))
			}
		})
	}
}

func TestClampExpiry(t *testing.T) {
	require.Equal(t, MinExpiry, ClampExpiry(0))
	require.Equal(t, MinExpiry, ClampExpiry(time.Minute))
	require.Equal(t, 12*time.Minute, ClampExpiry(12*time.Minute))
	require.Equal(t, MaxExpiry, ClampExpiry(time.Hour))
}
