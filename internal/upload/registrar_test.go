package upload

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/draft/service"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/stretchr/testify/require"
)

type registrarFixture struct {
	mem     *storage.MemoryStorage
	issuer  *Issuer
	reg     *Registrar
	drafts  *service.Service
	draftID string
}

func newRegistrarFixture(t *testing.T) *registrarFixture {
	t.Helper()
	clk := clock.Fixed()
	mem := storage.NewMemoryStorage("arkz-uploads", "", []byte("k"), clk)
	drafts := service.NewMemoryService(nil)
	title := "Spring launch"
	id := ids.NewDraftID()
	_, err := drafts.Save(context.Background(), contributor, "org-1", draft.Patch{ID: id, Title: &title})
	require.NoError(t, err)
	return &registrarFixture{
		mem:     mem,
		issuer:  NewIssuer(mem, clk, 0),
		reg:     NewRegistrar(mem, drafts, "https://api.arkz.test/", time.Minute),
		drafts:  drafts,
		draftID: id,
	}
}

func (f *registrarFixture) transfer(t *testing.T, signed *SignedURL, contentType string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPut, signed.URL, bytes.NewReader([]byte("bytes")))
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	f.mem.Handler().ServeHTTP(rec, req)
	return rec.Code
}

func TestRegisterAppendsVerifiedObject(t *testing.T) {
	f := newRegistrarFixture(t)
	ctx := context.Background()
	signed, err := f.issuer.Issue(ctx, contributor, Request{OrgID: "org-1", DraftID: f.draftID, FileName: "photo.jpg", ContentType: "image/jpeg"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.transfer(t, signed, "image/jpeg"))

	d, err := f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{Name: "photo.jpg", ObjectPath: signed.ObjectPath})
	require.NoError(t, err)
	require.Len(t, d.Attachments, 1)
	a := d.Attachments[0]
	require.Equal(t, "image/jpeg", a.Type, "type comes from the stored object")
	require.Equal(t, signed.ObjectPath, a.ObjectPath)

	u, err := url.Parse(a.URL)
	require.NoError(t, err)
	require.Equal(t, "api.arkz.test", u.Host)
	require.Equal(t, "/api/orgs/org-1/drafts/"+f.draftID+"/attachments/download", u.Path)
	require.Equal(t, signed.ObjectPath, u.Query().Get("objectPath"))

	// registering again is a no-op
	d, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{Name: "photo.jpg", ObjectPath: signed.ObjectPath})
	require.NoError(t, err)
	require.Len(t, d.Attachments, 1)

	read, err := f.reg.ReadURL(ctx, contributor, "org-1", f.draftID, signed.ObjectPath)
	require.NoError(t, err)
	require.Contains(t, read, "/storage/arkz-uploads/"+signed.ObjectPath)
}

func TestRegisterKeepsStoredType(t *testing.T) {
	f := newRegistrarFixture(t)
	ctx := context.Background()
	signed, err := f.issuer.Issue(ctx, contributor, Request{OrgID: "org-1", DraftID: f.draftID, FileName: "chart.png", ContentType: "image/png"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.transfer(t, signed, "image/png"))

	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{Name: "chart.png", Type: "text/html", ObjectPath: signed.ObjectPath})
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
	d, err := f.drafts.Get(ctx, contributor, "org-1", f.draftID)
	require.NoError(t, err)
	require.Empty(t, d.Attachments)

	d, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{Name: "chart.png", Type: "IMAGE/PNG", ObjectPath: signed.ObjectPath})
	require.NoError(t, err)
	require.Len(t, d.Attachments, 1)
	require.Equal(t, "image/png", d.Attachments[0].Type)
}

func TestRegisterRejectsMissingOrForeignObjects(t *testing.T) {
	f := newRegistrarFixture(t)
	ctx := context.Background()

	// authorized but never transferred
	signed, err := f.issuer.Issue(ctx, contributor, Request{OrgID: "org-1", DraftID: f.draftID, FileName: "a.png", ContentType: "image/png"})
	require.NoError(t, err)
	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{ObjectPath: signed.ObjectPath})
	require.Equal(t, apperr.UploadFailed, apperr.CodeOf(err))

	// a mismatched transfer stores nothing either
	require.Equal(t, http.StatusForbidden, f.transfer(t, signed, "application/octet-stream"))
	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{ObjectPath: signed.ObjectPath})
	require.Equal(t, apperr.UploadFailed, apperr.CodeOf(err))

	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{ObjectPath: "organizations/org-1/drafts/other/1-a.png"})
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{ObjectPath: DraftPrefix("org-1", f.draftID) + "../x"})
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))

	outsider := auth.Principal{UserID: "u-9", Role: models.RoleContributor, OrganizationID: "org-2"}
	_, err = f.reg.Register(ctx, outsider, "org-1", f.draftID, Registration{ObjectPath: signed.ObjectPath})
	require.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))

	d, err := f.drafts.Get(ctx, contributor, "org-1", f.draftID)
	require.NoError(t, err)
	require.Empty(t, d.Attachments)
}

func TestRegisterOutsideEditWindow(t *testing.T) {
	f := newRegistrarFixture(t)
	ctx := context.Background()
	signed, err := f.issuer.Issue(ctx, contributor, Request{OrgID: "org-1", DraftID: f.draftID, FileName: "late.pdf", ContentType: "application/pdf"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.transfer(t, signed, "application/pdf"))

	_, err = f.drafts.Submit(ctx, contributor, "org-1", f.draftID)
	require.NoError(t, err)

	_, err = f.reg.Register(ctx, contributor, "org-1", f.draftID, Registration{ObjectPath: signed.ObjectPath})
	require.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))
}

func TestReadURLRequiresVisibleDraft(t *testing.T) {
	f := newRegistrarFixture(t)
	ctx := context.Background()
	path := DraftPrefix("org-1", "missing") + "1-a.png"
	_, err := f.reg.ReadURL(ctx, contributor, "org-1", "missing", path)
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))

	_, err = f.reg.ReadURL(ctx, contributor, "org-1", f.draftID, "elsewhere/a.png")
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
}
