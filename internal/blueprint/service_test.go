package blueprint

import (
	"context"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	admin       = auth.Principal{UserID: "u-a", Role: models.RoleAdmin, OrganizationID: "org-1"}
	contributor = auth.Principal{UserID: "u-c", Role: models.RoleContributor, OrganizationID: "org-1"}
)

type fakeExtractor struct {
	gotDoc  ai.Document
	gotText string
}

func (f *fakeExtractor) ExtractContent(_ context.Context, doc ai.Document) (string, error) {
	f.gotDoc = doc
	return "Vision: lead the region", nil
}

func (f *fakeExtractor) ExtractBlueprint(_ context.Context, text string) (models.BlueprintPatch, error) {
	f.gotText = text
	v := "Lead the region"
	pillars := []string{"community"}
	return models.BlueprintPatch{Vision: &v, Pillars: &pillars}, nil
}

func strp(s string) *string { return &s }

func TestUpdateMergesAndStamps(t *testing.T) {
	clk := clock.Fixed()
	svc := NewService(NewMemoryRepo(clk), nil)
	ctx := context.Background()

	values := []string{"care", "craft"}
	b, err := svc.Update(ctx, admin, "org-1", models.BlueprintPatch{Mission: strp("Serve"), Values: &values})
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	require.Equal(t, clk.Now(), b.UpdatedAt)

	clk.Advance(time.Hour)
	b2, err := svc.Update(ctx, admin, "org-1", models.BlueprintPatch{Vision: strp("Lead")})
	require.NoError(t, err)
	require.Equal(t, b.ID, b2.ID)
	require.Equal(t, "Serve", b2.Mission)
	require.Equal(t, "Lead", b2.Vision)
	require.Equal(t, values, b2.Values)
	require.Equal(t, clk.Now(), b2.UpdatedAt)
}

func TestUpdateRules(t *testing.T) {
	svc := NewService(NewMemoryRepo(nil), nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, contributor, "org-1", models.BlueprintPatch{Vision: strp("x")})
	require.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))
	_, err = svc.Update(ctx, admin, "org-2", models.BlueprintPatch{Vision: strp("x")})
	require.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))
	_, err = svc.Update(ctx, admin, "org-1", models.BlueprintPatch{})
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
	_, err = svc.Get(ctx, contributor, "org-1")
	require.Equal(t, apperr.NotFound, apperr.CodeOf(err))
}

func TestSerializedRequiresContent(t *testing.T) {
	svc := NewService(NewMemoryRepo(nil), nil)
	ctx := context.Background()
	_, err := svc.Update(ctx, admin, "org-1", models.BlueprintPatch{Values: &[]string{}})
	require.NoError(t, err)
	_, err = svc.Serialized(ctx, contributor, "org-1")
	require.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))

	_, err = svc.Update(ctx, admin, "org-1", models.BlueprintPatch{Vision: strp("Lead")})
	require.NoError(t, err)
	out, err := svc.Serialized(ctx, contributor, "org-1")
	require.NoError(t, err)
	require.JSONEq(t, `{"vision":"Lead","mission":"","values":[],"objectives":[],"pillars":[],"taxonomyTerms":[]}`, out)
}

func TestExtractPipeline(t *testing.T) {
	ex := &fakeExtractor{}
	svc := NewService(NewMemoryRepo(nil), ex)
	ctx := context.Background()

	b, err := svc.Extract(ctx, admin, "org-1", ai.Document{URL: "https://files.example/strategy.pdf"})
	require.NoError(t, err)
	require.Equal(t, "https://files.example/strategy.pdf", ex.gotDoc.URL)
	require.Equal(t, "Vision: lead the region", ex.gotText)
	require.Equal(t, "Lead the region", b.Vision)
	require.Equal(t, []string{"community"}, b.Pillars)

	_, err = svc.Extract(ctx, contributor, "org-1", ai.Document{URL: "x"})
	require.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))
}
