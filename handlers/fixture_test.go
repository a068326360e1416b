package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/ai"
	"github.com/ezkiller2517/arkzkh-app/internal/alignment"
	"github.com/ezkiller2517/arkzkh-app/internal/blueprint"
	"github.com/ezkiller2517/arkzkh-app/internal/clock"
	"github.com/ezkiller2517/arkzkh-app/internal/draft/service"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/internal/storage"
	"github.com/ezkiller2517/arkzkh-app/internal/upload"
	"github.com/ezkiller2517/arkzkh-app/internal/users"
	"github.com/ezkiller2517/arkzkh-app/pkg/events"
	"github.com/ezkiller2517/arkzkh-app/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// subjectToken treats the bearer value as the subject id.
type subjectToken string

func (s subjectToken) Claims(v interface{}) error {
	m, ok := v.(*map[string]interface{})
	if !ok {
		return fmt.Errorf("unsupported claims type %T", v)
	}
	*m = map[string]interface{}{"sub": string(s), "name": "name-" + string(s)}
	return nil
}

type subjectVerifier struct{}

func (subjectVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	if raw == "bad" {
		return nil, fmt.Errorf("signature mismatch")
	}
	return subjectToken(raw), nil
}

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	users  *users.MemoryUserRepository
	drafts *service.Service
	mem    *storage.MemoryStorage
	bus    *events.Bus
	scorer *httptest.Server
	org    string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	scorer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/score":
			_, _ = w.Write([]byte(`{"alignmentScore":0.75,"justification":"fits","suggestedActions":["cite data"],"rationale":"mentions pillars"}`))
		case "/suggest":
			_, _ = w.Write([]byte(`{"suggestions":["shorter title"],"rationale":"clarity"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(scorer.Close)

	clk := clock.Fixed()
	bus := events.NewBus()
	userRepo := users.NewMemoryUserRepository(clk)
	userSvc := users.NewService(userRepo)
	drafts := service.NewMemoryService(bus)
	client := ai.NewScorerClient(scorer.URL, time.Second, nil)
	bps := blueprint.NewService(blueprint.NewMemoryRepo(clk), client)
	mem := storage.NewMemoryStorage("arkz-uploads", "", []byte("k"), clk)

	router := NewRouter(Deps{
		Verifier:    subjectVerifier{},
		Users:       userSvc,
		UsersAPI:    NewUserHandler(userSvc),
		Drafts:      NewDraftHandler(drafts, alignment.NewService(client, drafts, bps)),
		Uploads:     NewUploadHandler(upload.NewIssuer(mem, clk, 0), upload.NewRegistrar(mem, drafts, "", time.Minute), drafts),
		Blueprint:   NewBlueprintHandler(bps),
		ObjectStore: mem.Handler(),
	})
	f := &apiFixture{t: t, router: router, users: userRepo, drafts: drafts, mem: mem, bus: bus, scorer: scorer, org: "org_acme"}
	f.member("ada", models.RoleAdmin)
	f.member("cora", models.RoleContributor)
	f.member("avi", models.RoleApprover)
	return f
}

// member stores a profile in the fixture organization.
func (f *apiFixture) member(id string, role models.Role) {
	u := &models.User{ID: id, DisplayName: "name-" + id, OrganizationID: f.org, Role: role}
	err := f.users.CreateWithOrganization(context.Background(), &models.Organization{ID: f.org, Name: "Acme"}, u)
	require.NoError(f.t, err)
}

func (f *apiFixture) do(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if payload != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) orgPath(format string, args ...interface{}) string {
	return "/api/orgs/" + f.org + fmt.Sprintf(format, args...)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type jsonBody map[string]interface{}
