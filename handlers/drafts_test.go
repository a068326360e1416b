package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/ezkiller2517/arkzkh-app/internal/draft"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/stretchr/testify/require"
)

func TestDraftApprovalOverHTTP(t *testing.T) {
	f := newAPI(t)
	id := ids.NewDraftID()

	w := f.do(http.MethodPut, f.orgPath("/drafts/%s", id), "cora", jsonBody{"title": "Launch", "content": "We grow the community"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decodeBody[draft.Draft](t, w)
	require.Equal(t, draft.StatusDraft, d.Status)
	require.Equal(t, "name-cora", d.Author)

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/approve", id), "avi", nil)
	require.Equal(t, http.StatusForbidden, w.Code, "cannot approve a draft that is not in review")
	require.Equal(t, "PERMISSION_DENIED", decodeBody[errorBody](t, w).Code)

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/submit", id), "cora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, draft.StatusInReview, decodeBody[draft.Draft](t, w).Status)

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/approve", id), "cora", nil)
	require.Equal(t, http.StatusForbidden, w.Code, "contributors cannot approve")

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/approve", id), "avi", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, draft.StatusApproved, decodeBody[draft.Draft](t, w).Status)

	w = f.do(http.MethodGet, f.orgPath("/drafts?status=Approved"), "cora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody[struct {
		Drafts []draft.Draft `json:"drafts"`
	}](t, w)
	require.Len(t, list.Drafts, 1)

	w = f.do(http.MethodGet, f.orgPath("/drafts/stats"), "cora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decodeBody[draft.Stats](t, w)
	require.Equal(t, 1, stats.ByStatus[draft.StatusApproved])
}

func TestRejectRequiresFeedback(t *testing.T) {
	f := newAPI(t)
	id := ids.NewDraftID()
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, f.orgPath("/drafts/%s", id), "cora", jsonBody{"title": "x"}).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, f.orgPath("/drafts/%s/submit", id), "cora", nil).Code)

	w := f.do(http.MethodPost, f.orgPath("/drafts/%s/reject", id), "avi", jsonBody{"feedback": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/reject", id), "avi", jsonBody{"feedback": "needs a source"})
	require.Equal(t, http.StatusOK, w.Code)
	d := decodeBody[draft.Draft](t, w)
	require.Equal(t, draft.StatusRejected, d.Status)
	require.Equal(t, "needs a source", d.Feedback)
}

func TestScoreRoutes(t *testing.T) {
	f := newAPI(t)
	vision := "Grow the community"
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, f.orgPath("/blueprint"), "ada", jsonBody{"vision": vision}).Code)

	id := ids.NewDraftID()
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, f.orgPath("/drafts/%s", id), "cora", jsonBody{"content": "Meetup on Friday"}).Code)

	w := f.do(http.MethodPost, f.orgPath("/drafts/%s/score", id), "cora", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d := decodeBody[draft.Draft](t, w)
	require.NotNil(t, d.AlignmentScore)
	require.InDelta(t, 0.75, *d.AlignmentScore, 1e-9)
	require.Equal(t, draft.StatusDraft, d.Status)

	w = f.do(http.MethodPost, f.orgPath("/drafts/%s/suggestions", id), "cora", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "shorter title")

	w = f.do(http.MethodPost, f.orgPath("/score"), "cora", jsonBody{"content": ""})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "INVALID_ARGUMENT", decodeBody[errorBody](t, w).Code)
}

func TestAsyncSaveAcknowledges(t *testing.T) {
	f := newAPI(t)
	id := ids.NewDraftID()
	w := f.do(http.MethodPut, f.orgPath("/drafts/%s?async=true", id), "cora", jsonBody{"title": "later"})
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		return f.do(http.MethodGet, f.orgPath("/drafts/%s", id), "cora", nil).Code == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	w = f.do(http.MethodPut, f.orgPath("/drafts/not-a-uuid?async=true"), "cora", jsonBody{"title": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code, "validation stays synchronous")
}

func TestErrorMapping(t *testing.T) {
	f := newAPI(t)

	w := f.do(http.MethodGet, f.orgPath("/drafts/%s", ids.NewDraftID()), "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, f.orgPath("/drafts/%s", ids.NewDraftID()), "bad", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodGet, f.orgPath("/drafts/%s", ids.NewDraftID()), "cora", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, errorBody{Error: "draft not found", Code: "NOT_FOUND"}, decodeBody[errorBody](t, w))

	w = f.do(http.MethodGet, "/api/orgs/org_other/drafts", "cora", nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(http.MethodGet, f.orgPath("/drafts?status=Archived"), "cora", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// signed in but not set up yet
	w = f.do(http.MethodGet, f.orgPath("/drafts"), "stranger", nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}
