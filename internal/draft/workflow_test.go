package draft

import (
	"testing"

	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextFollowsTransitionGraph(t *testing.T) {
	all := []Status{StatusDraft, StatusInReview, StatusApproved, StatusRejected}
	allowed := map[Action]map[Status]Status{
		ActionSubmit:  {StatusDraft: StatusInReview},
		ActionApprove: {StatusInReview: StatusApproved},
		ActionReject:  {StatusInReview: StatusRejected},
	}
	for action, edges := range allowed {
		for _, from := range all {
			to, ok := Next(action, from)
			want, wantOK := edges[from]
			assert.Equal(t, wantOK, ok, "%s from %s", action, from)
			assert.Equal(t, want, to, "%s from %s", action, from)
		}
	}
	_, ok := Next(Action("reopen"), StatusRejected)
	require.False(t, ok)
}

func TestCanTransitionMatrix(t *testing.T) {
	cases := []struct {
		name     string
		role     models.Role
		action   Action
		isAuthor bool
		allow    bool
	}{
		{name: "author contributor submits", role: models.RoleContributor, action: ActionSubmit, isAuthor: true, allow: true},
		{name: "other contributor submits", role: models.RoleContributor, action: ActionSubmit, isAuthor: false, allow: false},
		{name: "admin submits anyone's", role: models.RoleAdmin, action: ActionSubmit, isAuthor: false, allow: true},
		{name: "approver submits own", role: models.RoleApprover, action: ActionSubmit, isAuthor: true, allow: false},
		{name: "approver approves", role: models.RoleApprover, action: ActionApprove, allow: true},
		{name: "approver rejects", role: models.RoleApprover, action: ActionReject, allow: true},
		{name: "admin approves", role: models.RoleAdmin, action: ActionApprove, allow: true},
		{name: "contributor approves own", role: models.RoleContributor, action: ActionApprove, isAuthor: true, allow: false},
		{name: "contributor rejects", role: models.RoleContributor, action: ActionReject, allow: false},
		{name: "unknown role", role: models.Role("Guest"), action: ActionApprove, allow: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanTransition(tc.role, tc.action, tc.isAuthor); got != tc.allow {
				t.Fatalf("CanTransition(%q, %q, %v) = %v, want %v", tc.role, tc.action, tc.isAuthor, got, tc.allow)
			}
		})
	}
}

func TestCanEditWindow(t *testing.T) {
	assert.True(t, CanEdit(models.RoleAdmin, StatusApproved))
	assert.True(t, CanEdit(models.RoleApprover, StatusInReview))
	assert.False(t, CanEdit(models.RoleApprover, StatusDraft))
	assert.True(t, CanEdit(models.RoleContributor, StatusDraft))
	assert.False(t, CanEdit(models.RoleContributor, StatusInReview))
	assert.False(t, CanEdit(models.RoleContributor, StatusApproved))
	assert.False(t, CanEdit(models.RoleContributor, StatusRejected))
}

func TestParseStatusAndSummarize(t *testing.T) {
	s, ok := ParseStatus("InReview")
	require.True(t, ok)
	require.Equal(t, StatusInReview, s)
	_, ok = ParseStatus("Archived")
	require.False(t, ok)

	hi, lo := 0.9, 0.5
	stats := Summarize([]*Draft{
		{Status: StatusDraft},
		{Status: StatusApproved, AlignmentScore: &hi},
		{Status: StatusApproved, AlignmentScore: &lo},
	})
	require.Equal(t, 2, stats.ByStatus[StatusApproved])
	require.Equal(t, 0, stats.ByStatus[StatusRejected])
	require.Equal(t, 2, stats.Scored)
	require.InDelta(t, 0.7, stats.AverageAlignment, 1e-9)
}
