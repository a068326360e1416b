package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlueprintPatchApplyMergesOnlySetFields(t *testing.T) {
	b := &Blueprint{Vision: "v1", Mission: "m1", Values: []string{"care"}}
	mission := "m2"
	pillars := []string{"growth", "trust"}
	BlueprintPatch{Mission: &mission, Pillars: &pillars}.Apply(b)

	require.Equal(t, "v1", b.Vision)
	require.Equal(t, "m2", b.Mission)
	require.Equal(t, []string{"care"}, b.Values)
	require.Equal(t, []string{"growth", "trust"}, b.Pillars)
	require.True(t, BlueprintPatch{}.Empty())
}

func TestBlueprintSerializeOmitsStorageFields(t *testing.T) {
	b := &Blueprint{ID: "bp1", OrganizationID: "org_1", Vision: "be useful"}
	s, err := b.Serialize()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	require.Equal(t, "be useful", m["vision"])
	require.NotContains(t, m, "id")
	require.NotContains(t, m, "organizationId")
	require.Equal(t, []any{}, m["values"])
	require.False(t, b.IsBlank())
	require.True(t, (&Blueprint{}).IsBlank())
}

func TestRoleValid(t *testing.T) {
	require.True(t, RoleApprover.Valid())
	require.False(t, Role("Owner").Valid())
}
