package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewOrganizationID returns a sortable organization identifier ("org_" + ULID).
func NewOrganizationID() string { return prefixed("org_") }

// NewBlueprintID returns a sortable blueprint identifier ("bp_" + ULID).
func NewBlueprintID() string { return prefixed("bp_") }

func prefixed(prefix string) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return prefix + strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String())
}

// NewDraftID returns a random draft identifier. Drafts are keyed by the client,
// so any caller creating a draft offline uses this (or an equivalent UUID).
func NewDraftID() string { return uuid.NewString() }

// ValidDraftID reports whether id is a UUID in canonical form.
func ValidDraftID(id string) bool {
	u, err := uuid.Parse(id)
	return err == nil && u.String() == strings.ToLower(id)
}
