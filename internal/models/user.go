package models

import "time"

// Role gates which workflow transitions and edits a user may perform.
type Role string

const (
	RoleContributor Role = "Contributor"
	RoleApprover    Role = "Approver"
	RoleAdmin       Role = "Admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleContributor, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// User is the stored profile of a signed-in identity. ID is the OIDC subject.
type User struct {
	ID             string    `bson:"_id" json:"id"`
	DisplayName    string    `bson:"displayName" json:"displayName"`
	Email          string    `bson:"email" json:"email"`
	OrganizationID string    `bson:"organizationId" json:"organizationId"`
	Role           Role      `bson:"role" json:"role"`
	CreatedAt      time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Organization is created once, together with its first user, at setup.
type Organization struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}
