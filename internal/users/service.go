package users

import (
	"context"
	"errors"
	"strings"

	"github.com/ezkiller2517/arkzkh-app/internal/apperr"
	"github.com/ezkiller2517/arkzkh-app/internal/auth"
	"github.com/ezkiller2517/arkzkh-app/internal/ids"
	"github.com/ezkiller2517/arkzkh-app/internal/models"
	"github.com/ezkiller2517/arkzkh-app/pkg/logger"
)

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r}
}

// Lookup returns the stored profile for a verified subject, or nil when
// the subject has not completed setup.
func (s *Service) Lookup(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return u, err
}

func (s *Service) Me(ctx context.Context, p auth.Principal) (*models.User, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	u, err := s.repo.Get(ctx, p.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "profile not set up")
	}
	if err != nil {
		return nil, internal(err, "load profile")
	}
	return u, nil
}

// SetupRequest creates an organization and the caller's profile in one batch.
type SetupRequest struct {
	OrganizationName string      `json:"organizationName"`
	Role             models.Role `json:"role"`
	DisplayName      string      `json:"displayName,omitempty"`
	Email            string      `json:"email,omitempty"`
}

func (s *Service) Setup(ctx context.Context, p auth.Principal, req SetupRequest) (*models.User, *models.Organization, error) {
	if err := p.Require(); err != nil {
		return nil, nil, err
	}
	name := strings.TrimSpace(req.OrganizationName)
	if name == "" {
		return nil, nil, apperr.New(apperr.InvalidArgument, "organizationName is required")
	}
	if !req.Role.Valid() {
		return nil, nil, apperr.New(apperr.InvalidArgument, "role must be Contributor, Approver or Admin")
	}
	display := strings.TrimSpace(req.DisplayName)
	if display == "" {
		display = p.DisplayName
	}
	org := &models.Organization{ID: ids.NewOrganizationID(), Name: name}
	u := &models.User{ID: p.UserID, DisplayName: display, Email: req.Email, OrganizationID: org.ID, Role: req.Role}
	err := s.repo.CreateWithOrganization(ctx, org, u)
	if errors.Is(err, ErrExists) {
		return nil, nil, apperr.New(apperr.InvalidArgument, "profile already set up")
	}
	if err != nil {
		return nil, nil, internal(err, "setup organization")
	}
	logger.Infow("organization set up", logger.Fields{"org": org.ID, "user": u.ID, "role": u.Role})
	return u, org, nil
}

// SetOwnRole switches the caller's role.
func (s *Service) SetOwnRole(ctx context.Context, p auth.Principal, role models.Role) (*models.User, error) {
	if err := p.Require(); err != nil {
		return nil, err
	}
	return s.updateRole(ctx, p.UserID, role)
}

// SetRole lets an Admin change the role of another member of the organization.
func (s *Service) SetRole(ctx context.Context, p auth.Principal, orgID, userID string, role models.Role) (*models.User, error) {
	if err := p.RequireOrg(orgID); err != nil {
		return nil, err
	}
	if p.Role != models.RoleAdmin {
		return nil, apperr.New(apperr.PermissionDenied, "only admins can change other users' roles")
	}
	target, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && target.OrganizationID != orgID) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, internal(err, "load user")
	}
	return s.updateRole(ctx, userID, role)
}

func (s *Service) updateRole(ctx context.Context, id string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.New(apperr.InvalidArgument, "role must be Contributor, Approver or Admin")
	}
	u, err := s.repo.UpdateRole(ctx, id, role)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "profile not set up")
	}
	if err != nil {
		return nil, internal(err, "update role")
	}
	return u, nil
}

func internal(err error, op string) error {
	logger.Errorf("users: %s: %v", op, err)
	return apperr.Wrap(apperr.Internal, err, "%s failed", op)
}
