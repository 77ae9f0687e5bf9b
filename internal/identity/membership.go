package identity

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MembershipStatus is the soft lifecycle state of a membership. Rows are
// never deleted; leaving an organization is a transition to removed.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipPending  MembershipStatus = "pending"
	MembershipRemoved  MembershipStatus = "removed"
)

var membershipTransitions = map[MembershipStatus][]MembershipStatus{
	MembershipPending:  {MembershipActive, MembershipInactive, MembershipRemoved},
	MembershipActive:   {MembershipInactive, MembershipRemoved},
	MembershipInactive: {MembershipActive, MembershipRemoved},
	MembershipRemoved:  {MembershipPending},
}

// ParseMembershipStatus accepts exactly the four known states.
func ParseMembershipStatus(raw string) (MembershipStatus, error) {
	status := MembershipStatus(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := membershipTransitions[status]; !ok {
		return "", fmt.Errorf("invalid membership status %q", raw)
	}
	return status, nil
}

// CanTransitionTo reports whether s may move to next.
func (s MembershipStatus) CanTransitionTo(next MembershipStatus) bool {
	return slices.Contains(membershipTransitions[s], next)
}

// Organization roles. RolePlatformAdmin is never assignable through an
// organization; it is granted out of band to operators.
const (
	RoleMember        = "member"
	RoleViewer        = "viewer"
	RoleAdmin         = "admin"
	RolePlatformAdmin = "platform_admin"
)

var assignableRoles = []string{RoleMember, RoleViewer, RoleAdmin}

// IsAssignableRole reports whether role may be granted by an organization.
func IsAssignableRole(role string) bool {
	return slices.Contains(assignableRoles, role)
}

type RoleAssignment struct {
	RoleName   string    `json:"roleName"`
	AssignedAt time.Time `json:"assignedAt"`
}

// Membership ties a user to one organization.
type Membership struct {
	OrganizationID uuid.UUID        `json:"organizationId"`
	Roles          []RoleAssignment `json:"roles"`
	IsPrimary      bool             `json:"isPrimary"`
	JoinedAt       time.Time        `json:"joinedAt"`
	Status         MembershipStatus `json:"status"`
	InvitedBy      *uuid.UUID       `json:"invitedBy,omitempty"`
	JobTitle       string           `json:"jobTitle,omitempty"`
	DepartmentID   *uuid.UUID       `json:"departmentId,omitempty"`
	TeamIDs        []uuid.UUID      `json:"teamIds"`
}

// NewMembership builds an active membership holding roles, all assigned at now.
func NewMembership(organizationID uuid.UUID, roles []string, isPrimary bool, invitedBy *uuid.UUID, now time.Time) Membership {
	assignments := make([]RoleAssignment, 0, len(roles))
	for _, role := range roles {
		assignments = append(assignments, RoleAssignment{RoleName: role, AssignedAt: now})
	}
	return Membership{
		OrganizationID: organizationID,
		Roles:          assignments,
		IsPrimary:      isPrimary,
		JoinedAt:       now,
		Status:         MembershipActive,
		InvitedBy:      invitedBy,
		TeamIDs:        []uuid.UUID{},
	}
}

func (m Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// RoleNames returns the assigned role names in assignment order.
func (m Membership) RoleNames() []string {
	names := make([]string, 0, len(m.Roles))
	for _, r := range m.Roles {
		names = append(names, r.RoleName)
	}
	return names
}

func (m Membership) HasRole(role string) bool {
	return slices.Contains(m.RoleNames(), role)
}

func (m Membership) clone() Membership {
	out := m
	out.Roles = slices.Clone(m.Roles)
	out.TeamIDs = slices.Clone(m.TeamIDs)
	return out
}
