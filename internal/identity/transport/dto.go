package transport

import "time"

type MembershipResponse struct {
	OrganizationID string    `json:"organizationId"`
	Roles          []string  `json:"roles"`
	Status         string    `json:"status"`
	IsPrimary      bool      `json:"isPrimary"`
	JobTitle       string    `json:"jobTitle,omitempty"`
	JoinedAt       time.Time `json:"joinedAt"`
	// Current is true for the organization the access token was issued for.
	Current bool `json:"current"`
}

type ListMembershipsResponse struct {
	Memberships []MembershipResponse `json:"memberships"`
}
