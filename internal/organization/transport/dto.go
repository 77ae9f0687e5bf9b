package transport

import "time"

type CreateOrganizationRequest struct {
	Name                     string          `json:"name" validate:"required,max=120"`
	Slug                     string          `json:"slug" validate:"omitempty,max=63,hostname_rfc1123"`
	AllowedDomains           []string        `json:"allowedDomains" validate:"omitempty,dive,fqdn"`
	RequireInvitation        bool            `json:"requireInvitation"`
	SubscriptionTier         string          `json:"subscriptionTier" validate:"omitempty,oneof=free starter professional enterprise"`
	MaxUsers                 *int            `json:"maxUsers" validate:"omitempty,min=0"`
	Features                 map[string]bool `json:"features"`
	RequireProfileCompletion bool            `json:"requireProfileCompletion"`
	OnboardingEnabled        bool            `json:"onboardingEnabled"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended deleted"`
}

type FeaturesResponse struct {
	AdvancedReporting bool `json:"advancedReporting"`
	APIAccess         bool `json:"apiAccess"`
	AdvancedFeatures  bool `json:"advancedFeatures"`
}

type OrganizationResponse struct {
	ID                       string           `json:"id"`
	Name                     string           `json:"name"`
	Slug                     string           `json:"slug"`
	Status                   string           `json:"status"`
	AllowedDomains           []string         `json:"allowedDomains"`
	RequireInvitation        bool             `json:"requireInvitation"`
	SubscriptionTier         string           `json:"subscriptionTier"`
	MaxUsers                 int              `json:"maxUsers"`
	Users                    int              `json:"users"`
	RequireProfileCompletion bool             `json:"requireProfileCompletion"`
	OnboardingEnabled        bool             `json:"onboardingEnabled"`
	Features                 FeaturesResponse `json:"features"`
	CreatedAt                time.Time        `json:"createdAt"`
}

type ListOrganizationsResponse struct {
	Organizations []OrganizationResponse `json:"organizations"`
}
