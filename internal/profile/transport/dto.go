package transport

import "time"

type ProfileResponse struct {
	UserID         string             `json:"userId"`
	OrganizationID string             `json:"organizationId"`
	FirstName      string             `json:"firstName"`
	LastName       string             `json:"lastName"`
	Phone          string             `json:"phone"`
	JobTitle       string             `json:"jobTitle"`
	HasAvatar      bool               `json:"hasAvatar"`
	Completion     CompletionResponse `json:"completion"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

type CompletionResponse struct {
	IsComplete    bool     `json:"isComplete"`
	MissingFields []string `json:"missingFields"`
}

type UpdateProfileRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	JobTitle  *string `json:"jobTitle" validate:"omitempty,max=120"`
}

type UpdatePreferencesRequest struct {
	Language           *string `json:"language" validate:"omitempty,bcp47_language_tag"`
	Timezone           *string `json:"timezone" validate:"omitempty,timezone"`
	EmailNotifications *bool   `json:"emailNotifications"`
	InAppNotifications *bool   `json:"inAppNotifications"`
}

type PresignAvatarRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"required"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,gt=0"`
}

type ConfirmAvatarRequest struct {
	FileKey string `json:"fileKey" validate:"required,max=512"`
}
