package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskWelcomeEmail = "tenantauth.welcome_email"

const TaskAnalyticsEvent = "analytics.record"

type WelcomeEmailPayload struct {
	UserID           string `json:"userId"`
	OrganizationID   string `json:"organizationId"`
	Email            string `json:"email"`
	FirstName        string `json:"firstName"`
	OrganizationName string `json:"organizationName"`
	PortalURL        string `json:"portalUrl"`
}

type AnalyticsEventPayload struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	UserID         string         `json:"userId,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Properties     map[string]any `json:"properties,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
}

func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWelcomeEmail, data), nil
}

func ParseWelcomeEmailPayload(task *asynq.Task) (WelcomeEmailPayload, error) {
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return WelcomeEmailPayload{}, err
	}
	return payload, nil
}

func NewAnalyticsEventTask(payload AnalyticsEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyticsEvent, data), nil
}

func ParseAnalyticsEventPayload(task *asynq.Task) (AnalyticsEventPayload, error) {
	var payload AnalyticsEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AnalyticsEventPayload{}, err
	}
	return payload, nil
}
