// internal/workers/application/send-notification/models.go
package sendnotification

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	Priority      string `json:"priority,omitempty"`
	Description   string `json:"description,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"` // ISO 8601
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type template struct {
	Subject string
	Body    string
}
