// internal/workers/application/send-notification/config.go
package sendnotification

import (
	"time"

	"loan-intake/internal/common/config"
	"loan-intake/internal/models"
)

type Config struct {
	EmailEnabled      bool
	SMSEnabled        bool
	FromEmail         string
	PriorityThreshold models.Priority
	Timeout           time.Duration
}

// LoadConfig reads the notification settings of cfg.
func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		EmailEnabled:      cfg.Notifications.Email.Enabled,
		SMSEnabled:        cfg.Notifications.SMS.Enabled,
		FromEmail:         cfg.Notifications.Email.FromEmail,
		PriorityThreshold: models.Priority(cfg.Notifications.SMS.PriorityThreshold),
		Timeout:           config.GetDuration(wc.Timeout),
	}
}
