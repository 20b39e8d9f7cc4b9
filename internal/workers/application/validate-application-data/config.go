// internal/workers/application/validate-application-data/config.go
package validateapplicationdata

import (
	"time"

	"loan-intake/internal/common/config"
)

type Config struct {
	RequireDocuments bool
	Timeout          time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		RequireDocuments: true,
		Timeout:          config.GetDuration(wc.Timeout),
	}
}
