// internal/workers/application/check-priority-routing/config.go
package checkpriorityrouting

import (
	"time"

	"loan-intake/internal/common/config"
)

type Config struct {
	CacheTTL  time.Duration
	KeyPrefix string
	Timeout   time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		CacheTTL:  cfg.Cache.PriorityTTLDuration(),
		KeyPrefix: cfg.Cache.KeyPrefix,
		Timeout:   config.GetDuration(wc.Timeout),
	}
}
