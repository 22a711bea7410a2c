package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// App is the process-level configuration of the billing tools.
type App struct {
	Env             string `env:"APP_ENV" envDefault:"development"`
	ServiceName     string `env:"APP_SERVICE_NAME" envDefault:"gallery-billing"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	PlanCatalogFile string `env:"PLAN_CATALOG_FILE"` // empty means the built-in catalog
	// AuditHistoryLimit bounds how many audit rows upgrade path resolution reads.
	AuditHistoryLimit  int    `env:"AUDIT_HISTORY_LIMIT" envDefault:"50"`
	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL"`
	UsageCacheEnabled  bool   `env:"USAGE_CACHE_ENABLED" envDefault:"false"`
}

func (a *App) Validate() error {
	switch strings.ToLower(a.Env) {
	case "development", "dev", "staging", "stage", "production", "prod":
	default:
		return fmt.Errorf("APP_ENV %q is not one of development, staging, production", a.Env)
	}
	if a.AuditHistoryLimit <= 0 {
		return fmt.Errorf("AUDIT_HISTORY_LIMIT must be positive, got %d", a.AuditHistoryLimit)
	}
	if _, err := a.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel.
func (a *App) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(a.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q: %w", a.LogLevel, err)
	}
	return l, nil
}
