package subscription

import (
	"time"

	"github.com/shopspring/decimal"
)

// UsageSnapshot is the resource consumption of a user, derived at query time.
type UsageSnapshot struct {
	TotalStorageGB        decimal.Decimal `json:"total_storage_gb"`
	ResourcesCreatedSince int64           `json:"resources_created_since"`
	Since                 time.Time       `json:"since"`
}

// BytesToGB converts a byte count into decimal gigabytes (1 GB = 1024^3 bytes).
func BytesToGB(bytes int64) decimal.Decimal {
	return decimal.NewFromInt(bytes).Div(decimal.NewFromInt(1 << 30))
}
