package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// SyncSettings holds the business rules of the fan-out writers and the
// reconciler. Every field can be overridden from the environment.
type SyncSettings struct {
	VatRate             decimal.Decimal `env:"VAT_RATE" envDefault:"0.15"`
	LoyaltyPointDivisor decimal.Decimal `env:"LOYALTY_POINT_DIVISOR" envDefault:"10"`
	InvoiceDueDays      int             `env:"INVOICE_DUE_DAYS" envDefault:"30"`
	SpentTolerance      decimal.Decimal `env:"SPENT_TOLERANCE" envDefault:"1"`
	ParallelFanout      bool            `env:"PARALLEL_FANOUT" envDefault:"false"`
	StockAutoRepair     bool            `env:"STOCK_AUTO_REPAIR" envDefault:"false"`
	ReconcileLockTTL    time.Duration   `env:"RECONCILE_LOCK_TTL" envDefault:"30s"`
	ReportCacheTTL      time.Duration   `env:"REPORT_CACHE_TTL" envDefault:"10m"`
}

func LoadSyncSettings() (SyncSettings, error) {
	var s SyncSettings
	if err := env.Parse(&s); err != nil {
		return s, fmt.Errorf("parse env: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

func (s SyncSettings) Validate() error {
	if s.VatRate.IsNegative() || s.VatRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("VAT_RATE must be in [0, 1), got %s", s.VatRate)
	}
	if !s.LoyaltyPointDivisor.IsPositive() {
		return fmt.Errorf("LOYALTY_POINT_DIVISOR must be positive, got %s", s.LoyaltyPointDivisor)
	}
	if s.InvoiceDueDays < 0 {
		return fmt.Errorf("INVOICE_DUE_DAYS must not be negative, got %d", s.InvoiceDueDays)
	}
	if s.SpentTolerance.IsNegative() {
		return fmt.Errorf("SPENT_TOLERANCE must not be negative, got %s", s.SpentTolerance)
	}
	return nil
}

// DefaultSyncSettings ignores the process environment and returns the envDefault values.
func DefaultSyncSettings() SyncSettings {
	var s SyncSettings
	_ = env.ParseWithOptions(&s, env.Options{Environment: map[string]string{}})
	return s
}
