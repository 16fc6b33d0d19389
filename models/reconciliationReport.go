package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckType string

const (
	CheckUserTotalSpent    CheckType = "USER_TOTAL_SPENT"
	CheckUserLoyaltyPoints CheckType = "USER_LOYALTY_POINTS"
	CheckProjectSpentCost  CheckType = "PROJECT_SPENT_COST"
	CheckProductStock      CheckType = "PRODUCT_STOCK"
)

// ReconciliationReport persists one detected drift (nightly or admin-triggered runs).
type ReconciliationReport struct {
	ID            int       `gorm:"primary_key" json:"id"`
	UserId        string    `gorm:"size:64;index;not null" json:"user_id"`
	CheckType     CheckType `gorm:"size:50;index;not null" json:"check_type"`
	EntityType    string    `gorm:"size:50;index;not null" json:"entity_type"`
	EntityId      string    `gorm:"size:64;index;not null" json:"entity_id"`
	Details       string    `gorm:"type:text" json:"details"`
	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Drift is a cached aggregate that disagrees with its source ledger.
type Drift struct {
	CheckType      CheckType       `json:"check_type"`
	EntityType     string          `json:"entity_type"`
	EntityId       string          `json:"entity_id"`
	Cached         decimal.Decimal `json:"cached"`
	Computed       decimal.Decimal `json:"computed"`
	Message        string          `json:"message"`
	Recommendation string          `json:"recommendation"`
}

// ConsistencyReport is the read-only diagnostic for one user.
type ConsistencyReport struct {
	UserId          string    `json:"user_id"`
	IsConsistent    bool      `json:"is_consistent"`
	Inconsistencies []string  `json:"inconsistencies"`
	Recommendations []string  `json:"recommendations"`
	Drifts          []Drift   `json:"drifts"`
	CheckedAt       time.Time `json:"checked_at"`
}

func NewConsistencyReport(userId string, at time.Time) *ConsistencyReport {
	return &ConsistencyReport{
		UserId:          userId,
		IsConsistent:    true,
		Inconsistencies: []string{},
		Recommendations: []string{},
		Drifts:          []Drift{},
		CheckedAt:       at,
	}
}

func (r *ConsistencyReport) AddDrift(d Drift) {
	r.IsConsistent = false
	r.Drifts = append(r.Drifts, d)
	r.Inconsistencies = append(r.Inconsistencies, d.Message)
	r.Recommendations = append(r.Recommendations, d.Recommendation)
}

// RepairResult lists which drifts the reconciler fixed and which it left.
type RepairResult struct {
	UserId          string   `json:"user_id"`
	Success         bool     `json:"success"`
	FixedIssues     []string `json:"fixed_issues"`
	RemainingIssues []string `json:"remaining_issues"`
}

func NewRepairResult(userId string) *RepairResult {
	return &RepairResult{
		UserId:          userId,
		FixedIssues:     []string{},
		RemainingIssues: []string{},
	}
}

func (r *RepairResult) Fixed(msg string) {
	r.FixedIssues = append(r.FixedIssues, msg)
}

func (r *RepairResult) Remaining(msg string) {
	r.RemainingIssues = append(r.RemainingIssues, msg)
}

func (r *RepairResult) Finish() {
	r.Success = len(r.RemainingIssues) == 0
}
