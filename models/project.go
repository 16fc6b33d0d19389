package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConstructionProject.SpentCost is a cached aggregate of the linked orders' totals.
type ConstructionProject struct {
	ID            string          `gorm:"primary_key;size:64" json:"id"`
	UserId        string          `gorm:"size:64;index;not null" json:"user_id"`
	Name          string          `gorm:"size:255" json:"name"`
	ProjectType   string          `gorm:"size:50" json:"project_type"`
	Status        string          `gorm:"size:30" json:"status"`
	EstimatedCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"estimated_cost"`
	SpentCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"spent_cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectFinancial struct {
	ID              int             `gorm:"primary_key" json:"id"`
	ProjectId       string          `gorm:"size:64;uniqueIndex;not null" json:"project_id"`
	BudgetAllocated decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_allocated"`
	BudgetSpent     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_spent"`
	BudgetRemaining decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"budget_remaining"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProjectInventory tracks materials delivered to a project site.
type ProjectInventory struct {
	ID         int             `gorm:"primary_key" json:"id"`
	ProjectId  string          `gorm:"size:64;uniqueIndex;not null" json:"project_id"`
	Status     string          `gorm:"size:20" json:"status"`
	TotalItems int             `gorm:"default:0" json:"total_items"`
	TotalValue decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_value"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ProjectInventory) TableName() string { return "project_inventory" }

type ProjectPurchase struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ProjectId    string          `gorm:"size:64;index;not null" json:"project_id"`
	OrderId      string          `gorm:"size:64;uniqueIndex;not null" json:"order_id"`
	PurchaseType string          `gorm:"size:30" json:"purchase_type"`
	Status       string          `gorm:"size:20" json:"status"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type ProjectTask struct {
	ID            int          `gorm:"primary_key" json:"id"`
	ProjectId     string       `gorm:"size:64;index;not null" json:"project_id"`
	TaskName      string       `gorm:"size:255" json:"task_name"`
	Phase         ProjectPhase `gorm:"size:30" json:"phase"`
	Status        string       `gorm:"size:20" json:"status"`
	OrderSequence int          `json:"order_sequence"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

type projectTaskTemplate struct {
	Name  string
	Phase ProjectPhase
}

var defaultProjectTasks = []projectTaskTemplate{
	{"Project planning and design", PhasePlanning},
	{"Permits and approvals", PhasePermits},
	{"Site preparation", PhaseSitePrep},
	{"Foundation work", PhaseFoundation},
	{"Structural construction", PhaseStructure},
	{"Finishing works", PhaseFinishing},
	{"Handover and delivery", PhaseDelivery},
}

// DefaultProjectTasks returns the seven seeded tasks, order_sequence 1..7.
func DefaultProjectTasks(projectId string) []ProjectTask {
	tasks := make([]ProjectTask, 0, len(defaultProjectTasks))
	for i, tpl := range defaultProjectTasks {
		tasks = append(tasks, ProjectTask{
			ProjectId:     projectId,
			TaskName:      tpl.Name,
			Phase:         tpl.Phase,
			Status:        TaskStatusPending,
			OrderSequence: i + 1,
		})
	}
	return tasks
}
