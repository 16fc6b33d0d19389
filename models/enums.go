package models

type MovementType string

const (
	MovementTypeIn  MovementType = "in"
	MovementTypeOut MovementType = "out"
)

// Movement reference types. Only "order" movements are produced by the order
// fan-out; the rest come from store staff and restock tooling.
const (
	MovementReferenceOrder      = "order"
	MovementReferenceRestock    = "restock"
	MovementReferenceAdjustment = "adjustment"
)

// Chart-of-accounts codes used by the order posting.
const (
	AccountCodeReceivable = "1200"
	AccountCodeVatPayable = "2300"
	AccountCodeSales      = "4000"
)

const (
	TransactionTypeSale = "sale"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCompleted = "completed"
)

const (
	PurchaseTypeMaterials = "materials"
	PurchaseStatusOrdered = "ordered"
)

const (
	InvoiceStatusIssued = "issued"
	InvoiceStatusPaid   = "paid"
)

const (
	LoyaltyTransactionEarn   = "earn"
	LoyaltyTransactionRedeem = "redeem"
)

const (
	ProjectInventoryStatusActive = "active"
	TaskStatusPending            = "pending"
)

// ProjectPhase is the construction stage a seeded task belongs to.
type ProjectPhase string

const (
	PhasePlanning   ProjectPhase = "planning"
	PhasePermits    ProjectPhase = "permits"
	PhaseSitePrep   ProjectPhase = "site_prep"
	PhaseFoundation ProjectPhase = "foundation"
	PhaseStructure  ProjectPhase = "structure"
	PhaseFinishing  ProjectPhase = "finishing"
	PhaseDelivery   ProjectPhase = "delivery"
)

// SyncDomain names one target of a fan-out.
type SyncDomain string

const (
	SyncDomainInventory  SyncDomain = "inventory"
	SyncDomainAccounting SyncDomain = "accounting"
	SyncDomainProject    SyncDomain = "project"
	SyncDomainProviders  SyncDomain = "providers"
	SyncDomainInvoice    SyncDomain = "invoice"
	SyncDomainLoyalty    SyncDomain = "loyalty"

	SyncDomainFinancials       SyncDomain = "financials"
	SyncDomainProjectInventory SyncDomain = "project_inventory"
	SyncDomainTasks            SyncDomain = "tasks"
)

// Outbox event types.
const (
	SyncEventOrderCreated   = "ORDER_CREATED"
	SyncEventProjectCreated = "PROJECT_CREATED"
)
