package models

import (
	"github.com/shopspring/decimal"
)

type OrderSyncItem struct {
	ProductId string          `json:"product_id" validate:"required"`
	Quantity  int             `json:"quantity" validate:"gte=0"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
	StoreId   string          `json:"store_id"`
}

// LineTotal is unit_price * quantity.
func (i OrderSyncItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderSyncPayload is the input of the order fan-out.
type OrderSyncPayload struct {
	OrderId       string          `json:"order_id" validate:"required"`
	UserId        string          `json:"user_id" validate:"required"`
	Items         []OrderSyncItem `json:"items" validate:"required,min=1,dive"`
	ProjectId     *string         `json:"project_id,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount" validate:"gte=0"`
	PaymentMethod string          `json:"payment_method"`
}

func (p OrderSyncPayload) HasProject() bool {
	return p.ProjectId != nil && *p.ProjectId != ""
}

// ProjectSyncPayload is the input of the project fan-out.
type ProjectSyncPayload struct {
	ProjectId   string          `json:"project_id" validate:"required"`
	UserId      string          `json:"user_id" validate:"required"`
	Budget      decimal.Decimal `json:"budget" validate:"gte=0"`
	ProjectType string          `json:"project_type"`
	Status      string          `json:"status"`
}

// NewOrderSyncPayload builds the fan-out input from a stored order with its items loaded.
func NewOrderSyncPayload(order Order, projectId *string) OrderSyncPayload {
	items := make([]OrderSyncItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, OrderSyncItem{
			ProductId: it.ProductId,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			StoreId:   it.StoreId,
		})
	}
	if projectId == nil {
		projectId = order.ProjectId
	}
	return OrderSyncPayload{
		OrderId:       order.ID,
		UserId:        order.UserId,
		Items:         items,
		ProjectId:     projectId,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}
}
