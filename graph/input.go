package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/buildhub/datasync_backend/models"
	"github.com/shopspring/decimal"
)

func stringArg(args map[string]interface{}, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

func boolArg(args map[string]interface{}, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func optionalString(v interface{}) *string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

// UnmarshalDecimal accepts a Decimal literal or variable. Thousands
// separators are stripped from strings.
func UnmarshalDecimal(i interface{}) (decimal.Decimal, error) {
	switch v := i.(type) {
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" {
			return decimal.Zero, fmt.Errorf("invalid value")
		}
		return decimal.NewFromString(s)
	case json.Number:
		return decimal.NewFromString(v.String())
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return decimal.Zero, fmt.Errorf("invalid value")
	}
}

func unmarshalInt(i interface{}) (int, error) {
	switch v := i.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%v is not an integer", v)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("invalid value")
	}
}

func unmarshalOrderSyncInput(raw interface{}) (models.OrderSyncPayload, error) {
	var payload models.OrderSyncPayload
	in, ok := raw.(map[string]interface{})
	if !ok {
		return payload, fmt.Errorf("input: expected an object")
	}
	payload.OrderId, _ = in["orderId"].(string)
	payload.UserId, _ = in["userId"].(string)
	payload.ProjectId = optionalString(in["projectId"])
	payload.PaymentMethod, _ = in["paymentMethod"].(string)

	total, err := UnmarshalDecimal(in["totalAmount"])
	if err != nil {
		return payload, fmt.Errorf("input.totalAmount: %w", err)
	}
	payload.TotalAmount = total

	items, _ := in["items"].([]interface{})
	for idx, rawItem := range items {
		item, ok := rawItem.(map[string]interface{})
		if !ok {
			return payload, fmt.Errorf("input.items[%d]: expected an object", idx)
		}
		qty, err := unmarshalInt(item["quantity"])
		if err != nil {
			return payload, fmt.Errorf("input.items[%d].quantity: %w", idx, err)
		}
		price, err := UnmarshalDecimal(item["unitPrice"])
		if err != nil {
			return payload, fmt.Errorf("input.items[%d].unitPrice: %w", idx, err)
		}
		syncItem := models.OrderSyncItem{Quantity: qty, UnitPrice: price}
		syncItem.ProductId, _ = item["productId"].(string)
		syncItem.StoreId, _ = item["storeId"].(string)
		payload.Items = append(payload.Items, syncItem)
	}
	return payload, nil
}

func unmarshalProjectSyncInput(raw interface{}) (models.ProjectSyncPayload, error) {
	var payload models.ProjectSyncPayload
	in, ok := raw.(map[string]interface{})
	if !ok {
		return payload, fmt.Errorf("input: expected an object")
	}
	payload.ProjectId, _ = in["projectId"].(string)
	payload.UserId, _ = in["userId"].(string)
	payload.ProjectType, _ = in["projectType"].(string)
	payload.Status, _ = in["status"].(string)
	budget, err := UnmarshalDecimal(in["budget"])
	if err != nil {
		return payload, fmt.Errorf("input.budget: %w", err)
	}
	payload.Budget = budget
	return payload, nil
}
