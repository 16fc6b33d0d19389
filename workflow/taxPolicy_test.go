package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFlatVatPolicySplit(t *testing.T) {
	policy := FlatVatPolicy{Rate: dec("0.15")}
	tests := []struct {
		total   string
		wantNet string
		wantTax string
	}{
		{"1000", "850", "150"},
		{"99.99", "84.99", "15"},
		{"0.01", "0.01", "0"},
		{"0", "0", "0"},
		{"333.33", "283.33", "50"},
	}
	for _, tt := range tests {
		net, tax := policy.Split(dec(tt.total))
		if !net.Equal(dec(tt.wantNet)) || !tax.Equal(dec(tt.wantTax)) {
			t.Fatalf("Split(%s) = (%s, %s), want (%s, %s)", tt.total, net, tax, tt.wantNet, tt.wantTax)
		}
		if !net.Add(tax).Equal(dec(tt.total)) {
			t.Fatalf("Split(%s) parts do not add up: %s + %s", tt.total, net, tax)
		}
	}
}

func TestLoyaltyPoints(t *testing.T) {
	ten := decimal.NewFromInt(10)
	tests := []struct {
		total string
		want  int
	}{
		{"105", 10},
		{"99", 9},
		{"1000", 100},
		{"9.99", 0},
		{"0", 0},
	}
	for _, tt := range tests {
		if got := LoyaltyPoints(dec(tt.total), ten); got != tt.want {
			t.Fatalf("LoyaltyPoints(%s) = %d, want %d", tt.total, got, tt.want)
		}
	}
	if got := LoyaltyPoints(dec("100"), decimal.Zero); got != 0 {
		t.Fatalf("zero divisor earned %d points", got)
	}
}
