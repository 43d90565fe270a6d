package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLiquidationDistance(t *testing.T) {
	cases := []struct {
		name  string
		side  PositionSide
		entry string
		liq   string
		want  string
	}{
		{"多头 entry 100 liq 90", PositionSideLong, "100", "90", "0.1"},
		{"多头 entry 100 liq 80", PositionSideLong, "100", "80", "0.2"},
		{"空头 entry 100 liq 112", PositionSideShort, "100", "112", "0.12"},
		{"空头 entry 100 liq 120", PositionSideShort, "100", "120", "0.2"},
		{"多头 liq 等于 entry", PositionSideLong, "100", "100", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Position{
				Side:             tc.side,
				EntryPrice:       dec(tc.entry),
				LiquidationPrice: dec(tc.liq),
			}
			got := p.LiquidationDistance()
			if !got.Equal(dec(tc.want)) {
				t.Fatalf("距离不符: want=%s got=%s", tc.want, got)
			}
		})
	}
}

func TestHasRiskPrices(t *testing.T) {
	p := Position{EntryPrice: dec("100"), LiquidationPrice: dec("90")}
	if !p.HasRiskPrices() {
		t.Fatal("两个价格都为正时应为 true")
	}

	p.LiquidationPrice = decimal.Zero
	if p.HasRiskPrices() {
		t.Fatal("缺 liquidation 价格时应为 false")
	}

	p = Position{EntryPrice: decimal.Zero, LiquidationPrice: dec("90")}
	if p.HasRiskPrices() {
		t.Fatal("缺 entry 价格时应为 false")
	}
}

func TestSeverityForDistance(t *testing.T) {
	cases := []struct {
		distance string
		want     AlertSeverity
	}{
		{"0.04", AlertSeverityCritical},
		{"0.05", AlertSeverityWarning},
		{"0.09", AlertSeverityWarning},
		{"0.10", AlertSeverityInfo},
		{"0.14", AlertSeverityInfo},
	}
	for _, tc := range cases {
		if got := SeverityForDistance(dec(tc.distance)); got != tc.want {
			t.Fatalf("distance=%s: want=%s got=%s", tc.distance, tc.want, got)
		}
	}
}
