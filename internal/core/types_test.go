package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		input   string
		want    DataType
		wantErr bool
	}{
		{"", DataRealtime, false},
		{"realtime", DataRealtime, false},
		{"breadth", DataBreadth, false},
		{"capital_flow", DataCapitalFlow, false},
		{"all", DataAll, false},
		{"history", "", true},
	}

	for _, tc := range tests {
		got, err := ParseDataType(tc.input)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("ParseDataType(%q): expected invalid argument, got %v", tc.input, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseDataType(%q) = (%s, %v), want %s", tc.input, got, err, tc.want)
		}
	}
}

func TestNewCapitalFlow(t *testing.T) {
	tests := []struct {
		net         string
		wantInflow  string
		wantOutflow string
	}{
		{"12.34", "12.34", "0"},
		{"-56.78", "0", "56.78"},
		{"0", "0", "0"},
	}

	now := time.Now()
	for _, tc := range tests {
		net := decimal.RequireFromString(tc.net)
		flow := NewCapitalFlow(net, "2026-10-15", now)

		if !flow.NorthInflow.Equal(decimal.RequireFromString(tc.wantInflow)) {
			t.Errorf("net %s: inflow = %s, want %s", tc.net, flow.NorthInflow, tc.wantInflow)
		}
		if !flow.NorthOutflow.Equal(decimal.RequireFromString(tc.wantOutflow)) {
			t.Errorf("net %s: outflow = %s, want %s", tc.net, flow.NorthOutflow, tc.wantOutflow)
		}
		if !flow.NorthInflow.Sub(flow.NorthOutflow).Equal(net) {
			t.Errorf("net %s: inflow - outflow != net", tc.net)
		}
		if !flow.NorthInflow.IsZero() && !flow.NorthOutflow.IsZero() {
			t.Errorf("net %s: inflow and outflow both nonzero", tc.net)
		}
	}
}

func TestMarketBreadth_IsConsistent(t *testing.T) {
	b := MarketBreadth{TotalStocks: 10, Advancing: 6, Declining: 3, Unchanged: 1}
	if !b.IsConsistent() {
		t.Error("expected consistent breadth")
	}
	b.Unchanged = 0
	if b.IsConsistent() {
		t.Error("expected inconsistent breadth")
	}
}

func TestMarketOverview_Empty(t *testing.T) {
	if !(MarketOverview{}).Empty() {
		t.Error("zero overview should be empty")
	}
	o := MarketOverview{CapitalFlow: &CapitalFlow{}}
	if o.Empty() {
		t.Error("overview with flow should not be empty")
	}
}
