package money

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

func TestUSDArithmetic(t *testing.T) {
	a := NewUSDFromCents(10050)
	b := NewUSDFromCents(2525)

	if got := a.Add(b); got.Cents() != 12575 {
		t.Errorf("Add: expected 12575, got %d", got.Cents())
	}
	if got := b.Sub(a); got.Cents() != -7525 {
		t.Errorf("Sub: expected -7525, got %d", got.Cents())
	}
	if got := a.MulBPS(50); got.Cents() != 50 {
		t.Errorf("MulBPS: expected 50, got %d", got.Cents())
	}
	if Min(a, b) != b || Max(a, b) != a {
		t.Error("Min/Max mismatch")
	}
}

func TestUSDString(t *testing.T) {
	tests := []struct {
		usd  USD
		want string
	}{
		{NewUSDFromCents(12345), "$123.45"},
		{NewUSDFromCents(5), "$0.05"},
		{NewUSDFromCents(-4500), "-$45.00"},
		{0, "$0.00"},
	}
	for _, tt := range tests {
		if got := tt.usd.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.usd, got, tt.want)
		}
	}
}

func TestUSDFromDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1.005", 101},
		{"1.004", 100},
		{"-2.5", -250},
		{"0", 0},
		{"1e30", 9223372036854775807},
	}
	for _, tt := range tests {
		got := USDFromDecimal(decimal.RequireFromString(tt.in))
		if got.Cents() != tt.want {
			t.Errorf("USDFromDecimal(%s) = %d, want %d", tt.in, got.Cents(), tt.want)
		}
	}
}

func TestBPS(t *testing.T) {
	if got := BPSFromPPM(3000); got != 30 {
		t.Errorf("BPSFromPPM(3000) = %d, want 30", got)
	}
	if got := NewBPSFromInt(50).Percent(); got != "0.50%" {
		t.Errorf("Percent = %q, want 0.50%%", got)
	}
	if got := NewBPSFromInt(50).String(); got != "50 bps" {
		t.Errorf("String = %q", got)
	}
	if BPS(-1).Valid() || BPS(10001).Valid() || !BPS(10000).Valid() {
		t.Error("Valid bounds wrong")
	}
}

func TestUnits(t *testing.T) {
	got := ToUnits(uint256.NewInt(1500000), 6)
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("ToUnits = %s, want 1.5", got)
	}
	if !ToUnits(nil, 6).IsZero() {
		t.Error("ToUnits(nil) should be zero")
	}
}

func TestValue(t *testing.T) {
	// 2.5 SUI at $1.20
	raw := uint256.NewInt(2500000000)
	got := Value(raw, 9, decimal.RequireFromString("1.20"))
	if got.Cents() != 300 {
		t.Errorf("Value = %s, want $3.00", got)
	}
}

func TestSlippageBounds(t *testing.T) {
	amount := uint256.NewInt(1000001)

	min, err := MinOut(amount, 50)
	if err != nil {
		t.Fatalf("MinOut: %v", err)
	}
	// 1000001 * 9950 / 10000 = 995000.995 → 995000
	if min.Uint64() != 995000 {
		t.Errorf("MinOut = %d, want 995000", min.Uint64())
	}

	if _, err := MinOut(amount, 10001); err == nil {
		t.Error("expected error for slippage above 100%")
	}
}

func BenchmarkUSDArithmetic(b *testing.B) {
	a := NewUSDFromCents(1000000)
	c := NewUSDFromCents(2500)
	for i := 0; i < b.N; i++ {
		_ = a.Add(c).Sub(c).MulBPS(30)
	}
}
