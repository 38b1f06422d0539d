// Package feetier lists the fee tiers a pool can be created with.
package feetier

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFeeTier = errors.New("feetier: unknown fee tier")

// Tier is an immutable fee rate and the tick spacing that goes with it.
type Tier struct {
	Name        string
	FeeRatePpm  uint32
	TickSpacing int32
}

var (
	Low    = Tier{Name: "LOW", FeeRatePpm: 500, TickSpacing: 10}
	Medium = Tier{Name: "MEDIUM", FeeRatePpm: 3000, TickSpacing: 60}
	High   = Tier{Name: "HIGH", FeeRatePpm: 10000, TickSpacing: 200}
)

// ascending fee order
var tiers = [...]Tier{Low, Medium, High}

// Resolve looks a tier up by name, ignoring case and surrounding whitespace.
func Resolve(name string) (Tier, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	for _, t := range tiers {
		if t.Name == n {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: %q", ErrUnknownFeeTier, name)
}

// ByFeeRate maps a raw fee rate, as reported by a fetched pool, back to its tier.
func ByFeeRate(ppm uint32) (Tier, error) {
	for _, t := range tiers {
		if t.FeeRatePpm == ppm {
			return t, nil
		}
	}
	return Tier{}, fmt.Errorf("%w: fee rate %d ppm", ErrUnknownFeeTier, ppm)
}

// All returns every tier in ascending fee order.
func All() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers[:])
	return out
}

// FeePercent renders the fee rate as a percentage, e.g. "0.30%".
func (t Tier) FeePercent() string {
	return fmt.Sprintf("%d.%02d%%", t.FeeRatePpm/10000, t.FeeRatePpm%10000/100)
}

func (t Tier) String() string {
	return fmt.Sprintf("%s(%d ppm, spacing %d)", t.Name, t.FeeRatePpm, t.TickSpacing)
}
