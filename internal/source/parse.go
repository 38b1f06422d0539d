package source

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/feetier"
	"github.com/agatticelli/clmm-engine/internal/pool"
)

// ParsePool validates raw state and builds a hydrated pool with the given id.
// Each failure names its field and wraps ErrMalformedPoolData; a well-formed
// record describing an impossible pool surfaces the pool error instead.
func ParsePool(poolID string, raw RawPool, opts ...pool.Option) (*pool.Pool, error) {
	if strings.TrimSpace(poolID) == "" {
		return nil, malformed("id", "empty")
	}
	if raw.TokenX == "" {
		return nil, malformed("token_x", "empty")
	}
	if raw.TokenY == "" {
		return nil, malformed("token_y", "empty")
	}

	fee, err := strconv.ParseUint(strings.TrimSpace(raw.FeeRatePpm), 10, 32)
	if err != nil {
		return nil, malformed("fee_rate", err)
	}
	tier, err := feetier.ByFeeRate(uint32(fee))
	if err != nil {
		return nil, malformed("fee_rate", err)
	}

	spacing, err := strconv.ParseInt(strings.TrimSpace(raw.TickSpacing), 10, 32)
	if err != nil {
		return nil, malformed("tick_spacing", err)
	}
	if int32(spacing) != tier.TickSpacing {
		return nil, malformed("tick_spacing", fmt.Sprintf("%d does not match %s tier spacing %d", spacing, tier.Name, tier.TickSpacing))
	}

	sqrtPrice, err := parseUint("sqrt_price", raw.SqrtPriceX96, true)
	if err != nil {
		return nil, err
	}
	liquidity, err := parseUint("liquidity", raw.Liquidity, true)
	if err != nil {
		return nil, err
	}
	tick, err := ParseTick(raw.Tick)
	if err != nil {
		return nil, malformed("current_tick", err)
	}

	state := pool.State{
		ID:           poolID,
		TokenX:       raw.TokenX,
		TokenY:       raw.TokenY,
		Tier:         tier,
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Liquidity:    liquidity,
	}
	optional := []struct {
		name string
		in   string
		out  **uint256.Int
	}{
		{"fee_growth_global_x", raw.FeeGrowthGlobalX, &state.FeeGrowthGlobalX},
		{"fee_growth_global_y", raw.FeeGrowthGlobalY, &state.FeeGrowthGlobalY},
		{"reserve_x", raw.ReserveX, &state.ReserveX},
		{"reserve_y", raw.ReserveY, &state.ReserveY},
	}
	for _, f := range optional {
		if *f.out, err = parseUint(f.name, f.in, false); err != nil {
			return nil, err
		}
	}

	p, err := pool.Hydrate(state, opts...)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}
	return p, nil
}

// ParseTick reads a signed tick. Values above MaxInt32 are taken as the
// two's-complement bits of a Move I32, which is how some packages store
// signed ticks.
func ParseTick(s string) (int32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return 0, err
		}
		return int32(v), nil
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int32(uint32(v)), nil
}

func parseUint(field, s string, required bool) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return nil, malformed(field, "missing")
		}
		return nil, nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, malformed(field, err)
	}
	return v, nil
}

func malformed(field string, cause any) error {
	return fmt.Errorf("%w: field %s: %v", ErrMalformedPoolData, field, cause)
}
