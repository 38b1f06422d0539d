package main

import (
	"encoding/json"
	"io"

	"github.com/holiman/uint256"

	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/service"
)

// poolView is the JSON form of a snapshot. Large integers are decimal
// strings.
type poolView struct {
	ID               string     `json:"id"`
	TokenX           string     `json:"token_x"`
	TokenY           string     `json:"token_y"`
	FeeTier          string     `json:"fee_tier"`
	FeeRatePpm       uint32     `json:"fee_rate_ppm"`
	TickSpacing      int32      `json:"tick_spacing"`
	SqrtPriceX96     string     `json:"sqrt_price_x96"`
	Tick             int32      `json:"tick"`
	Price            string     `json:"price"`
	Liquidity        string     `json:"liquidity"`
	FeeGrowthGlobalX string     `json:"fee_growth_global_x"`
	FeeGrowthGlobalY string     `json:"fee_growth_global_y"`
	ReserveX         string     `json:"reserve_x"`
	ReserveY         string     `json:"reserve_y"`
	Positions        int        `json:"positions"`
	Ticks            []tickView `json:"ticks,omitempty"`
}

type tickView struct {
	Index          int32  `json:"index"`
	LiquidityGross string `json:"liquidity_gross"`
	LiquidityNet   string `json:"liquidity_net"`
}

func newPoolView(s pool.Snapshot, withTicks bool) poolView {
	v := poolView{
		ID:               s.ID,
		TokenX:           s.TokenX,
		TokenY:           s.TokenY,
		FeeTier:          s.Tier.Name,
		FeeRatePpm:       s.Tier.FeeRatePpm,
		TickSpacing:      s.Tier.TickSpacing,
		SqrtPriceX96:     dec(s.SqrtPriceX96),
		Tick:             s.Tick,
		Price:            s.Price.String(),
		Liquidity:        dec(s.Liquidity),
		FeeGrowthGlobalX: dec(s.FeeGrowthGlobalX),
		FeeGrowthGlobalY: dec(s.FeeGrowthGlobalY),
		ReserveX:         dec(s.ReserveX),
		ReserveY:         dec(s.ReserveY),
		Positions:        s.Positions,
	}
	if withTicks {
		for _, t := range s.Ticks {
			v.Ticks = append(v.Ticks, tickView{
				Index:          t.Index,
				LiquidityGross: dec(t.LiquidityGross),
				LiquidityNet:   t.LiquidityNet.String(),
			})
		}
	}
	return v
}

type swapView struct {
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	FeePaid      string `json:"fee_paid"`
	SqrtPriceX96 string `json:"sqrt_price_x96"`
	Tick         int32  `json:"tick"`
	TicksCrossed int    `json:"ticks_crossed"`
}

func newSwapView(r pool.SwapResult) swapView {
	return swapView{
		AmountIn:     dec(r.AmountIn),
		AmountOut:    dec(r.AmountOut),
		FeePaid:      dec(r.FeePaid),
		SqrtPriceX96: dec(r.SqrtPriceX96),
		Tick:         r.Tick,
		TicksCrossed: r.TicksCrossed,
	}
}

type tvlView struct {
	PoolID   string `json:"pool_id"`
	ReserveX string `json:"reserve_x"`
	ReserveY string `json:"reserve_y"`
	PriceX   string `json:"price_x_usd"`
	PriceY   string `json:"price_y_usd"`
	Value    string `json:"value_usd"`
	Priced   bool   `json:"priced"`
}

func newTVLView(t service.TVL) tvlView {
	return tvlView{
		PoolID:   t.PoolID,
		ReserveX: t.ReserveX.String(),
		ReserveY: t.ReserveY.String(),
		PriceX:   t.PriceX.String(),
		PriceY:   t.PriceY.String(),
		Value:    t.Value.String(),
		Priced:   t.Priced,
	}
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
