package main

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/agatticelli/clmm-engine/internal/money"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/service"
)

func runPool(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	snap, err := a.svc.GetPool(ctx, args[0])
	if err != nil {
		return err
	}
	withTicks, _ := cmd.Flags().GetBool("ticks")
	return writeJSON(cmd.OutOrStdout(), newPoolView(snap, withTicks))
}

func runQuote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	amount, err := amountFlag(cmd, "amount")
	if err != nil {
		return err
	}
	xIn, _ := cmd.Flags().GetBool("x-in")

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	res, err := a.svc.Quote(ctx, args[0], service.QuoteRequest{AmountIn: amount, XIn: xIn})
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), newSwapView(res))
}

func runTVL(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	tvl, err := a.svc.TVL(ctx, args[0])
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), newTVLView(tvl))
}

type simulationReport struct {
	Initial    poolView   `json:"initial"`
	Swaps      []swapView `json:"swaps"`
	Final      poolView   `json:"final"`
	WithdrawnX string     `json:"withdrawn_x,omitempty"`
	WithdrawnY string     `json:"withdrawn_y,omitempty"`
	FeesX      string     `json:"fees_x"`
	FeesY      string     `json:"fees_y"`
}

const simulationOwner = "simulator"

func runSimulate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	flags := cmd.Flags()

	tokenA, _ := flags.GetString("token-a")
	tokenB, _ := flags.GetString("token-b")
	tier, _ := flags.GetString("fee-tier")
	priceStr, _ := flags.GetString("price")
	lower, _ := flags.GetInt32("lower")
	upper, _ := flags.GetInt32("upper")
	swaps, _ := flags.GetInt("swaps")
	slippage, _ := flags.GetInt64("slippage-bps")
	withdraw, _ := flags.GetBool("withdraw")

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return fmt.Errorf("invalid --price %q: %w", priceStr, err)
	}
	depositX, err := amountFlag(cmd, "deposit-x")
	if err != nil {
		return err
	}
	depositY, err := amountFlag(cmd, "deposit-y")
	if err != nil {
		return err
	}
	amount, err := amountFlag(cmd, "amount")
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	created, err := a.svc.CreatePool(ctx, service.CreatePoolRequest{TokenA: tokenA, TokenB: tokenB, FeeTier: tier, Price: price})
	if err != nil {
		return err
	}
	id := created.Snapshot.ID

	added, err := a.svc.AddLiquidity(ctx, service.AddLiquidityRequest{
		PoolID: id, Owner: simulationOwner, TickLower: lower, TickUpper: upper,
		AmountX: depositX, AmountY: depositY,
	})
	if err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}

	report := simulationReport{Initial: newPoolView(added.Snapshot, true)}
	for i := 0; i < swaps; i++ {
		out, err := a.svc.Swap(ctx, service.SwapRequest{
			PoolID: id, AmountIn: amount, XIn: i%2 == 0, Slippage: money.NewBPSFromInt(slippage),
		})
		if err != nil {
			return fmt.Errorf("swap %d: %w", i, err)
		}
		report.Swaps = append(report.Swaps, newSwapView(out.Result))
	}

	if withdraw {
		removed, err := a.svc.RemoveLiquidity(ctx, service.RemoveLiquidityRequest{
			PoolID: id, Owner: simulationOwner, TickLower: lower, TickUpper: upper, Liquidity: added.Result.Liquidity,
		})
		if err != nil {
			return fmt.Errorf("withdraw: %w", err)
		}
		report.WithdrawnX, report.WithdrawnY = dec(removed.Result.AmountX), dec(removed.Result.AmountY)
	}

	fees, err := a.svc.CollectFees(ctx, service.CollectFeesRequest{PoolID: id, Owner: simulationOwner, TickLower: lower, TickUpper: upper})
	if err != nil {
		return err
	}
	report.FeesX, report.FeesY = dec(fees.Result.X), dec(fees.Result.Y)
	report.Final = newPoolView(fees.Snapshot, true)

	return writeJSON(cmd.OutOrStdout(), report)
}

func amountFlag(cmd *cobra.Command, name string) (*uint256.Int, error) {
	s, _ := cmd.Flags().GetString(name)
	v, err := parseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return v, nil
}

// parseAmount reads a raw token amount in base 10.
func parseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q: %v", pool.ErrInvalidInput, s, err)
	}
	return v, nil
}
