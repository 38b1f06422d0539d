package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agatticelli/clmm-engine/internal/platform/config"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clmmctl",
		Short:         "Concentrated liquidity pool engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	config.RegisterFlags(root.PersistentFlags())

	poolCmd := &cobra.Command{
		Use:   "pool <pool-id>",
		Short: "Fetch a pool and print its state",
		Args:  cobra.ExactArgs(1),
		RunE:  runPool,
	}
	poolCmd.Flags().Bool("ticks", false, "include initialized ticks")
	root.AddCommand(poolCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote <pool-id>",
		Short: "Quote an exact-input swap against a fetched pool",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("amount", "", "raw input amount")
	quoteCmd.Flags().Bool("x-in", true, "sell token X for token Y")
	_ = quoteCmd.MarkFlagRequired("amount")
	root.AddCommand(quoteCmd)

	tvlCmd := &cobra.Command{
		Use:   "tvl <pool-id>",
		Short: "Value a pool's reserves in USD",
		Args:  cobra.ExactArgs(1),
		RunE:  runTVL,
	}
	root.AddCommand(tvlCmd)

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run swaps against an in-memory pool",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("token-a", config.SUICoinType, "first token type")
	simulateCmd.Flags().String("token-b", config.USDCCoinType, "second token type")
	simulateCmd.Flags().String("fee-tier", "MEDIUM", "LOW, MEDIUM or HIGH")
	simulateCmd.Flags().String("price", "1", "initial price, token-b per token-a in raw units")
	simulateCmd.Flags().Int32("lower", -6000, "lower tick of the seeded position")
	simulateCmd.Flags().Int32("upper", 6000, "upper tick of the seeded position")
	simulateCmd.Flags().String("deposit-x", "1000000000000", "raw X deposited by the seeded position")
	simulateCmd.Flags().String("deposit-y", "1000000000000", "raw Y deposited by the seeded position")
	simulateCmd.Flags().String("amount", "1000000000", "raw input per swap")
	simulateCmd.Flags().Int("swaps", 10, "number of swaps, alternating direction")
	simulateCmd.Flags().Int64("slippage-bps", 50, "tolerated slippage per swap")
	simulateCmd.Flags().Bool("withdraw", true, "remove the seeded liquidity before collecting fees")
	root.AddCommand(simulateCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cached pool state over HTTP",
		RunE:  runServe,
	}
	root.AddCommand(serveCmd)

	return root
}
