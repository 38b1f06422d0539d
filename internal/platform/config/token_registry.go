package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenInfo is display metadata for a coin type. The engine itself only
// needs it for human-readable amounts and TVL.
type TokenInfo struct {
	CoinType     string
	Symbol       string
	Decimals     uint8
	IsStablecoin bool
	// USDPrice is a static valuation used when no price feed is wired.
	USDPrice decimal.Decimal
}

// TokenConfig is the YAML form of a token override.
type TokenConfig struct {
	Symbol       string `mapstructure:"symbol"`
	Decimals     int    `mapstructure:"decimals"`
	IsStablecoin bool   `mapstructure:"stablecoin"`
	USDPrice     string `mapstructure:"usd_price"`
}

const (
	SUICoinType  = "0x2::sui::SUI"
	USDCCoinType = "0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC"
)

// KnownTokens are coin types whose metadata is fixed.
var KnownTokens = map[string]TokenInfo{
	SUICoinType: {
		CoinType: SUICoinType,
		Symbol:   "SUI",
		Decimals: 9,
	},
	USDCCoinType: {
		CoinType:     USDCCoinType,
		Symbol:       "USDC",
		Decimals:     6,
		IsStablecoin: true,
		USDPrice:     decimal.NewFromInt(1),
	},
}

// SymbolOf returns the last path segment of a Move coin type, e.g.
// "0x2::sui::SUI" → "SUI". Malformed types come back unchanged.
func SymbolOf(coinType string) string {
	parts := strings.Split(coinType, "::")
	if len(parts) != 3 || parts[2] == "" {
		return coinType
	}
	return parts[2]
}

func mergeTokens(overrides map[string]TokenConfig) (map[string]TokenInfo, error) {
	out := make(map[string]TokenInfo, len(KnownTokens)+len(overrides))
	for k, v := range KnownTokens {
		out[k] = v
	}

	for coinType, o := range overrides {
		// viper lowercases map keys; restore the canonical form when known.
		coinType = canonicalCoinType(coinType)
		if o.Decimals < 0 || o.Decimals > 36 {
			return nil, fmt.Errorf("token %s: decimals %d out of range", coinType, o.Decimals)
		}
		info := TokenInfo{
			CoinType:     coinType,
			Symbol:       o.Symbol,
			Decimals:     uint8(o.Decimals),
			IsStablecoin: o.IsStablecoin,
		}
		if info.Symbol == "" {
			info.Symbol = strings.ToUpper(SymbolOf(coinType))
		}
		if o.USDPrice != "" {
			p, err := decimal.NewFromString(o.USDPrice)
			if err != nil {
				return nil, fmt.Errorf("token %s: invalid usd_price %q: %w", coinType, o.USDPrice, err)
			}
			info.USDPrice = p
		}
		out[coinType] = info
	}
	return out, nil
}

func canonicalCoinType(key string) string {
	for k := range KnownTokens {
		if strings.EqualFold(k, key) {
			return k
		}
	}
	return key
}
