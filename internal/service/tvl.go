package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/agatticelli/clmm-engine/internal/money"
	"github.com/agatticelli/clmm-engine/internal/pool"
)

// TVL is the value held by a pool. Reserves are in whole tokens.
type TVL struct {
	PoolID   string
	ReserveX decimal.Decimal
	ReserveY decimal.Decimal
	PriceX   decimal.Decimal
	PriceY   decimal.Decimal
	Value    money.USD
	// Priced is false when neither token has a USD price.
	Priced bool
}

type tokenInfo struct {
	decimals uint8
	usdPrice decimal.Decimal
}

// TVL values a pool's reserves in USD. A token without its own price is
// valued through the pool price against the other token.
func (s *Service) TVL(ctx context.Context, poolID string) (TVL, error) {
	snap, err := s.GetPool(ctx, poolID)
	if err != nil {
		return TVL{}, err
	}
	x, err := s.token(ctx, snap.TokenX)
	if err != nil {
		return TVL{}, err
	}
	y, err := s.token(ctx, snap.TokenY)
	if err != nil {
		return TVL{}, err
	}
	return valuePool(snap, x, y), nil
}

func valuePool(snap pool.Snapshot, x, y tokenInfo) TVL {
	out := TVL{
		PoolID:   snap.ID,
		ReserveX: money.ToUnits(snap.ReserveX, x.decimals),
		ReserveY: money.ToUnits(snap.ReserveY, y.decimals),
		PriceX:   x.usdPrice,
		PriceY:   y.usdPrice,
	}

	// Price of one whole X in whole Y.
	shift := int32(x.decimals) - int32(y.decimals)
	unitPrice := snap.Price.Shift(shift)

	switch {
	case out.PriceX.IsPositive() && out.PriceY.IsPositive():
	case out.PriceY.IsPositive():
		out.PriceX = unitPrice.Mul(out.PriceY)
	case out.PriceX.IsPositive() && unitPrice.IsPositive():
		out.PriceY = out.PriceX.DivRound(unitPrice, 18)
	default:
		return out
	}
	out.Priced = true
	out.Value = money.Value(snap.ReserveX, x.decimals, out.PriceX).
		Add(money.Value(snap.ReserveY, y.decimals, out.PriceY))
	return out
}

// token resolves decimals and price from the directory, falling back to the
// metadata source for decimals.
func (s *Service) token(ctx context.Context, coinType string) (tokenInfo, error) {
	if info, ok := s.tokens(coinType); ok {
		return tokenInfo{decimals: info.Decimals, usdPrice: info.USDPrice}, nil
	}
	if md, err := s.metaCache.Get(coinType); err == nil {
		return tokenInfo{decimals: md.Decimals}, nil
	}
	if s.metadata == nil {
		return tokenInfo{}, fmt.Errorf("%w: no metadata for %s", pool.ErrInvalidInput, coinType)
	}
	md, err := s.metadata.FetchMetadata(ctx, coinType)
	if err != nil {
		return tokenInfo{}, fmt.Errorf("metadata %s: %w", coinType, err)
	}
	s.metaCache.Put(coinType, md)
	return tokenInfo{decimals: md.Decimals}, nil
}
