package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/source"
)

// ErrMetadataNotFound is returned when the node has no metadata for a coin.
var ErrMetadataNotFound = errors.New("rpc: coin metadata not found")

type objectOptions struct {
	ShowType    bool `json:"showType"`
	ShowContent bool `json:"showContent"`
}

type objectResponse struct {
	Data  *objectData  `json:"data,omitempty"`
	Error *objectError `json:"error,omitempty"`
}

type objectData struct {
	ObjectID string       `json:"objectId"`
	Version  string       `json:"version"`
	Type     string       `json:"type,omitempty"`
	Content  *moveContent `json:"content,omitempty"`
}

type moveContent struct {
	DataType string                     `json:"dataType"`
	Type     string                     `json:"type"`
	Fields   map[string]json.RawMessage `json:"fields"`
}

type objectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id,omitempty"`
}

type coinMetadata struct {
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

type executeOptions struct {
	ShowEffects bool `json:"showEffects"`
	ShowEvents  bool `json:"showEvents"`
}

type executeResponse struct {
	Digest  string `json:"digest"`
	Effects *struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		} `json:"status"`
	} `json:"effects,omitempty"`
	Events []struct {
		Type       string         `json:"type"`
		ParsedJSON map[string]any `json:"parsedJson"`
	} `json:"events"`
}

// FetchPoolRaw reads the pool object and flattens its Move fields.
func (c *Client) FetchPoolRaw(ctx context.Context, poolID string) (source.RawPool, error) {
	var resp objectResponse
	if err := c.call(ctx, &resp, methodGetObject, poolID, objectOptions{ShowType: true, ShowContent: true}); err != nil {
		return source.RawPool{}, source.WrapOp("fetch_pool", poolID, err)
	}
	if resp.Error != nil {
		err := fmt.Errorf("object error %s", resp.Error.Code)
		if resp.Error.Code == "notExists" || resp.Error.Code == "deleted" {
			err = fmt.Errorf("%w: %s", pool.ErrPoolNotFound, resp.Error.Code)
		}
		return source.RawPool{}, source.WrapOp("fetch_pool", poolID, err)
	}
	if resp.Data == nil || resp.Data.Content == nil || resp.Data.Content.DataType != "moveObject" {
		return source.RawPool{}, source.WrapOp("fetch_pool", poolID, fmt.Errorf("%w: object has no move content", source.ErrMalformedPoolData))
	}

	raw, err := decodeRawPool(resp.Data.Content.Fields)
	if err != nil {
		return source.RawPool{}, source.WrapOp("fetch_pool", poolID, err)
	}
	return raw, nil
}

// FetchMetadata reads coin display metadata.
func (c *Client) FetchMetadata(ctx context.Context, coinType string) (source.TokenMetadata, error) {
	var meta *coinMetadata
	if err := c.call(ctx, &meta, methodGetCoinMetadata, coinType); err != nil {
		return source.TokenMetadata{}, source.WrapOp("fetch_metadata", "", err)
	}
	if meta == nil {
		return source.TokenMetadata{}, source.WrapOp("fetch_metadata", "", fmt.Errorf("%w: %s", ErrMetadataNotFound, coinType))
	}
	return source.TokenMetadata{
		CoinType: coinType,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
	}, nil
}

// Submit signs the operation through the configured Signer and executes it,
// waiting for local execution so events are available.
func (c *Client) Submit(ctx context.Context, op source.Operation) (source.Receipt, error) {
	opName := string(op.Kind)
	if c.signer == nil {
		return source.Receipt{}, source.WrapOp(opName, op.PoolID, errors.New("no signer configured"))
	}
	call, err := op.MoveCall(c.cfg.PackageID, c.cfg.Module, c.cfg.RegistryID)
	if err != nil {
		return source.Receipt{}, source.WrapOp(opName, op.PoolID, err)
	}
	signed, err := c.signer.Sign(ctx, call)
	if err != nil {
		return source.Receipt{}, source.WrapOp(opName, op.PoolID, fmt.Errorf("sign: %w", err))
	}

	var resp executeResponse
	err = c.call(ctx, &resp, methodExecuteTransaction,
		signed.TxBytes, signed.Signatures,
		executeOptions{ShowEffects: true, ShowEvents: true},
		"WaitForLocalExecution")
	if err != nil {
		return source.Receipt{}, source.WrapOp(opName, op.PoolID, err)
	}

	receipt := source.Receipt{RequestID: op.RequestID, Digest: resp.Digest}
	if resp.Effects != nil {
		receipt.Success = resp.Effects.Status.Status == "success"
		receipt.Error = resp.Effects.Status.Error
	}
	for _, ev := range resp.Events {
		receipt.Events = append(receipt.Events, source.Event{Type: ev.Type, Fields: ev.ParsedJSON})
	}
	return receipt, nil
}

func decodeRawPool(fields map[string]json.RawMessage) (source.RawPool, error) {
	var raw source.RawPool
	targets := []struct {
		name     string
		out      *string
		required bool
	}{
		{"token_x", &raw.TokenX, true},
		{"token_y", &raw.TokenY, true},
		{"fee_rate", &raw.FeeRatePpm, true},
		{"tick_spacing", &raw.TickSpacing, true},
		{"sqrt_price", &raw.SqrtPriceX96, true},
		{"liquidity", &raw.Liquidity, true},
		{"current_tick", &raw.Tick, true},
		{"fee_growth_global_x", &raw.FeeGrowthGlobalX, false},
		{"fee_growth_global_y", &raw.FeeGrowthGlobalY, false},
		{"reserve_x", &raw.ReserveX, false},
		{"reserve_y", &raw.ReserveY, false},
	}
	for _, t := range targets {
		msg, ok := fields[t.name]
		if !ok {
			if t.required {
				return source.RawPool{}, fmt.Errorf("%w: field %s: missing", source.ErrMalformedPoolData, t.name)
			}
			continue
		}
		v, err := scalar(msg)
		if err != nil {
			return source.RawPool{}, fmt.Errorf("%w: field %s: %v", source.ErrMalformedPoolData, t.name, err)
		}
		*t.out = v
	}
	raw.TokenX = NormalizeCoinType(raw.TokenX)
	raw.TokenY = NormalizeCoinType(raw.TokenY)
	return raw, nil
}

// scalar flattens a Move field to a string. Wrapper structs such as I32
// {"bits": n}, TypeName {"name": s} or Balance {"value": n} are unwrapped.
func scalar(msg json.RawMessage) (string, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 || bytes.Equal(msg, []byte("null")) {
		return "", errors.New("null")
	}

	switch msg[0] {
	case '"':
		var s string
		err := json.Unmarshal(msg, &s)
		return s, err
	case '{':
		var wrapped struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		if err := json.Unmarshal(msg, &wrapped); err != nil {
			return "", err
		}
		inner := wrapped.Fields
		if inner == nil {
			if err := json.Unmarshal(msg, &inner); err != nil {
				return "", err
			}
		}
		for _, key := range []string{"bits", "name", "value"} {
			if v, ok := inner[key]; ok {
				return scalar(v)
			}
		}
		return "", errors.New("unrecognized struct")
	default:
		dec := json.NewDecoder(bytes.NewReader(msg))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// NormalizeCoinType adds the 0x prefix and strips address zero padding, so
// "0000…0002::sui::SUI" and "0x2::sui::SUI" compare equal.
func NormalizeCoinType(t string) string {
	parts := strings.SplitN(t, "::", 2)
	if len(parts) != 2 {
		return t
	}
	addr := strings.TrimPrefix(strings.ToLower(parts[0]), "0x")
	addr = strings.TrimLeft(addr, "0")
	if addr == "" {
		addr = "0"
	}
	return "0x" + addr + "::" + parts[1]
}
