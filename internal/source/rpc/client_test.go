package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agatticelli/clmm-engine/internal/platform/resilience"
	"github.com/agatticelli/clmm-engine/internal/pool"
	"github.com/agatticelli/clmm-engine/internal/source"
)

type fakeNode struct {
	mu       sync.Mutex
	objects  map[string]*objectResponse
	coins    map[string]*coinMetadata
	executed []string
	failures int // remaining calls that fail
	delay    time.Duration

	calls, inFlight, maxInFlight atomic.Int32
}

func (f *fakeNode) enter() error {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("node overloaded")
	}
	return nil
}

func (f *fakeNode) leave() { f.inFlight.Add(-1) }

type suiService struct{ node *fakeNode }

func (s *suiService) GetObject(id string, opts *objectOptions) (*objectResponse, error) {
	defer s.node.leave()
	if err := s.node.enter(); err != nil {
		return nil, err
	}
	if obj, ok := s.node.objects[id]; ok {
		return obj, nil
	}
	return &objectResponse{Error: &objectError{Code: "notExists", ObjectID: id}}, nil
}

func (s *suiService) ExecuteTransactionBlock(txBytes string, sigs []string, opts *executeOptions, requestType *string) (*executeResponse, error) {
	defer s.node.leave()
	if err := s.node.enter(); err != nil {
		return nil, err
	}
	s.node.mu.Lock()
	s.node.executed = append(s.node.executed, txBytes)
	s.node.mu.Unlock()

	var resp executeResponse
	err := json.Unmarshal([]byte(`{
		"digest": "D1",
		"effects": {"status": {"status": "success"}},
		"events": [{"type": "0xpkg::pool::PoolCreated", "parsedJson": {"pool_id": "0xnew"}}]
	}`), &resp)
	return &resp, err
}

type suixService struct{ node *fakeNode }

func (s *suixService) GetCoinMetadata(coinType string) (*coinMetadata, error) {
	defer s.node.leave()
	if err := s.node.enter(); err != nil {
		return nil, err
	}
	return s.node.coins[coinType], nil
}

func poolObject(t *testing.T) *objectResponse {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(`{
		"token_x": {"type": "0x1::type_name::TypeName", "fields": {"name": "0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"}},
		"token_y": "0xa::usdc::USDC",
		"fee_rate": "3000",
		"tick_spacing": 60,
		"sqrt_price": "79228162514264337593543950336",
		"liquidity": "5000",
		"current_tick": {"type": "0xpkg::i32::I32", "fields": {"bits": 4294967295}},
		"reserve_x": {"type": "0x2::balance::Balance", "fields": {"value": "10"}}
	}`), &fields))
	return &objectResponse{Data: &objectData{
		ObjectID: "0xpool",
		Version:  "7",
		Content:  &moveContent{DataType: "moveObject", Type: "0xpkg::pool::Pool", Fields: fields},
	}}
}

func newTestClient(t *testing.T, node *fakeNode, cfg Config, opts ...Option) *Client {
	t.Helper()
	server := gethrpc.NewServer()
	require.NoError(t, server.RegisterName("sui", &suiService{node: node}))
	require.NoError(t, server.RegisterName("suix", &suixService{node: node}))
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})

	cfg.Endpoint = httpServer.URL
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = resilience.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	}
	client, err := Dial(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestFetchPoolRaw(t *testing.T) {
	node := &fakeNode{objects: map[string]*objectResponse{}}
	node.objects["0xpool"] = poolObject(t)
	client := newTestClient(t, node, Config{})

	raw, err := client.FetchPoolRaw(context.Background(), "0xpool")
	require.NoError(t, err)
	assert.Equal(t, "0x2::sui::SUI", raw.TokenX)
	assert.Equal(t, "0xa::usdc::USDC", raw.TokenY)
	assert.Equal(t, "60", raw.TickSpacing)
	assert.Equal(t, "4294967295", raw.Tick)
	assert.Equal(t, "10", raw.ReserveX)
	assert.Empty(t, raw.ReserveY)

	p, err := source.ParsePool("0xpool", raw)
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.CurrentTick(), "reported -1 is within one tick of the price")
}

func TestFetchPoolRaw_NotFound(t *testing.T) {
	client := newTestClient(t, &fakeNode{}, Config{})

	_, err := client.FetchPoolRaw(context.Background(), "0xmissing")
	require.ErrorIs(t, err, pool.ErrPoolNotFound)

	var opErr *source.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "fetch_pool", opErr.Op)
	assert.Equal(t, "0xmissing", opErr.PoolID)
}

func TestFetchPoolRaw_MissingField(t *testing.T) {
	obj := poolObject(t)
	delete(obj.Data.Content.Fields, "liquidity")
	node := &fakeNode{objects: map[string]*objectResponse{"0xpool": obj}}
	client := newTestClient(t, node, Config{})

	_, err := client.FetchPoolRaw(context.Background(), "0xpool")
	require.ErrorIs(t, err, source.ErrMalformedPoolData)
	assert.Contains(t, err.Error(), "field liquidity")
}

func TestRetriesTransientFailures(t *testing.T) {
	node := &fakeNode{objects: map[string]*objectResponse{}, failures: 2}
	node.objects["0xpool"] = poolObject(t)
	client := newTestClient(t, node, Config{})

	_, err := client.FetchPoolRaw(context.Background(), "0xpool")
	require.NoError(t, err)
	assert.Equal(t, int32(3), node.calls.Load())

	h := client.Health()
	assert.True(t, h.Healthy())
	assert.Zero(t, h.ConsecutiveFailures, "retries inside one call are not separate outcomes")
	assert.False(t, h.LastSuccess.IsZero())
}

func TestCircuitBreakerStopsRetries(t *testing.T) {
	node := &fakeNode{failures: 100}
	var opened atomic.Bool
	client := newTestClient(t, node, Config{
		Retry: resilience.RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Breaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 2,
			Timeout:          time.Hour,
			OnStateChange: func(name string, from, to resilience.State) {
				if to == resilience.StateOpen {
					opened.Store(true)
				}
			},
		},
	})

	_, err := client.FetchPoolRaw(context.Background(), "0xpool")
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), node.calls.Load())
	assert.True(t, opened.Load())
	assert.Equal(t, resilience.StateOpen, client.Breaker().State())

	h := client.Health()
	assert.False(t, h.Healthy())
	assert.Equal(t, 1, h.ConsecutiveFailures)
	assert.NotEmpty(t, h.LastError)
}

func TestMaxInFlight(t *testing.T) {
	node := &fakeNode{objects: map[string]*objectResponse{}, delay: 20 * time.Millisecond}
	node.objects["0xpool"] = poolObject(t)
	client := newTestClient(t, node, Config{MaxInFlight: 2})

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.FetchPoolRaw(context.Background(), "0xpool")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, node.maxInFlight.Load(), int32(2))
	assert.Equal(t, int32(6), node.calls.Load())
}

func TestFetchMetadata(t *testing.T) {
	node := &fakeNode{coins: map[string]*coinMetadata{
		"0x2::sui::SUI": {Decimals: 9, Name: "Sui", Symbol: "SUI"},
	}}
	client := newTestClient(t, node, Config{})

	meta, err := client.FetchMetadata(context.Background(), "0x2::sui::SUI")
	require.NoError(t, err)
	assert.Equal(t, source.TokenMetadata{CoinType: "0x2::sui::SUI", Symbol: "SUI", Name: "Sui", Decimals: 9}, meta)

	_, err = client.FetchMetadata(context.Background(), "0xdead::x::X")
	assert.ErrorIs(t, err, ErrMetadataNotFound)
}

type stubSigner struct{ calls []source.MoveCall }

func (s *stubSigner) Sign(ctx context.Context, call source.MoveCall) (source.SignedTransaction, error) {
	s.calls = append(s.calls, call)
	return source.SignedTransaction{TxBytes: "dHg=", Signatures: []string{"c2ln"}}, nil
}

func TestSubmit(t *testing.T) {
	node := &fakeNode{}
	signer := &stubSigner{}
	client := newTestClient(t, node, Config{PackageID: "0xpkg", RegistryID: "0xreg"}, WithSigner(signer))

	op := source.NewOperation(source.KindCreatePool, "").WithArg("fee_rate", uint32(3000))
	receipt, err := client.Submit(context.Background(), op)
	require.NoError(t, err)

	assert.True(t, receipt.Success)
	assert.Equal(t, op.RequestID, receipt.RequestID)
	require.Len(t, signer.calls, 1)
	assert.Equal(t, "0xpkg::pool::create_pool", signer.calls[0].Target)
	assert.Equal(t, []string{"dHg="}, node.executed)

	id, err := source.CreatedPoolID(receipt, "pool")
	require.NoError(t, err)
	assert.Equal(t, "0xnew", id)
}

func TestSubmit_RequiresSigner(t *testing.T) {
	client := newTestClient(t, &fakeNode{}, Config{PackageID: "0xpkg"})
	_, err := client.Submit(context.Background(), source.NewOperation(source.KindSwap, "0xpool"))
	require.Error(t, err)

	var opErr *source.OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "swap", opErr.Op)
}

func TestScalar(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{`42`, "42"},
		{`340282366920938463463374607431768211455`, "340282366920938463463374607431768211455"},
		{`{"fields": {"bits": 7}}`, "7"},
		{`{"name": "0x2::sui::SUI"}`, "0x2::sui::SUI"},
		{`{"type": "x", "fields": {"value": {"fields": {"bits": "9"}}}}`, "9"},
	}
	for _, tt := range tests {
		got, err := scalar(json.RawMessage(tt.in))
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{`null`, `true`, `{"fields": {"other": 1}}`} {
		_, err := scalar(json.RawMessage(bad))
		assert.Error(t, err, bad)
	}
}

func TestNormalizeCoinType(t *testing.T) {
	assert.Equal(t, "0x2::sui::SUI", NormalizeCoinType("0x0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"))
	assert.Equal(t, "0x2::sui::SUI", NormalizeCoinType("0000000000000000000000000000000000000000000000000000000000000002::sui::SUI"))
	assert.Equal(t, "0xabc::m::T", NormalizeCoinType("0xABC::m::T"))
	assert.Equal(t, "0x0::m::T", NormalizeCoinType("0x0::m::T"))
	assert.Equal(t, "plain", NormalizeCoinType("plain"))
}
