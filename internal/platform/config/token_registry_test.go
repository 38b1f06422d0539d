package config

import "testing"

func TestSymbolOf(t *testing.T) {
	tests := map[string]string{
		"0x2::sui::SUI":     "SUI",
		"0xabc::usdc::USDC": "USDC",
		"not-a-type":        "not-a-type",
		"0x1::m::":          "0x1::m::",
	}
	for in, want := range tests {
		if got := SymbolOf(in); got != want {
			t.Errorf("SymbolOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKnownTokens(t *testing.T) {
	sui, ok := KnownTokens["0x2::sui::SUI"]
	if !ok || sui.Decimals != 9 {
		t.Errorf("SUI metadata: got %+v", sui)
	}
	for coinType, info := range KnownTokens {
		if info.CoinType != coinType {
			t.Errorf("%s: CoinType field is %s", coinType, info.CoinType)
		}
		if info.IsStablecoin && !info.USDPrice.IsPositive() {
			t.Errorf("%s: stablecoin without a static price", coinType)
		}
	}
}

func TestMergeTokens_DefaultSymbol(t *testing.T) {
	tokens, err := mergeTokens(map[string]TokenConfig{"0xa::wal::wal": {Decimals: 9}})
	if err != nil {
		t.Fatalf("mergeTokens failed: %v", err)
	}
	if got := tokens["0xa::wal::wal"].Symbol; got != "WAL" {
		t.Errorf("symbol: expected WAL, got %s", got)
	}
	if _, ok := tokens["0x2::sui::SUI"]; !ok {
		t.Error("known tokens must survive overrides")
	}
}
