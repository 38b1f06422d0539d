package pool

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/agatticelli/clmm-engine/internal/feetier"
)

// Key is the canonical (tokenX, tokenY, tier) triple a pool is identified by.
type Key struct {
	TokenX string
	TokenY string
	Tier   feetier.Tier
}

// KeyOf orders the two tokens canonically. swapped is true when tokenA was
// not already the X side.
func KeyOf(tokenA, tokenB string, tier feetier.Tier) (key Key, swapped bool, err error) {
	if tokenA == "" || tokenB == "" {
		return Key{}, false, fmt.Errorf("%w: empty token type", ErrInvalidTokenPair)
	}
	if tokenA == tokenB {
		return Key{}, false, fmt.Errorf("%w: %s on both sides", ErrInvalidTokenPair, tokenA)
	}
	if tokenA > tokenB {
		return Key{TokenX: tokenB, TokenY: tokenA, Tier: tier}, true, nil
	}
	return Key{TokenX: tokenA, TokenY: tokenB, Tier: tier}, false, nil
}

// ID hashes the key with BLAKE3. Token names are length prefixed so
// different pairs can never produce the same input.
func (k Key) ID() string {
	h := blake3.New()

	var buf [4]byte
	for _, token := range []string{k.TokenX, k.TokenY} {
		binary.BigEndian.PutUint32(buf[:], uint32(len(token)))
		h.Write(buf[:])
		h.Write([]byte(token))
	}
	binary.BigEndian.PutUint32(buf[:], k.Tier.FeeRatePpm)
	h.Write(buf[:])
	binary.BigEndian.PutUint32(buf[:], uint32(k.Tier.TickSpacing))
	h.Write(buf[:])

	var id [32]byte
	h.Digest().Read(id[:])
	return "0x" + hex.EncodeToString(id[:])
}
