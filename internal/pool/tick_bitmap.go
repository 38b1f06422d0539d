package pool

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// tickBitmap records which compressed ticks (tick / spacing) are initialized,
// 256 per word.
type tickBitmap map[int16]*uint256.Int

var bitOne = uint256.NewInt(1)

func compress(tick, spacing int32) int32 {
	c := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		c-- // round toward negative infinity
	}
	return c
}

func bitPosition(compressed int32) (word int16, bit uint8) {
	return int16(compressed >> 8), uint8(compressed & 0xff)
}

// flip toggles the initialized bit of an aligned tick.
func (b tickBitmap) flip(tick, spacing int32) {
	word, bit := bitPosition(tick / spacing)
	w, ok := b[word]
	if !ok {
		w = new(uint256.Int)
		b[word] = w
	}
	w.Xor(w, new(uint256.Int).Lsh(bitOne, uint(bit)))
	if w.IsZero() {
		delete(b, word)
	}
}

// nextInitializedTickWithinOneWord looks for the next initialized tick in the
// word containing tick. With lte it searches at or below tick, otherwise
// strictly above. When the word has none it returns the word boundary and
// false so the caller can continue from there.
func (b tickBitmap) nextInitializedTickWithinOneWord(tick, spacing int32, lte bool) (int32, bool) {
	compressed := compress(tick, spacing)

	if lte {
		word, bit := bitPosition(compressed)
		// all bits at or below bit
		mask := new(uint256.Int).Lsh(bitOne, uint(bit))
		mask.Add(mask, new(uint256.Int).Sub(mask, bitOne))

		if w, ok := b[word]; ok {
			masked := new(uint256.Int).And(w, mask)
			if !masked.IsZero() {
				return (compressed - (int32(bit) - mostSignificantBit(masked))) * spacing, true
			}
		}
		return (compressed - int32(bit)) * spacing, false
	}

	word, bit := bitPosition(compressed + 1)
	// all bits at or above bit
	mask := new(uint256.Int).Lsh(bitOne, uint(bit))
	mask.Not(mask.Sub(mask, bitOne))

	if w, ok := b[word]; ok {
		masked := new(uint256.Int).And(w, mask)
		if !masked.IsZero() {
			return (compressed + 1 + (leastSignificantBit(masked) - int32(bit))) * spacing, true
		}
	}
	return (compressed + 1 + (255 - int32(bit))) * spacing, false
}

func mostSignificantBit(x *uint256.Int) int32 {
	return int32(x.BitLen() - 1)
}

func leastSignificantBit(x *uint256.Int) int32 {
	for i, limb := range x {
		if limb != 0 {
			return int32(i*64 + bits.TrailingZeros64(limb))
		}
	}
	return 0
}
