// Package split computes proportional payouts with deterministic remainder
// handling and overflow protection.
package split

import (
	"math/bits"

	dErrors "poolpay/pkg/domain-errors"
)

// Calculate distributes net proportionally to shares out of totalShares.
//
// Each payout is floor(net * shares[i] / totalShares), computed with a widened
// 64x64->128 bit multiply so the intermediate product cannot overflow. The
// returned remainder is net minus the sum of payouts; the caller decides its
// disposition.
//
// Invariants, for totalShares equal to the sum of shares:
//
//	sum(payouts) + remainder == net
//	0 <= remainder < len(shares)
func Calculate(net uint64, shares []uint64, totalShares uint64) ([]uint64, uint64, error) {
	if len(shares) == 0 {
		return nil, 0, dErrors.New(dErrors.CodeInvalidInput, "shares cannot be empty")
	}
	if totalShares == 0 {
		return nil, 0, dErrors.New(dErrors.CodeInvalidInput, "total shares cannot be zero")
	}

	payouts := make([]uint64, len(shares))
	var paid uint64
	for i, share := range shares {
		if share == 0 {
			return nil, 0, dErrors.NewWithParams(dErrors.CodeInvalidInput, "share cannot be zero",
				map[string]any{"index": i})
		}
		if share > totalShares {
			return nil, 0, dErrors.NewWithParams(dErrors.CodeInvalidInput, "share exceeds total shares",
				map[string]any{"index": i, "share": share, "total_shares": totalShares})
		}
		payouts[i] = mulDiv(net, share, totalShares)
		paid += payouts[i]
	}

	// paid <= net because each payout is floored and shares are bounded by
	// totalShares, so the subtraction cannot underflow.
	return payouts, net - paid, nil
}

// mulDiv returns floor(a*b/d) using a 128-bit intermediate. Callers guarantee
// b <= d, which bounds the quotient within uint64 and keeps Div64 defined
// (a*b < 2^64*d implies hi < d).
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}
