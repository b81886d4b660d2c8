package consensus

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// MaxHalvingPeriods is the largest elapsed-period count whose divisor 2^n
// still fits the 256-bit accumulator. Past it the reward is zero.
const MaxHalvingPeriods = 255

// maxClz bounds the leading-zero count of a 32-byte digest.
const maxClz = 256

type RewardParams struct {
	// Denomination is the number of base units paid per clz^2 before any
	// halving.
	Denomination uint64 `json:"denomination" yaml:"denomination"`
	// HalvingPeriodSeconds is the length of one halving period.
	HalvingPeriodSeconds uint64 `json:"halving_period_seconds" yaml:"halvingPeriodSeconds"`
	// StartTime is the unix timestamp the schedule starts from. Earlier
	// block times are clamped to it.
	StartTime uint64 `json:"start_time" yaml:"startTime"`
}

// HalvingPeriods returns the number of whole halving periods elapsed at
// blockTime. Block times before StartTime count as StartTime.
func HalvingPeriods(blockTime uint64, p RewardParams) uint64 {
	if blockTime < p.StartTime {
		blockTime = p.StartTime
	}
	if p.HalvingPeriodSeconds == 0 {
		return 0
	}
	return (blockTime - p.StartTime) / p.HalvingPeriodSeconds
}

// ComputeReward returns floor(Denomination * clz^2 / 2^periods).
//
// Arithmetic is integer-only. The caller guarantees 0 <= clz <= 256 and a
// Denomination for which Denomination*256^2 fits in a uint64 (see
// Params.Validate); out-of-range clz values are clamped.
func ComputeReward(blockTime uint64, clz int, p RewardParams) uint64 {
	if clz <= 0 {
		return 0
	}
	if clz > maxClz {
		clz = maxClz
	}
	periods := HalvingPeriods(blockTime, p)
	if periods > MaxHalvingPeriods {
		return 0
	}

	c := uint256.NewInt(uint64(clz))
	num := new(uint256.Int).Mul(c, c)
	num.Mul(num, uint256.NewInt(p.Denomination))

	halving := new(uint256.Int).Lsh(uint256.NewInt(1), uint(periods))
	reward := new(uint256.Int).Div(num, halving)
	if !reward.IsUint64() {
		// Unreachable with validated params.
		return ^uint64(0)
	}
	return reward.Uint64()
}

// FormatAmount renders a base-unit amount as a token amount with the given
// number of decimals.
func FormatAmount(amount uint64, decimals int32) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -decimals).StringFixed(decimals)
}
