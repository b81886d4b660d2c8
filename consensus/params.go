package consensus

import (
	"fmt"
	"sort"
)

const (
	// ParamsVersionV1 is the only parameter layout currently defined.
	ParamsVersionV1 uint32 = 1

	defaultDenomination       = uint64(100_000_000)
	defaultHalvingPeriodDays  = uint64(14)
	defaultHalvingPeriodSecs  = defaultHalvingPeriodDays * 24 * 3600
	defaultScheduleStartTime  = uint64(1756786800) // 2025-09-02 04:20:00 UTC
	testnet4MinTargetBits     = uint32(0x1d00ffff)
	mainnetMinTargetBits      = uint32(0x17031ab6)
	regtestMinTargetBits      = uint32(0x207fffff)
	maxDenominationForClzBits = ^uint64(0) / (maxClz * maxClz)
)

// Params is the versioned set of deployment constants the mint rules read.
// Values are fixed for the life of the process.
type Params struct {
	Name    string `json:"name" yaml:"name"`
	Version uint32 `json:"version" yaml:"version"`
	// MinTargetBits is the loosest block target (compact nBits) a proof may
	// declare.
	MinTargetBits uint32       `json:"min_target_bits" yaml:"minTargetBits"`
	Reward        RewardParams `json:"reward" yaml:"reward"`
}

func defaultReward() RewardParams {
	return RewardParams{
		Denomination:         defaultDenomination,
		HalvingPeriodSeconds: defaultHalvingPeriodSecs,
		StartTime:            defaultScheduleStartTime,
	}
}

var deployments = map[string]Params{
	"testnet4": {
		Name:          "testnet4",
		Version:       ParamsVersionV1,
		MinTargetBits: testnet4MinTargetBits,
		Reward:        defaultReward(),
	},
	"mainnet": {
		Name:          "mainnet",
		Version:       ParamsVersionV1,
		MinTargetBits: mainnetMinTargetBits,
		Reward:        defaultReward(),
	},
	"regtest": {
		Name:          "regtest",
		Version:       ParamsVersionV1,
		MinTargetBits: regtestMinTargetBits,
		Reward:        defaultReward(),
	},
}

// Testnet4Params returns the testnet4 deployment.
func Testnet4Params() Params { return deployments["testnet4"] }

// MainnetParams returns the mainnet deployment.
func MainnetParams() Params { return deployments["mainnet"] }

// RegtestParams returns a deployment with a trivially low minimum target,
// intended for local testing only.
func RegtestParams() Params { return deployments["regtest"] }

// DeploymentParams looks up a built-in deployment by name.
func DeploymentParams(name string) (Params, error) {
	p, ok := deployments[name]
	if !ok {
		return Params{}, fmt.Errorf("unknown deployment %q", name)
	}
	return p, nil
}

// Deployments lists the built-in deployment names in sorted order.
func Deployments() []string {
	out := make([]string, 0, len(deployments))
	for name := range deployments {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (p Params) Validate() error {
	if p.Version != ParamsVersionV1 {
		return fmt.Errorf("params: unsupported version %d", p.Version)
	}
	if _, err := CompactToTarget(p.MinTargetBits); err != nil {
		return fmt.Errorf("params: min_target_bits: %w", err)
	}
	if p.Reward.HalvingPeriodSeconds == 0 {
		return fmt.Errorf("params: halving_period_seconds must be > 0")
	}
	if p.Reward.Denomination > maxDenominationForClzBits {
		return fmt.Errorf("params: denomination %d overflows at clz=%d", p.Reward.Denomination, maxClz)
	}
	return nil
}
