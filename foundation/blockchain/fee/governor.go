package fee

// Default fee governor parameters.
const (
	DefaultTargetLamportsPerSignature = 10_000
	DefaultTargetSignaturesPerSlot    = 20_000
	DefaultBurnPercent                = 50
)

// RateGovernor adjusts the per signature price between slots based on the
// number of signatures processed by the parent slot.
type RateGovernor struct {
	LamportsPerSignature       uint64 `json:"lamports_per_signature"`
	TargetLamportsPerSignature uint64 `json:"target_lamports_per_signature"`
	TargetSignaturesPerSlot    uint64 `json:"target_signatures_per_slot"`
	MinLamportsPerSignature    uint64 `json:"min_lamports_per_signature"`
	MaxLamportsPerSignature    uint64 `json:"max_lamports_per_signature"`
	BurnPercent                uint8  `json:"burn_percent"`
}

// NewRateGovernor constructs the governor for the genesis slot.
func NewRateGovernor(targetLamportsPerSignature uint64, targetSignaturesPerSlot uint64, burnPercent uint8) RateGovernor {
	base := RateGovernor{
		TargetLamportsPerSignature: targetLamportsPerSignature,
		TargetSignaturesPerSlot:    targetSignaturesPerSlot,
		BurnPercent:                burnPercent,
	}

	return base.NewDerived(0)
}

// DefaultRateGovernor returns the governor used when the genesis file does
// not provide one.
func DefaultRateGovernor() RateGovernor {
	return NewRateGovernor(DefaultTargetLamportsPerSignature, DefaultTargetSignaturesPerSlot, DefaultBurnPercent)
}

// NewDerived returns the governor of a child slot. The price moves towards
// the price that matches the observed load by a twentieth of the target per
// slot, clamped to the range of half to ten times the target.
func (rg RateGovernor) NewDerived(latestSignaturesPerSlot uint64) RateGovernor {
	me := rg

	if me.TargetSignaturesPerSlot == 0 {
		me.LamportsPerSignature = me.TargetLamportsPerSignature
		me.MinLamportsPerSignature = me.TargetLamportsPerSignature
		me.MaxLamportsPerSignature = me.TargetLamportsPerSignature
		return me
	}

	me.MinLamportsPerSignature = max(1, me.TargetLamportsPerSignature/2)
	me.MaxLamportsPerSignature = me.TargetLamportsPerSignature * 10

	latest := min(latestSignaturesPerSlot, uint64(^uint32(0)))
	desired := clamp(me.TargetLamportsPerSignature*latest/me.TargetSignaturesPerSlot, me.MinLamportsPerSignature, me.MaxLamportsPerSignature)

	gap := int64(desired) - int64(rg.LamportsPerSignature)
	if gap == 0 {
		me.LamportsPerSignature = desired
		return me
	}

	step := int64(max(1, me.TargetLamportsPerSignature/20))
	if gap < 0 {
		step = -step
	}

	next := max(int64(rg.LamportsPerSignature)+step, 0)
	me.LamportsPerSignature = clamp(uint64(next), me.MinLamportsPerSignature, me.MaxLamportsPerSignature)

	return me
}

// Burn splits the fees into the portion paid out and the portion burned.
func (rg RateGovernor) Burn(fees uint64) (unburned uint64, burned uint64) {
	burned = fees * uint64(rg.BurnPercent) / 100
	return fees - burned, burned
}

func clamp(v, lo, hi uint64) uint64 {
	return max(lo, min(v, hi))
}
