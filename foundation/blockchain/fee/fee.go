// Package fee calculates the lamport cost of processing a message and
// derives the per signature price from network congestion.
package fee

import (
	"math"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// BaseCongestion is the per signature price at which no congestion discount
// is applied.
const BaseCongestion = 5000.0

// Bin maps a compute unit limit upper bound to the fee charged for it.
type Bin struct {
	Limit uint64 `json:"limit"`
	Fee   uint64 `json:"fee"`
}

// Structure holds the prices used to calculate the fee of a message.
type Structure struct {
	LamportsPerSignature uint64 `json:"lamports_per_signature"`
	LamportsPerWriteLock uint64 `json:"lamports_per_write_lock"`
	ComputeFeeBins       []Bin  `json:"compute_fee_bins"`
}

// DefaultStructure returns the fee structure used when the genesis file
// does not provide one.
func DefaultStructure() Structure {
	return Structure{
		LamportsPerSignature: 5000,
		LamportsPerWriteLock: 0,
		ComputeFeeBins: []Bin{
			{Limit: MaxComputeUnitLimit, Fee: 0},
		},
	}
}

// computeFee looks up the fee for the compute unit limit. A limit above
// every bin is charged the fee of the last bin.
func (s Structure) computeFee(limit uint64) uint64 {
	if len(s.ComputeFeeBins) == 0 {
		return 0
	}

	for _, bin := range s.ComputeFeeBins {
		if limit <= bin.Limit {
			return bin.Fee
		}
	}

	return s.ComputeFeeBins[len(s.ComputeFeeBins)-1].Fee
}

// =============================================================================

// Calculate returns the fee for the message given the per signature price
// recorded for its blockhash. A zero price turns every fee off.
func Calculate(msg database.Message, lamportsPerSignature uint64, structure Structure, budget ComputeBudget) uint64 {
	congestionMultiplier := 0.0
	if lamportsPerSignature != 0 {
		congestionMultiplier = BaseCongestion / math.Max(BaseCongestion, float64(lamportsPerSignature))
	}

	signatureFee := SignatureCount(msg) * structure.LamportsPerSignature
	writeLockFee := msg.NumWriteLocks() * structure.LamportsPerWriteLock
	computeFee := structure.computeFee(budget.UnitLimit)

	total := float64(budget.PrioritizationFee() + signatureFee + writeLockFee + computeFee)

	return uint64(math.Round(total * congestionMultiplier))
}

// SignatureCount returns the number of signatures the message pays for. This
// includes the required signatures of the message and every signature
// checked by the secp256k1 precompile.
func SignatureCount(msg database.Message) uint64 {
	count := uint64(msg.Header.NumRequiredSignatures)

	for i, ix := range msg.Instructions {
		if msg.ProgramID(i) != database.Secp256k1ProgramID {
			continue
		}

		if len(ix.Data) > 0 {
			count += uint64(ix.Data[0])
		}
	}

	return count
}
