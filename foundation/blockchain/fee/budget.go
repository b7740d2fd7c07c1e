package fee

import (
	"encoding/binary"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/holiman/uint256"
)

// Compute budget limits.
const (
	DefaultInstructionComputeUnitLimit = 200_000
	MaxComputeUnitLimit                = 1_400_000
	MicroLamportsPerLamport            = 1_000_000
)

// Compute budget instruction tags.
const (
	TagSetComputeUnitLimit = 2
	TagSetComputeUnitPrice = 3
)

// ComputeBudget is the execution budget requested by a message.
type ComputeBudget struct {
	UnitLimit uint64 `json:"unit_limit"`
	UnitPrice uint64 `json:"unit_price"`
}

// PrioritizationFee returns the lamports paid on top of the base fee for
// the requested unit price, rounded up.
func (b ComputeBudget) PrioritizationFee() uint64 {
	if b.UnitPrice == 0 {
		return 0
	}

	fee := new(uint256.Int).Mul(uint256.NewInt(b.UnitPrice), uint256.NewInt(b.UnitLimit))
	fee.AddUint64(fee, MicroLamportsPerLamport-1)
	fee.Div(fee, uint256.NewInt(MicroLamportsPerLamport))

	if !fee.IsUint64() {
		return ^uint64(0)
	}

	return fee.Uint64()
}

// ProcessComputeBudget reads the compute budget instructions of the message.
// Without an explicit limit every other instruction is granted the default
// per instruction limit. The limit is always capped at MaxComputeUnitLimit.
func ProcessComputeBudget(msg database.Message) (ComputeBudget, error) {
	var (
		limit, price       uint64
		hasLimit, hasPrice bool
		others             uint64
	)

	for i, ix := range msg.Instructions {
		if msg.ProgramID(i) != database.ComputeBudgetProgramID {
			others++
			continue
		}

		if len(ix.Data) == 0 {
			return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrInvalidInstructionData}
		}

		switch ix.Data[0] {
		case TagSetComputeUnitLimit:
			if len(ix.Data) != 5 {
				return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrInvalidInstructionData}
			}
			if hasLimit {
				return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrDuplicateInstruction}
			}
			limit = uint64(binary.LittleEndian.Uint32(ix.Data[1:]))
			hasLimit = true

		case TagSetComputeUnitPrice:
			if len(ix.Data) != 9 {
				return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrInvalidInstructionData}
			}
			if hasPrice {
				return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrDuplicateInstruction}
			}
			price = binary.LittleEndian.Uint64(ix.Data[1:])
			hasPrice = true

		default:
			return ComputeBudget{}, &database.InstructionError{Index: uint8(i), Err: database.ErrInvalidInstructionData}
		}
	}

	if !hasLimit {
		limit = others * DefaultInstructionComputeUnitLimit
	}

	budget := ComputeBudget{
		UnitLimit: min(limit, MaxComputeUnitLimit),
		UnitPrice: price,
	}

	return budget, nil
}

// SetComputeUnitLimit constructs the instruction data requesting a compute
// unit limit.
func SetComputeUnitLimit(units uint32) []byte {
	data := make([]byte, 5)
	data[0] = TagSetComputeUnitLimit
	binary.LittleEndian.PutUint32(data[1:], units)
	return data
}

// SetComputeUnitPrice constructs the instruction data requesting a compute
// unit price in micro-lamports.
func SetComputeUnitPrice(microLamports uint64) []byte {
	data := make([]byte, 9)
	data[0] = TagSetComputeUnitPrice
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return data
}
