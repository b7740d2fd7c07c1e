package public

import (
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/bank"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
)

// submitTx is the signed transaction a wallet posts to the node.
type submitTx struct {
	Signatures []database.Signature `json:"signatures" validate:"required,min=1"`
	Message    database.Message     `json:"message" validate:"required"`
}

func (s submitTx) toTransaction() database.Transaction {
	return database.Transaction{
		Signatures: s.Signatures,
		Message:    s.Message,
	}
}

type submitted struct {
	Signature database.Signature `json:"signature"`
	Pending   int                `json:"pending"`
}

type account struct {
	Pubkey     database.Pubkey `json:"pubkey"`
	Commitment string          `json:"commitment"`
	Slot       uint64          `json:"slot"`
	Lamports   uint64          `json:"lamports"`
	Owner      database.Pubkey `json:"owner"`
	Executable bool            `json:"executable"`
	RentEpoch  uint64          `json:"rent_epoch"`
	DataLen    int             `json:"data_len"`
}

type bankInfo struct {
	Slot             uint64        `json:"slot"`
	ParentSlot       uint64        `json:"parent_slot"`
	Epoch            uint64        `json:"epoch"`
	BlockHeight      uint64        `json:"block_height"`
	Frozen           bool          `json:"frozen"`
	Hash             database.Hash `json:"hash,omitzero"`
	ParentHash       database.Hash `json:"parent_hash"`
	LastBlockhash    database.Hash `json:"last_blockhash"`
	Capitalization   uint64        `json:"capitalization"`
	TransactionCount uint64        `json:"transaction_count"`
}

func toBankInfo(b *bank.Bank) bankInfo {
	return bankInfo{
		Slot:             b.Slot(),
		ParentSlot:       b.ParentSlot(),
		Epoch:            b.Epoch(),
		Frozen:           b.IsFrozen(),
		ParentHash:       b.ParentHash(),
		LastBlockhash:    b.LastBlockhash(),
		Capitalization:   b.Capitalization(),
		TransactionCount: b.TransactionCount(),
		Hash:             b.Hash(),
		BlockHeight:      b.BlockHeight(),
	}
}

type genesisInfo struct {
	Hash         database.Hash `json:"hash"`
	CreationTime time.Time     `json:"creation_time"`
	ClusterType  string        `json:"cluster_type"`
	TicksPerSlot uint64        `json:"ticks_per_slot"`
	Accounts     int           `json:"accounts"`
	Validators   int           `json:"validators"`
	Features     []string      `json:"features"`
}
