package database

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/zeebo/blake3"
)

// Account represents information stored in the database for an individual
// account.
type Account struct {
	Lamports   uint64 `json:"lamports"`
	Data       []byte `json:"data"`
	Owner      Pubkey `json:"owner"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rent_epoch"`
}

// NewAccount constructs a new account value for use with zeroed data of
// the specified size.
func NewAccount(lamports uint64, space int, owner Pubkey) Account {
	return Account{
		Lamports: lamports,
		Data:     make([]byte, space),
		Owner:    owner,
	}
}

// Clone returns a deep copy of the account.
func (a Account) Clone() Account {
	if a.Data != nil {
		a.Data = bytes.Clone(a.Data)
	}

	return a
}

// Equal reports whether both accounts hold identical content.
func (a Account) Equal(other Account) bool {
	return a.Lamports == other.Lamports &&
		a.Owner == other.Owner &&
		a.Executable == other.Executable &&
		a.RentEpoch == other.RentEpoch &&
		bytes.Equal(a.Data, other.Data)
}

// Hash returns the content hash of the account stored under the specified
// key. The slot the account was written in is not part of the hash, so the
// same content always produces the same hash. Accounts with zero lamports
// hash to the zero value.
func (a Account) Hash(key Pubkey) Hash {
	if a.Lamports == 0 {
		return Hash{}
	}

	hasher := getHasher()
	defer putHasher(hasher)

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], a.Lamports)
	hasher.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], a.RentEpoch)
	hasher.Write(buf[:])
	hasher.Write(a.Data)

	if a.Executable {
		hasher.Write([]byte{1})
	} else {
		hasher.Write([]byte{0})
	}

	hasher.Write(a.Owner[:])
	hasher.Write(key[:])

	var hash Hash
	copy(hash[:], hasher.Sum(nil))

	return hash
}

// KeyedAccount pairs an account with the key it is stored under.
type KeyedAccount struct {
	Key     Pubkey  `json:"key"`
	Account Account `json:"account"`
}

// =============================================================================

// hasherPool amortizes allocations of blake3 hashers across account hash
// calculations.
var hasherPool = sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

func getHasher() *blake3.Hasher {
	return hasherPool.Get().(*blake3.Hasher)
}

func putHasher(hasher *blake3.Hasher) {
	hasher.Reset()
	hasherPool.Put(hasher)
}
