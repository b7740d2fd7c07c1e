package database

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// PubkeyLength is the number of bytes in a public key.
const PubkeyLength = 32

// Pubkey represents the identity of an account in the ledger. Keys are
// derived from the Keccak256 hash of an ECDSA public key or from a seed
// for well-known program and sysvar accounts.
type Pubkey [PubkeyLength]byte

// ToPubkey converts a hex-encoded string into a public key.
func ToPubkey(hex string) (Pubkey, error) {
	b, err := hexutil.Decode(hex)
	if err != nil {
		return Pubkey{}, fmt.Errorf("decode pubkey: %w", err)
	}

	if len(b) != PubkeyLength {
		return Pubkey{}, errors.New("invalid pubkey length")
	}

	return Pubkey(b), nil
}

// PublicKeyToPubkey converts the ECDSA public key to a ledger public key.
func PublicKeyToPubkey(pk ecdsa.PublicKey) Pubkey {
	return Pubkey(crypto.Keccak256Hash(crypto.FromECDSAPub(&pk)))
}

// NewPubkeyFromSeed deterministically derives a public key from a seed
// string. This is how the well-known program and sysvar ids are created.
func NewPubkeyFromSeed(seed string) Pubkey {
	return Pubkey(sha256.Sum256([]byte(seed)))
}

// PubkeyFromPrefix constructs a public key with the specified big endian
// prefix in the first eight bytes and the fill byte everywhere else.
func PubkeyFromPrefix(prefix uint64, fill byte) Pubkey {
	var p Pubkey
	for i := range p {
		p[i] = fill
	}
	binary.BigEndian.PutUint64(p[:8], prefix)

	return p
}

// String implements the fmt.Stringer interface.
func (p Pubkey) String() string {
	return hexutil.Encode(p[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (p *Pubkey) UnmarshalText(data []byte) error {
	v, err := ToPubkey(string(data))
	if err != nil {
		return err
	}
	*p = v

	return nil
}

// Prefix returns the most significant eight bytes of the key as an
// unsigned integer. Rent partitions are computed over this value.
func (p Pubkey) Prefix() uint64 {
	return binary.BigEndian.Uint64(p[:8])
}

// Compare returns an integer comparing two keys lexicographically.
func (p Pubkey) Compare(other Pubkey) int {
	return bytes.Compare(p[:], other[:])
}

// IsZero reports whether the key is all zeros.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// =============================================================================

// HashLength is the number of bytes in a hash.
const HashLength = 32

// Hash represents a 32 byte hash value used for blockhashes, account hashes
// and bank hashes.
type Hash [HashLength]byte

// ToHash converts a hex-encoded string into a hash.
func ToHash(hex string) (Hash, error) {
	b, err := hexutil.Decode(hex)
	if err != nil {
		return Hash{}, fmt.Errorf("decode hash: %w", err)
	}

	if len(b) != HashLength {
		return Hash{}, errors.New("invalid hash length")
	}

	return Hash(b), nil
}

// HashOf returns the sha256 hash over the concatenation of the values.
func HashOf(values ...[]byte) Hash {
	h := sha256.New()
	for _, v := range values {
		h.Write(v)
	}

	var hash Hash
	copy(hash[:], h.Sum(nil))

	return hash
}

// String implements the fmt.Stringer interface.
func (h Hash) String() string {
	return hexutil.Encode(h[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (h *Hash) UnmarshalText(data []byte) error {
	v, err := ToHash(string(data))
	if err != nil {
		return err
	}
	*h = v

	return nil
}

// IsZero reports whether the hash is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// =============================================================================

// SignatureLength is the number of bytes in an [R|S|V] signature.
const SignatureLength = crypto.SignatureLength

// Signature represents a 65 byte recoverable ECDSA signature.
type Signature [SignatureLength]byte

// String implements the fmt.Stringer interface.
func (s Signature) String() string {
	return hexutil.Encode(s[:])
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements the encoding.TextUnmarshaler interface.
func (s *Signature) UnmarshalText(data []byte) error {
	b, err := hexutil.Decode(string(data))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	if len(b) != SignatureLength {
		return errors.New("invalid signature length")
	}
	copy(s[:], b)

	return nil
}

// =============================================================================

// Ancestors is the set of slots visible to a bank when reading accounts.
type Ancestors map[uint64]struct{}

// NewAncestors constructs an ancestor set from the specified slots.
func NewAncestors(slots ...uint64) Ancestors {
	a := make(Ancestors, len(slots))
	for _, s := range slots {
		a[s] = struct{}{}
	}

	return a
}

// Contains reports whether the slot is part of the set.
func (a Ancestors) Contains(slot uint64) bool {
	_, exists := a[slot]
	return exists
}
