// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// ardanID is an arbitrary number for signing messages. This will make it
// clear that the signature comes from the Ardan ledger.
// Ethereum and Bitcoin do this as well, but they use the value of 27.
const ardanID = 29

// =============================================================================

// Hash returns a unique string for the value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	hash := sha256.Sum256(data)
	return hexutil.Encode(hash[:])
}

// Sign uses the specified private key to sign the RLP encoding of the value.
// The signature is returned in the 65 byte [R|S|V] format with the ardanID
// added to the recovery id.
func Sign(value any, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return nil, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return nil, err
	}

	// Extract the public key from the data and the signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the data and signature.
	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return nil, errors.New("invalid signature")
	}

	sig[crypto.RecoveryIDOffset] += ardanID

	return sig, nil
}

// VerifySignature verifies the signature conforms to our standards.
func VerifySignature(sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("invalid signature length %d", len(sig))
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset] - ardanID
	if v != 0 && v != 1 {
		return errors.New("invalid recovery id")
	}

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return errors.New("invalid signature values")
	}

	return nil
}

// FromPublicKey extracts the public key for the account that signed the
// value.
func FromPublicKey(value any, sig []byte) (ecdsa.PublicKey, error) {

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong public key. There is no way to check this since
	// the public key is being extracted from the data and signature.

	if len(sig) != crypto.SignatureLength {
		return ecdsa.PublicKey{}, fmt.Errorf("invalid signature length %d", len(sig))
	}

	// Prepare the data for public key extraction.
	data, err := stamp(value)
	if err != nil {
		return ecdsa.PublicKey{}, err
	}

	// Remove the ardanID to get back the original 65 bytes.
	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] -= ardanID

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return ecdsa.PublicKey{}, err
	}

	return *publicKey, nil
}

// SignatureString returns the signature as a string.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the Ardan stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Encode the data.
	v, err := rlp.EncodeToBytes(value)
	if err != nil {
		return nil, err
	}

	// Hash the data data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Convert the stamp into a slice of bytes. This stamp is
	// used so signatures we produce when signing data
	// are always unique to the Ardan ledger.
	stamp := []byte("\x19Ardan Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash)

	return data, nil
}
