package mempool_test

import (
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool"
	"github.com/ardanlabs/ledger/foundation/blockchain/mempool/selector"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ethereum/go-ethereum/crypto"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func sign(t *testing.T, hexKey string, lamports uint64, price uint64) database.Transaction {
	t.Helper()

	pk, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to load the key: %s", failed, err)
	}
	payer := database.PublicKeyToPubkey(pk.PublicKey)

	to := database.NewPubkeyFromSeed("to")
	ixs := []database.Instruction{program.Transfer(payer, to, lamports)}
	if price > 0 {
		ixs = append(ixs, database.Instruction{ProgramID: database.ComputeBudgetProgramID, Data: fee.SetComputeUnitPrice(price)})
	}

	msg := database.NewMessage(payer, database.HashOf([]byte("blockhash")), ixs...)

	tx, err := database.NewTransaction(msg, pk)
	if err != nil {
		t.Fatalf("\t%s\tShould be able to sign transaction: %s", failed, err)
	}

	return tx
}

const (
	signPavel = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	signBill  = "9f332e3700d8fc2446eaf6d15034cf96e0c2745e40353deef032a5dbf1dfed93"
	signEd    = "aed31b6b5a341af8f27e66fb0b7633cf20fc27049e3eb7f6f623a4655b719ebb"
)

func TestCRUD(t *testing.T) {
	t.Log("Given the need to validate mempool api.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen handling a set of transaction.", testID)
		{
			mp, err := mempool.New()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the mempool: %s", failed, testID, err)
			}

			txs := []database.Transaction{
				sign(t, signPavel, 1, 10),
				sign(t, signBill, 2, 50),
				sign(t, signEd, 3, 100),
				sign(t, signPavel, 4, 10),
			}

			for _, tx := range txs {
				if _, err := mp.Upsert(tx); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %s", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould be able to add new transactions.", success, testID)

			if _, err := mp.Upsert(txs[0]); err != mempool.ErrDuplicate {
				t.Fatalf("\t%s\tTest %d:\tShould reject a duplicate signature: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a duplicate signature.", success, testID)

			exp := []database.Transaction{txs[2], txs[1], txs[0], txs[3]}
			for i, tx := range mp.PickBest(-1) {
				if tx.Signature() != exp[i].Signature() {
					t.Logf("\t%s\tTest %d:\tgot: %s", failed, testID, tx)
					t.Logf("\t%s\tTest %d:\texp: %s", failed, testID, exp[i])
					t.Fatalf("\t%s\tTest %d:\tShould get back the best price first.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould get back the best price first.", success, testID)

			if l := len(mp.PickBest(2)); l != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould limit the selection: got %d", failed, testID, l)
			}
			t.Logf("\t%s\tTest %d:\tShould limit the selection.", success, testID)

			mp.Delete(txs[1].Signature())
			if mp.Count() != 3 || mp.Contains(txs[1].Signature()) {
				t.Fatalf("\t%s\tTest %d:\tShould be able to remove a transaction.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to remove a transaction.", success, testID)

			mp.Truncate()
			if mp.Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould be able to truncate mempool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to truncate mempool.", success, testID)
		}
	}
}

func TestFairStrategy(t *testing.T) {
	t.Log("Given the need to share the slot between fee payers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen one payer submits most of the transactions.", testID)
		{
			mp, err := mempool.NewWithStrategy(selector.StrategyFair)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the mempool: %s", failed, testID, err)
			}

			bill1 := sign(t, signBill, 1, 500)
			bill2 := sign(t, signBill, 2, 400)
			bill3 := sign(t, signBill, 3, 300)
			ed := sign(t, signEd, 4, 1)

			for _, tx := range []database.Transaction{bill1, bill2, bill3, ed} {
				if _, err := mp.Upsert(tx); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to add new transaction: %s", failed, testID, err)
				}
			}

			best := mp.PickBest(2)
			if len(best) != 2 || best[0].Signature() != bill1.Signature() || best[1].Signature() != ed.Signature() {
				t.Fatalf("\t%s\tTest %d:\tShould take one transaction per payer first: %v", failed, testID, best)
			}
			t.Logf("\t%s\tTest %d:\tShould take one transaction per payer first.", success, testID)

			all := mp.PickBest(-1)
			exp := []database.Transaction{bill1, ed, bill2, bill3}
			for i := range exp {
				if all[i].Signature() != exp[i].Signature() {
					t.Fatalf("\t%s\tTest %d:\tShould keep the arrival order of a payer.", failed, testID)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould keep the arrival order of a payer.", success, testID)
		}
	}
}

func TestStrategyNotFound(t *testing.T) {
	if _, err := mempool.NewWithStrategy("tip"); err == nil {
		t.Fatalf("\t%s\tShould reject an unknown strategy.", failed)
	}
	t.Logf("\t%s\tShould reject an unknown strategy.", success)
}
