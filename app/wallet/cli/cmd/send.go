package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/fee"
	"github.com/ardanlabs/ledger/foundation/blockchain/program"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type bank struct {
	Slot          uint64        `json:"slot"`
	LastBlockhash database.Hash `json:"last_blockhash"`
}

type submitted struct {
	Signature database.Signature `json:"signature"`
	Pending   int                `json:"pending"`
}

var (
	to        string
	lamports  uint64
	unitPrice uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send lamports to another account",
	Run:   sendRun,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Pubkey of the receiving account.")
	sendCmd.Flags().Uint64VarP(&lamports, "lamports", "l", 0, "Lamports to send.")
	sendCmd.Flags().Uint64VarP(&unitPrice, "unit-price", "r", 0, "Compute unit price in micro-lamports.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("lamports")
}

func sendRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	toKey, err := database.ToPubkey(to)
	if err != nil {
		log.Fatal(err)
	}

	// The newest bank of the fork set carries the freshest blockhash.
	var banks []bank
	if err := get(fmt.Sprintf("%s/v1/banks", url), http.StatusOK, &banks); err != nil {
		log.Fatal(err)
	}
	if len(banks) == 0 {
		log.Fatal("node returned no banks")
	}
	recent := banks[len(banks)-1].LastBlockhash

	from := database.PublicKeyToPubkey(privateKey.PublicKey)

	instructions := []database.Instruction{program.Transfer(from, toKey, lamports)}
	if unitPrice > 0 {
		budget := database.Instruction{
			ProgramID: database.ComputeBudgetProgramID,
			Data:      fee.SetComputeUnitPrice(unitPrice),
		}
		instructions = append([]database.Instruction{budget}, instructions...)
	}

	msg := database.NewMessage(from, recent, instructions...)
	tx, err := database.NewTransaction(msg, privateKey)
	if err != nil {
		log.Fatal(err)
	}

	var resp submitted
	if err := post(fmt.Sprintf("%s/v1/tx/submit", url), tx, http.StatusAccepted, &resp); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Signature: %s  Pending: %d\n", resp.Signature, resp.Pending)
}
