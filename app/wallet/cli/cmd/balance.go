package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type account struct {
	Pubkey     database.Pubkey `json:"pubkey"`
	Commitment string          `json:"commitment"`
	Slot       uint64          `json:"slot"`
	Lamports   uint64          `json:"lamports"`
}

var commitment string

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringVarP(&commitment, "commitment", "c", "working", "Bank to read the balance from: working or root.")
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	pubkey := database.PublicKeyToPubkey(privateKey.PublicKey)
	fmt.Println("For Account:", pubkey)

	var act account
	if err := get(fmt.Sprintf("%s/v1/accounts/%s?commitment=%s", url, pubkey, commitment), http.StatusOK, &act); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Slot: %d  Lamports: %d\n", act.Slot, act.Lamports)
}
