// Package cmd contains the ledger wallet commands.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	accountName string
	accountPath string
	url         string
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8080", "Url of the node.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "A simple wallet for the ledger node",
}

// Execute runs the wallet commands.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}
