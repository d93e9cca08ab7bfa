package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulsegate/pulsegate/internal/crypto/credcrypto"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a random credential encryption master key",
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := credcrypto.GenerateKey()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}
