package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilbumi/satin/internal/auth"
)

var genKeyCmd = &cobra.Command{
	Use:   "gen-key",
	Short: "Generate a token signing key",
	Long:  `Print a new hex encoded key suitable for SATIN_AUTH_TOKEN_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := auth.GenerateKeyHex()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key <api key>",
	Short: "Hash an API key for the configuration file",
	Long: `Print the Argon2id hash of an API key. The hash can be stored in
SATIN_AUTH_API_KEY instead of the plain key.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
