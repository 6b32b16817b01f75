package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stockpile-hq/stockpile/internal/domain/auth"
)

var useArgon2id bool

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Generate a stored hash for a bearer token",
	Long: `Generate a hash of a bearer token for use in config.

By default the output is "sha256:<hex>", which can be used directly in the
auth.tokens.token_hash field. With --argon2id the output is an Argon2id PHC
string, which resists offline brute force if the config file leaks, at the
cost of slower validation.

Examples:
  stockpile hash-token "my-secret-token"
  stockpile hash-token --argon2id "my-secret-token"

Security note: the token will appear in shell history. Consider clearing
history after use or passing an environment variable:
  stockpile hash-token "$MY_TOKEN"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if useArgon2id {
			hash, err := auth.HashTokenArgon2id(args[0])
			if err != nil {
				return fmt.Errorf("failed to hash token: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Println(auth.HashToken(args[0]))
		return nil
	},
}

func init() {
	hashTokenCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "Produce an Argon2id hash instead of SHA-256")
	rootCmd.AddCommand(hashTokenCmd)
}
