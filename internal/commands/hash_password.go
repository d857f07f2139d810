package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SscSPs/accounts_reconciliation/internal/utils"
)

// newHashPasswordCommand prints an OPERATORS entry for a username and password.
func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <username> <password>",
		Short: "Print a bcrypt OPERATORS entry for the API server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := strings.TrimSpace(args[0])
			if username == "" || strings.ContainsAny(username, ":,") {
				return errors.New("username must be non-empty and contain neither ':' nor ','")
			}
			hash, err := utils.HashPassword(args[1])
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", username, hash)
			return nil
		},
	}
}
