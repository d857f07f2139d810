package main

import (
	"os"

	"github.com/SscSPs/accounts_reconciliation/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
