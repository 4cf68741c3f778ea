package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "payflow",
	Short: "Payment orchestration service",
	Long:  "Mediates card-gateway traffic, invite-to-pay payment requests, and submission dispatch for council application forms.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
