// Package main provides the entry point for the BRD pipeline HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "brd_agent",
	Short: "BRD Pipeline HTTP API Server",
	Long:  "BRD Pipeline turns business requirements documents into epics, user stories, tests, data models and code skeletons via REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
