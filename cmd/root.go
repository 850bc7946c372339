package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it.
func Execute() {
	// Local development keeps credentials in .env; absence is fine.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "copilot",
		Short: "Portfolio copilot: retrieval-grounded Q&A over the portfolio knowledge base",
	}
	root.AddCommand(serveCMD(), askCMD(), chatCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
