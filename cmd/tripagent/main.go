package main

import (
	"fmt"
	"os"

	"trip-agent/internal/bootstrap"
	"trip-agent/internal/console"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	prompt  string
	envFile string
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tripagent",
		Short: "Trip agent books a stay from a plain-language request",
		Long: "Trip agent drives a browser session on the booking site. A language model turns the request " +
			"into destination, dates, guests and filters, and the agent books the top result.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}

			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("load env file %s: %w", envFile, err)
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			app := bootstrap.NewApp(console.Options{Prompt: prompt})
			if err := app.Err(); err != nil {
				return err
			}

			app.Run()

			return nil
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "run a single trip request and exit")
	cmd.Flags().StringVar(&envFile, "env-file", "", "load environment variables from this file before .env")

	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
