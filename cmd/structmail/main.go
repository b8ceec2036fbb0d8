package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/structmail/structmail/internal/config"
	"github.com/structmail/structmail/internal/db"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "structmail",
		Short: "Structured-email pipeline server",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return db.Migrate(cfg.Postgres)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
