package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ripplechat/ripple/internal/config"
	"github.com/ripplechat/ripple/internal/db"
)

func main() {
	root := &cobra.Command{
		Use:   "ripple",
		Short: "Realtime chat server with bot collaborators",
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the bot reply worker",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := db.Migrate(cfg.Postgres); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
