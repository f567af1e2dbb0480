package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"blockrand/internal/config"
	"blockrand/internal/container"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blockrand",
		Short: "Stratified permuted-block randomization for two-arm studies",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Printf("Warning: could not read .env: %v", err)
			}
		},
	}

	rootCmd.AddCommand(
		newAssignCmd(),
		newEnrollCmd(),
		newBalanceCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newSimulateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, Styles.Error.Render(err.Error()))
		os.Exit(1)
	}
}

// openContainer loads configuration and replays the stored history
func openContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	c, err := container.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
