package main

import (
	"encoding/json"
	"fmt"
	"os"

	redisAdapter "github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/session"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted runs",
	Long:  `List, inspect, and remove run journals persisted in Redis.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeStore, err := getManager(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		runs, err := manager.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if len(runs) == 0 {
			fmt.Println("No persisted runs found.")
			return nil
		}

		fmt.Println("Persisted runs:")
		for _, id := range runs {
			fmt.Println("- " + id)
		}
		return nil
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <run-id>",
	Short: "Print a run's transition journal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeStore, err := getManager(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		journal, err := manager.Load(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to load run %q: %w", args[0], err)
		}

		data, err := json.MarshalIndent(journal.Records(), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal journal: %w", err)
		}

		fmt.Println(string(data))
		return nil
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <run-id>...",
	Short: "Remove one or more persisted runs",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, closeStore, err := getManager(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		hasError := false
		for _, runID := range args {
			if err := manager.Delete(cmd.Context(), runID); err != nil {
				fmt.Fprintf(os.Stderr, "Error removing %q: %v\n", runID, err)
				hasError = true
			} else {
				fmt.Printf("Removed run %q\n", runID)
			}
		}

		if hasError {
			return fmt.Errorf("some runs could not be removed")
		}
		return nil
	},
}

func init() {
	sessionCmd.PersistentFlags().String("redis", "localhost:6379", "Redis address (host:port)")
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
	rootCmd.AddCommand(sessionCmd)
}

// getManager builds a Redis-backed session manager in inspection mode (nil
// vocabulary): journals are listed, printed, and deleted here, never used to
// seed a machine, so label identity does not matter.
func getManager(cmd *cobra.Command) (*session.Manager, func(), error) {
	addr, _ := cmd.Flags().GetString("redis")
	store := redisAdapter.New(addr, "", 0, nil)
	manager := session.NewManager(store, session.WithLogger(newLogger(cmd, false)))
	return manager, func() { store.Close() }, nil
}
