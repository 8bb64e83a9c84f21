package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/schema"
	"github.com/aretw0/lattice/pkg/session"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <definition.yaml>",
	Short: "Drive a machine definition to a final state",
	Long: `Loads a YAML machine definition, drives it until a final state (or the
ERROR sentinel) is reached, and prints the transition trace.

Definitions run from the CLI are data-only: every rule resolves through its
declared 'to' state. Rules referencing an 'fn' need a host program.

With --session and --redis the run's journal is persisted, and --resume
continues a previous run from the named state instead of starting over.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(cmd, false)

		inputs, _ := cmd.Flags().GetStringSlice("input")
		runID, _ := cmd.Flags().GetString("session")
		resume, _ := cmd.Flags().GetString("resume")
		redisAddr, _ := cmd.Flags().GetString("redis")

		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open definition: %w", err)
		}
		defer file.Close()

		def, err := schema.Load(file)
		if err != nil {
			return err
		}

		built, err := def.Build(schema.WithMachineOptions(lattice.WithLogger(logger)))
		if err != nil {
			return err
		}

		input := make([]any, len(inputs))
		for i, v := range inputs {
			input[i] = v
		}

		ctx := cmd.Context()

		trace := 0
		built.Machine.On(lattice.PostTransition, func(ctx context.Context, e *lattice.TransitionEvent) error {
			trace++
			fmt.Println(tui.TraceLine(trace, e.From.Label(), e.To.Label(), e.Output))
			return nil
		})

		if resume != "" && runID == "" {
			return fmt.Errorf("--resume requires --session")
		}

		var manager *session.Manager
		if runID != "" {
			if redisAddr == "" {
				return fmt.Errorf("--session requires --redis")
			}
			store := redis.New(redisAddr, "", 0, built.Vocab)
			defer store.Close()
			manager = session.NewManager(store, session.WithLogger(logger))
		}

		var (
			state  lattice.State
			output []any
		)
		if resume != "" {
			resumeState, ok := built.Vocab[resume]
			if !ok {
				return fmt.Errorf("definition %q does not declare state %q", def.Name, resume)
			}
			state, output, err = manager.Resume(ctx, runID, built.Machine, resumeState, built.Finals)
		} else {
			journal := lattice.LogTransitions(built.Machine, nil)
			state, output, err = lattice.Run(ctx, built.Machine, built.Finals, input...)
			if err == nil && manager != nil {
				err = manager.Save(ctx, runID, journal)
			}
		}
		if err != nil {
			return err
		}

		fmt.Printf("\nSettled in %s", state.Label())
		if len(output) > 0 {
			fmt.Printf(" with output %v", output)
		}
		fmt.Println()
		if manager != nil {
			fmt.Printf("Journal persisted under run %s\n", runID)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringSlice("input", nil, "Initial input values (repeatable)")
	runCmd.Flags().String("session", "", "Run ID for journal persistence")
	runCmd.Flags().String("resume", "", "Resume a persisted run from this state")
	runCmd.Flags().String("redis", "", "Redis address for journal persistence (host:port)")
	rootCmd.AddCommand(runCmd)
}
