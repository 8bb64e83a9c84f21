package main

import (
	"fmt"
	"os"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/schema"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <definition.yaml>",
	Short: "Export the machine graph visualization",
	Long:  `Loads a machine definition and outputs a Mermaid diagram (graph TD) representing its transition rules.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open definition: %w", err)
		}
		defer file.Close()

		def, err := schema.Load(file)
		if err != nil {
			return err
		}

		output := graph.GenerateMermaid(def, nil)

		if render, _ := cmd.Flags().GetBool("render"); render {
			rendered, err := tui.NewRenderer()("```mermaid\n" + output + "```\n")
			if err != nil {
				return fmt.Errorf("failed to render diagram: %w", err)
			}
			fmt.Print(rendered)
			return nil
		}

		fmt.Print(output)
		return nil
	},
}

func init() {
	graphCmd.Flags().Bool("render", false, "Pretty-print the diagram in the terminal")
	rootCmd.AddCommand(graphCmd)
}
