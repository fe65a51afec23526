/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/othaime-en/validapi/internal/parser"
	"github.com/spf13/cobra"
)

var listEndpoints bool

// lintCmd represents the lint command
var lintCmd = &cobra.Command{
	Use:   "lint [openapi-spec-file]",
	Short: "Check an OpenAPI document for structural problems",
	Long: `Check an OpenAPI document for missing sections, empty paths and operations
without responses, without calling any server.

Exits with a non-zero status when warnings are found.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parser.ParseFile(args[0])
		if err != nil {
			return fmt.Errorf("error parsing OpenAPI file: %w", err)
		}

		info := p.Info()
		fmt.Printf("%s %s (OpenAPI %s)\n", white(info.Title), info.Version, info.OpenAPIVersion)

		if listEndpoints {
			fmt.Printf("\n%s\n", white("Endpoints:"))
			for _, e := range p.ListEndpoints() {
				codes := strings.Join(p.GetExpectedStatusCodes(e.Path, e.Method), ", ")
				fmt.Printf("  %-7s %-40s %s [%s]\n", e.Method, e.Path, e.OperationID, codes)
			}
		}

		warnings := p.ValidateSpec()
		if len(warnings) == 0 {
			fmt.Printf("\n%s No problems found\n", green("✓"))
			return nil
		}

		fmt.Printf("\n%s\n", white(fmt.Sprintf("%d warning(s):", len(warnings))))
		for _, w := range warnings {
			fmt.Printf("  %s %s\n", yellow("!"), w)
		}
		os.Exit(1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVarP(&listEndpoints, "list", "l", false, "List declared endpoints")
}
