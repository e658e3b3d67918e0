// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

// bashCmd represents the bash command
var bashCmd = &cobra.Command{
	Use:   "bash",
	Short: "Generate Bash autocompletion file",
	Long:  `Generates mitemp_completions.sh, a Bash autocompletion file for mitemp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := RootCmd.GenBashCompletionFile(filepath.Join(outputDir(), "mitemp_completions.sh")); err != nil {
			return err
		}
		generated("Bash completion")
		return nil
	},
}

func init() {
	docCmd.AddCommand(bashCmd)
}
