// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// markdownCmd represents the markdown command
var markdownCmd = &cobra.Command{
	Use:   "markdown",
	Short: "Generate Markdown documentation",
	Long:  `Generates documentation for mitemp in Markdown format, one file per command.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doc.GenMarkdownTree(RootCmd, outputDir()); err != nil {
			return err
		}
		generated("Markdown documentation")
		return nil
	},
}

func init() {
	docCmd.AddCommand(markdownCmd)
}
