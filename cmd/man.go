// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
)

// manCmd represents the man command
var manCmd = &cobra.Command{
	Use:   "man",
	Short: "Generate man pages",
	Long:  `Generates a set of man pages for mitemp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		header := &doc.GenManHeader{
			Title:   "MITEMP",
			Section: "1",
			Source:  "mitemp",
		}
		if err := doc.GenManTree(RootCmd, header, outputDir()); err != nil {
			return err
		}
		generated("man pages")
		return nil
	},
}

func init() {
	docCmd.AddCommand(manCmd)
}
