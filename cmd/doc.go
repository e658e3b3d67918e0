// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package cmd

import (
	"os"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"
)

// docCmd represents the doc command
var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Documentation generator",
	Long:  `Generators for the mitemp man pages, Markdown documentation and shell completion.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		RootCmd.PersistentPreRun(cmd, args)
		return os.MkdirAll(outputDir(), 0755)
	},
}

func init() {
	RootCmd.AddCommand(docCmd)

	docCmd.PersistentFlags().String("output", "./", "Output directory")
	viper.BindPFlags(docCmd.PersistentFlags())
}

func outputDir() string {
	return viper.GetString("output")
}

func generated(kind string) {
	jww.INFO.Printf("Wrote %s to %s", kind, outputDir())
}
