package main

import (
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "imgconv",
		Short:         "Convert images between PNG, JPEG, WebP, GIF, BMP, TIFF, PDF and HEIC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zlog.Init()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Write structured logs")

	rootCmd.AddCommand(newConvertCommand())
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(newToolsCommand())

	return rootCmd
}
