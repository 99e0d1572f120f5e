package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aliskhannn/image-converter/internal/catalog"
	"github.com/aliskhannn/image-converter/internal/model"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0, len(model.Formats()))
			for _, f := range model.Formats() {
				target := "yes"
				if !f.IsTarget() {
					target = "source only"
				}
				rows = append(rows, []string{f.String(), f.MIMEType(), f.Extension(), target})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Format", "MIME type", "Extension", "Target"},
				rows,
				nil,
			))
			return nil
		},
	}
}

func newToolsCommand() *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List conversion directions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := catalog.New()

			tools := c.Tools()
			if from != "" {
				f, ok := model.ParseFormat(from)
				if !ok {
					return fmt.Errorf("unknown format %q", from)
				}
				tools = c.From(f)
			}

			rows := make([][]string, 0, len(tools))
			for _, t := range tools {
				rows = append(rows, []string{t.ID, t.Title, t.Description})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "Description"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Only list tools accepting this source format")

	return cmd
}
