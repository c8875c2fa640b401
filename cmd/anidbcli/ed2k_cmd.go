package main

import (
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/anidbcli/anidbcli/internal/ed2k"
)

func newED2KCmd() *cobra.Command {
	var toClipboard bool

	cmd := &cobra.Command{
		Use:   "ed2k FILES...",
		Short: "Print ed2k:// links for local files.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newOutput()
			files, err := filesToProcess(args)
			if err != nil {
				return err
			}
			var last string
			for _, f := range files {
				sum, size, err := ed2k.HashFile(f)
				if err != nil {
					out.Error("%s: %v", f, err)
					continue
				}
				link := ed2k.Link(filepath.Base(f), size, sum)
				out.Info("%s", link)
				last = link
			}
			if toClipboard && last != "" {
				if err := clipboard.WriteAll(last); err != nil {
					out.Warning("Could not copy to clipboard: %v", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&toClipboard, "clipboard", "c", false, "Copy the last hashed link to the clipboard.")
	return cmd
}
