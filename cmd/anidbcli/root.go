// Command anidbcli hashes local video files and optionally adds them
// to an AniDB mylist and/or renames them from identified metadata.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anidbcli/anidbcli/internal/output"
)

var (
	flagRecursive  bool
	flagExtensions string
	flagQuiet      bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "anidbcli",
		Short: "Hash, identify and organize anime files against AniDB",
	}
	root.PersistentFlags().BoolVarP(&flagRecursive, "recursive", "r", false, "Scan folders for files recursively.")
	root.PersistentFlags().StringVarP(&flagExtensions, "extensions", "e", "", "List of file extensions separated by , character.")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Display only warnings and errors.")

	root.AddCommand(newED2KCmd())
	root.AddCommand(newAPICmd())
	return root
}

func newOutput() output.Collaborator {
	return output.NewPlainCollaborator(os.Stdout)
}

// extensionList splits the --extensions flag's comma-separated value
// into bare extensions (no leading dot), matching cli.py's own
// stripping.
func extensionList() []string {
	if flagExtensions == "" {
		return nil
	}
	var out []string
	for _, e := range strings.Split(flagExtensions, ",") {
		e = strings.TrimSpace(e)
		e = strings.ReplaceAll(e, ".", "")
		out = append(out, e)
	}
	return out
}

func checkExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// filesToProcess expands args into a flat list of files: a bare file
// is taken as-is, a directory is walked recursively when --recursive
// is set (and skipped otherwise) and its entries filtered by
// --extensions. Grounded on cli.py:get_files_to_process/check_extension.
func filesToProcess(args []string) ([]string, error) {
	extensions := extensionList()
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		if !flagRecursive {
			continue
		}
		err = filepath.Walk(arg, func(path string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !fi.IsDir() && checkExtension(path, extensions) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
