package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// backupPathFor mirrors package safewrite's backupPath naming (sibling
// "_backup" suffix inserted before the extension), duplicated here rather
// than imported since the CLI operates on a closed database's files by
// path alone, without opening a safewrite.Harness.
func backupPathFor(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return base + "_backup" + ext
}

func newRestoreBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore-backup <db-path>",
		Short: "Copy a sibling backup file into place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			backup := backupPathFor(path)
			if _, err := os.Stat(backup); err != nil {
				return fmt.Errorf("no backup found at %s: %w", backup, err)
			}
			return copyFileForCLI(backup, path)
		},
	}
}

func newShowBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-backup <db-path>",
		Short: "Print the sibling backup file's location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(backupPathFor(args[0]))
			return nil
		},
	}
}

func copyFileForCLI(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
