package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "blazedb",
		Short:         "Embedded, single-file, schemaless document store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newOpenCmd(),
		newManagerCmd(),
		newRestoreBackupCmd(),
		newShowBackupCmd(),
	)
	return root
}
