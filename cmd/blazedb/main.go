// Command blazedb is the interactive shell and administrative CLI for a
// BlazeDB database: the external collaborator spec §6 describes only as a
// "non-empty minimum" surface. Structured with spf13/cobra, the same
// subcommand-tree idiom the retrieval pack's kubernetes-kubernetes CLI
// tools (kubeadm, kubectl) use, since the teacher (SharedCode/sop) has no
// CLI of its own to imitate.
package main

import (
	"fmt"
	"os"

	"github.com/Mikedan37/BlazeDB"
)

func main() {
	blazedb.ConfigureLogging()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "blazedb:", err)
		os.Exit(1)
	}
}
