// Command vaultadm is an offline administration tool for a vaultd instance:
// it edits the auth table's persisted "auth_users" file and probes the
// storage table directly, without going through the TCP dispatch engine.
// Run it only while vaultd is stopped — both tables are file-backed and
// there is no cross-process locking.
package main

import (
	"fmt"
	"os"

	"github.com/chuxmalux/vaultd/cmd/vaultadm/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vaultadm:", err)
		os.Exit(1)
	}
}
