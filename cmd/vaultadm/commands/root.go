// Package commands implements vaultadm's cobra command tree: offline user
// management against the auth table's dump file, and storage table
// inspection, grounded on the teacher's cmd/dfsctl command-tree shape.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/chuxmalux/vaultd/internal/cli/output"
)

var rootDir string
var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "vaultadm",
	Short: "Offline administration for a vaultd instance",
	Long: `vaultadm edits a vaultd instance's persisted state directly: the
auth table's "auth_users" dump file, and the storage table rooted under the
same directory. Run it only while vaultd is stopped.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree; called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "vaultd root directory (required)")
	rootCmd.MarkPersistentFlagRequired("root")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table, json, yaml")

	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(storageCmd)
}

// printer builds the output.Printer commands use to render list/info
// results, honoring the --output flag. Returns an error for an unknown
// format rather than silently falling back to table.
func printer() (*output.Printer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, false), nil
}
