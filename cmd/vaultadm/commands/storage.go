package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chuxmalux/vaultd/internal/cli/output"
	"github.com/chuxmalux/vaultd/internal/storage"
)

var storageBackend string

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect the storage table",
	Long: `Inspect the opaque key/value storage table a vaultd instance serves
to authenticated clients.

Examples:
  vaultadm --root /var/lib/vaultd storage list
  vaultadm --root /var/lib/vaultd storage get mykey
  vaultadm --root /var/lib/vaultd storage put mykey "hello world"
  vaultadm --root /var/lib/vaultd storage delete mykey`,
}

func init() {
	storageCmd.PersistentFlags().StringVar(&storageBackend, "backend", "memory", "storage backend: memory or badger")

	storageCmd.AddCommand(storageGetCmd)
	storageCmd.AddCommand(storagePutCmd)
	storageCmd.AddCommand(storageDeleteCmd)
	storageCmd.AddCommand(storageListCmd)
	storageCmd.AddCommand(storageInfoCmd)
}

// openStorage opens the configured backend under rootDir. "memory" only
// makes sense here as a smoke test — a fresh in-process map is always
// empty — but it keeps the surface uniform with vaultd's own
// config.StorageConfig.Backend choice.
func openStorage() (storage.Table, error) {
	switch storageBackend {
	case "badger":
		return storage.OpenBadger(filepath.Join(rootDir, "storage"))
	case "memory", "":
		return storage.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory or badger)", storageBackend)
	}
}

var storageGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Fetch one value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openStorage()
		if err != nil {
			return err
		}
		defer table.Close()

		value, err := table.Get([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("get %q: %w", args[0], err)
		}
		p, err := printer()
		if err != nil {
			return err
		}
		p.Println(string(value))
		return nil
	},
}

var storagePutCmd = &cobra.Command{
	Use:   "put <key> <value>",
	Short: "Write one value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openStorage()
		if err != nil {
			return err
		}
		defer table.Close()

		if err := table.Put([]byte(args[0]), []byte(args[1])); err != nil {
			return fmt.Errorf("put %q: %w", args[0], err)
		}
		p, err := printer()
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("stored %q (%s)", args[0], humanize.Bytes(uint64(len(args[1])))))
		return nil
	},
}

var storageDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove one value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openStorage()
		if err != nil {
			return err
		}
		defer table.Close()

		if err := table.Delete([]byte(args[0])); err != nil {
			return fmt.Errorf("delete %q: %w", args[0], err)
		}
		p, err := printer()
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("deleted %q", args[0]))
		return nil
	},
}

var storageInfoCmd = &cobra.Command{
	Use:   "info <key>",
	Short: "Show one key's size and backend",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openStorage()
		if err != nil {
			return err
		}
		defer table.Close()

		value, err := table.Get([]byte(args[0]))
		if err != nil {
			return fmt.Errorf("get %q: %w", args[0], err)
		}
		return output.SimpleTable(os.Stdout, [][2]string{
			{"key", args[0]},
			{"size", humanize.Bytes(uint64(len(value)))},
			{"backend", storageBackend},
		})
	},
}

var storageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every stored key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := openStorage()
		if err != nil {
			return err
		}
		defer table.Close()

		keys, err := table.Keys()
		if err != nil {
			return fmt.Errorf("list keys: %w", err)
		}

		data := output.NewTableData("KEY")
		for _, k := range keys {
			data.AddRow(string(k))
		}
		p, err := printer()
		if err != nil {
			return err
		}
		return p.Print(data)
	},
}
