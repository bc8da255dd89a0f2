package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/chuxmalux/vaultd/internal/authtable"
	"github.com/chuxmalux/vaultd/internal/cli/output"
	"github.com/chuxmalux/vaultd/internal/cli/prompt"
	"github.com/chuxmalux/vaultd/internal/server"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage auth table entries",
	Long: `Manage the username -> (password-hash, permissions) entries vaultd
authenticates connections against.

Examples:
  vaultadm --root /var/lib/vaultd user add alice
  vaultadm --root /var/lib/vaultd user passwd alice
  vaultadm --root /var/lib/vaultd user list
  vaultadm --root /var/lib/vaultd user remove alice`,
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userRemoveCmd)
	userCmd.AddCommand(userResetAllCmd)

	userAddCmd.Flags().Uint8Var(&userAddPermissions, "permissions", 1, "permission bitmask granted to this user")
	userAddCmd.Flags().BoolVar(&userAddBcrypt, "bcrypt", false, "hash the password with bcrypt instead of the default fast checksum")
	userPasswdCmd.Flags().BoolVar(&userPasswdBcrypt, "bcrypt", false, "hash the new password with bcrypt instead of the default fast checksum")
	userRemoveCmd.Flags().BoolVar(&userRemoveForce, "force", false, "skip the confirmation prompt")
}

var userRemoveForce bool

var userAddPermissions uint8
var userAddBcrypt bool
var userPasswdBcrypt bool

// hashPassword applies BcryptHash at bcrypt.DefaultCost when useBcrypt is
// set, otherwise DefaultHash. vaultd's default authtable.Verify sniffs the
// stored digest's format, so entries added with and without --bcrypt can
// coexist in the same auth table without any server-side configuration.
func hashPassword(password string, useBcrypt bool) string {
	if useBcrypt {
		return authtable.BcryptHash(bcrypt.DefaultCost)([]byte(password))
	}
	return authtable.DefaultHash([]byte(password))
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Add a new auth table entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		table, path, err := loadAuthTable()
		if err != nil {
			return err
		}
		if _, err := table.Lookup(username); err == nil {
			return fmt.Errorf("user %q already exists", username)
		}

		password, err := prompt.PasswordWithConfirmation("Password", "Confirm password", 8)
		if err != nil {
			return err
		}

		hash := hashPassword(password, userAddBcrypt)
		if err := table.Put(username, hash, userAddPermissions); err != nil {
			return fmt.Errorf("add user: %w", err)
		}
		if err := table.Dump(path); err != nil {
			return fmt.Errorf("persist auth table: %w", err)
		}

		p, err := printer()
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("user %q added with permissions %d", username, userAddPermissions))
		return nil
	},
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <username>",
	Short: "Change an existing user's password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		table, path, err := loadAuthTable()
		if err != nil {
			return err
		}
		entry, err := table.Lookup(username)
		if err != nil {
			return fmt.Errorf("user %q not found", username)
		}

		password, err := prompt.PasswordWithConfirmation("New password", "Confirm password", 8)
		if err != nil {
			return err
		}

		hash := hashPassword(password, userPasswdBcrypt)
		if err := table.Put(username, hash, entry.Permissions); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if err := table.Dump(path); err != nil {
			return fmt.Errorf("persist auth table: %w", err)
		}

		p, err := printer()
		if err != nil {
			return err
		}
		p.Success(fmt.Sprintf("password for %q updated", username))
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List auth table entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, _, err := loadAuthTable()
		if err != nil {
			return err
		}

		data := output.NewTableData("USERNAME", "PERMISSIONS")
		for _, e := range table.List() {
			data.AddRow(e.Username, fmt.Sprintf("%d", e.Permissions))
		}
		p, err := printer()
		if err != nil {
			return err
		}
		return p.Print(data)
	},
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove an auth table entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]

		p, err := printer()
		if err != nil {
			return err
		}

		ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Remove user %q", username), userRemoveForce)
		if err != nil {
			return err
		}
		if !ok {
			p.Warning("aborted")
			return nil
		}

		table, path, err := loadAuthTable()
		if err != nil {
			return err
		}
		if err := table.Remove(username); err != nil {
			return fmt.Errorf("remove user: %w", err)
		}
		if err := table.Dump(path); err != nil {
			return fmt.Errorf("persist auth table: %w", err)
		}

		p.Success(fmt.Sprintf("user %q removed", username))
		return nil
	},
}

var userResetAllCmd = &cobra.Command{
	Use:   "reset-all",
	Short: "Remove every auth table entry",
	Long: `Remove every entry from the auth table, locking out all usernames
until new ones are added. Requires typing RESET to confirm.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := printer()
		if err != nil {
			return err
		}

		table, path, err := loadAuthTable()
		if err != nil {
			return err
		}
		count := table.Len()
		if count == 0 {
			p.Warning("auth table is already empty")
			return nil
		}

		ok, err := prompt.ConfirmDanger(fmt.Sprintf("This removes all %d user(s)", count), "RESET")
		if err != nil {
			return err
		}
		if !ok {
			p.Warning("aborted")
			return nil
		}

		table.Clear()
		if err := table.Dump(path); err != nil {
			return fmt.Errorf("persist auth table: %w", err)
		}
		p.Success(fmt.Sprintf("removed %d user(s)", count))
		return nil
	},
}

// loadAuthTable loads the auth table from rootDir's dump file, tolerating
// a missing file (a fresh deployment with no users yet).
func loadAuthTable() (*authtable.Table, string, error) {
	path := filepath.Join(rootDir, server.AuthFileName)
	table := authtable.New()
	if err := table.Load(path); err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("load auth table: %w", err)
	}
	return table, path, nil
}
