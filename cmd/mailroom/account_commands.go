package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mailroom/internal/api"
	"mailroom/internal/ipc"
	"mailroom/internal/mail"
	"mailroom/internal/rules"
)

func newAccountCommand(ctx *commandContext) *cobra.Command {
	accountCmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage IMAP accounts",
	}

	accountCmd.AddCommand(newAccountAddCommand(ctx))
	accountCmd.AddCommand(newAccountListCommand(ctx))
	accountCmd.AddCommand(newAccountRemoveCommand(ctx))
	accountCmd.AddCommand(newAccountEnableCommand(ctx, true))
	accountCmd.AddCommand(newAccountEnableCommand(ctx, false))
	accountCmd.AddCommand(newAccountTestCommand(ctx))

	return accountCmd
}

func newAccountAddCommand(ctx *commandContext) *cobra.Command {
	var server string
	var port int
	var security string
	var username string
	var password string
	var charset string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an IMAP account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsedSecurity, err := rules.ParseSecurity(security)
			if err != nil {
				return err
			}

			account := &rules.Account{
				Name:         strings.TrimSpace(args[0]),
				Server:       strings.TrimSpace(server),
				Port:         port,
				Security:     parsedSecurity,
				Username:     username,
				Password:     password,
				CharacterSet: charset,
				Enabled:      !disabled,
			}

			return ctx.withRules(func(store *rules.Store) error {
				created, err := store.AddAccount(cmd.Context(), account)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (id %d)\n", created.Name, created.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&server, "server", "", "IMAP server hostname")
	cmd.Flags().IntVar(&port, "port", 993, "IMAP server port")
	cmd.Flags().StringVar(&security, "security", "ssl", "Transport security (none, starttls, ssl)")
	cmd.Flags().StringVar(&username, "username", "", "Login username")
	cmd.Flags().StringVar(&password, "password", "", "Login password")
	cmd.Flags().StringVar(&charset, "charset", "", "Character set override for the account")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the account disabled")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newAccountListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			accounts, err := listAccounts(ctx, cmd)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, accounts)
			}
			if len(accounts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accounts configured")
				return nil
			}
			rows := make([][]string, 0, len(accounts))
			for _, account := range accounts {
				rows = append(rows, []string{
					strconv.FormatInt(account.ID, 10),
					account.Name,
					fmt.Sprintf("%s:%d", account.Server, account.Port),
					account.Security,
					account.Username,
					yesNo(account.Enabled),
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Server", "Security", "Username", "Enabled"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

// listAccounts prefers the daemon view when it is reachable so output
// reflects what the poller actually uses.
func listAccounts(ctx *commandContext, cmd *cobra.Command) ([]api.Account, error) {
	if client, err := ipc.Dial(ctx.socketPath()); err == nil {
		defer client.Close()
		resp, listErr := client.AccountList()
		if listErr != nil {
			return nil, listErr
		}
		return resp.Accounts, nil
	}

	var accounts []api.Account
	err := ctx.withRules(func(store *rules.Store) error {
		stored, listErr := store.ListAccounts(cmd.Context(), false)
		if listErr != nil {
			return listErr
		}
		accounts = api.FromAccounts(stored)
		return nil
	})
	return accounts, err
}

func newAccountRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name|id>",
		Short: "Remove an account and its rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRules(func(store *rules.Store) error {
				account, err := resolveAccount(cmd, store, args[0])
				if err != nil {
					return err
				}
				removed, err := store.RemoveAccount(cmd.Context(), account.ID)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("account %s not found", account.Name)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed account %s\n", account.Name)
				return nil
			})
		},
	}
}

func newAccountEnableCommand(ctx *commandContext, enable bool) *cobra.Command {
	use := "enable <name|id>"
	short := "Enable a disabled account"
	if !enable {
		use = "disable <name|id>"
		short = "Disable an account without removing it"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRules(func(store *rules.Store) error {
				account, err := resolveAccount(cmd, store, args[0])
				if err != nil {
					return err
				}
				if account.Enabled == enable {
					fmt.Fprintf(cmd.OutOrStdout(), "Account %s already %s\n", account.Name, enabledWord(enable))
					return nil
				}
				account.Enabled = enable
				if err := store.UpdateAccount(cmd.Context(), account); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s %s\n", account.Name, enabledWord(enable))
				return nil
			})
		},
	}
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func newAccountTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test <name|id>",
		Short: "Verify account connectivity and list folders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if client, err := ipc.Dial(ctx.socketPath()); err == nil {
				defer client.Close()
				id, resolveErr := resolveAccountID(client, args[0])
				if resolveErr != nil {
					return resolveErr
				}
				resp, testErr := client.AccountTest(id)
				if testErr != nil {
					return testErr
				}
				printFolders(out, resp.Folders)
				return nil
			}

			return ctx.withRules(func(store *rules.Store) error {
				account, err := resolveAccount(cmd, store, args[0])
				if err != nil {
					return err
				}
				client, err := mail.Dial(*account, nil)
				if err != nil {
					return fmt.Errorf("connect to %s: %w", account.Address(), err)
				}
				defer client.Close()
				folders, err := client.ListFolders(cmd.Context())
				if err != nil {
					return err
				}
				printFolders(out, folders)
				return nil
			})
		},
	}
}

func printFolders(out io.Writer, folders []string) {
	fmt.Fprintf(out, "Connection OK, %d folders:\n", len(folders))
	for _, folder := range folders {
		fmt.Fprintf(out, "  %s\n", folder)
	}
}

func resolveAccount(cmd *cobra.Command, store *rules.Store, ref string) (*rules.Account, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		account, err := store.AccountByID(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("account %d not found", id)
		}
		return account, nil
	}

	account, err := store.AccountByName(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %q not found", ref)
	}
	return account, nil
}

func resolveAccountID(client *ipc.Client, ref string) (int64, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, nil
	}
	resp, err := client.AccountList()
	if err != nil {
		return 0, err
	}
	for _, account := range resp.Accounts {
		if strings.EqualFold(account.Name, ref) {
			return account.ID, nil
		}
	}
	return 0, fmt.Errorf("account %q not found", ref)
}
