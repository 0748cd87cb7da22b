package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"mediagrab/pkg/auth"
	"mediagrab/pkg/ui"
)

// newCredentialManager opens the credential stores; tests swap it out
var newCredentialManager = func() (*auth.Manager, error) {
	return auth.NewManager("")
}

// stdin is read for interactive prompts
var stdin io.Reader = os.Stdin

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage saved Instagram accounts",
	Long: `Manage Instagram accounts used by yt-dlp and gallery-dl.

Accounts are stored in:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

Saved accounts join the account pool when instagram.use_credential_store
is enabled. Use a throwaway account, not your main one.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Save an Instagram account",
	Example: `  # Interactive login
  mediagrab auth login

  # Login with username
  mediagrab auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove a saved account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved accounts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(stdin)
	out := cmd.OutOrStdout()

	var username string
	if len(args) > 0 {
		username = strings.TrimSpace(args[0])
	}
	if username == "" {
		fmt.Fprint(out, "Instagram username: ")
		input, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(input)
	}
	if username == "" {
		return errors.New("username is required")
	}

	fmt.Fprint(out, "Password: ")
	password, err := readPassword(reader, out)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return errors.New("password is required")
	}

	if err := manager.Store(&auth.Account{Username: username, Password: password}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Saved account %s", username))
	fmt.Fprintln(out, "Set instagram.use_credential_store: true to use saved accounts.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	username := strings.TrimSpace(args[0])
	if err := manager.Delete(username); err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return fmt.Errorf("no saved account named %s", username)
		}
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Removed account %s", username))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	list, err := manager.List()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No saved accounts. Run 'mediagrab auth login' to add one.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tPASSWORD\tSAVED")
	for _, account := range list {
		safe := auth.SanitizeAccount(account)
		saved := "-"
		if !safe.LastModified.IsZero() {
			saved = safe.LastModified.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", safe.Username, safe.Password, saved)
	}
	return w.Flush()
}

// readPassword reads without echo from a terminal, falling back to a plain
// line read for pipes
func readPassword(reader *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err == nil {
			return string(password), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(input, "\r\n"), nil
}
