package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tadcatch/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Tadpoles credentials",
	Long: `Manage stored Tadpoles credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Environment variables TADCATCH_EMAIL and TADCATCH_PASSWORD (read-only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Store Tadpoles credentials securely",
	Long: `Store the Tadpoles account email and password in the system keychain.

You will be prompted for the email (if not provided) and the password.
The password is read without echo and never written to disk in the clear.`,
	Example: `  # Interactive login
  tadcatch auth login

  # Login with email
  tadcatch auth login parent@example.com`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <email>",
	Short: "Remove stored credentials",
	Long:  `Remove the stored credentials for the given account email.`,
	Args:  cobra.ExactArgs(1),
	Run:   runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Run:   runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	var email string
	if len(args) > 0 {
		email = args[0]
	}

	creds, err := promptCredentials(email)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := manager.Save(creds); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to store credentials:", err)
		os.Exit(1)
	}
	fmt.Printf("Credentials for %s stored securely.\n", creds.Email)
}

func runLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	email := args[0]
	if err := manager.Delete(email); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to remove credentials:", err)
		os.Exit(1)
	}
	fmt.Printf("Credentials for %s removed.\n", email)
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	emails, err := manager.List()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to list accounts:", err)
		os.Exit(1)
	}
	if len(emails) == 0 {
		fmt.Println("No stored accounts. Run 'tadcatch auth login' to add one.")
		return
	}

	fmt.Println("Stored accounts:")
	for _, email := range emails {
		fmt.Println("  -", email)
	}
}

// promptCredentials interactively collects the account email and password.
// The password prompt never echoes.
func promptCredentials(email string) (*auth.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	if email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}

	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("password is required")
	}

	return &auth.Credentials{Email: email, Password: string(password)}, nil
}
