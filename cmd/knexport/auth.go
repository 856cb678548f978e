package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"knexport/pkg/auth"
	"knexport/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage saved kidsnote sessions",
	Long: `Manage the browser session cookies knexport uses to talk to kidsnote.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - KNEXPORT_SESSION_ID / KNEXPORT_CSRF_TOKEN (read only)

Anyone holding the session cookie can act as you. Never share it.`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Save a session copied from a signed-in browser",
	Long: `Save the sessionid and csrftoken cookies of a browser that is signed in to
kidsnote. Paste either the whole Cookie request header or just the sessionid
value; input is hidden.

Without a name the session is saved as "default".`,
	Example: `  knexport auth login
  knexport auth login grandma`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [name]",
	Short: "Remove a saved session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	Long:  `List saved sessions with the cookie values masked.`,
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// guideCmd represents the auth guide command
var guideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain how to copy the session cookies and a HAR file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.WriteCookieGuide(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(guideCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := auth.DefaultProfile
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	}

	reader := bufio.NewReader(os.Stdin)
	auth.WriteQuickGuide(os.Stdout)

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("\n⚠️  Session '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("\n🔐 Cookie header or sessionid value: ")
	first, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	var csrfInput string
	if !strings.Contains(first, "=") {
		fmt.Print("\n🔐 csrftoken value (optional): ")
		if csrfInput, err = readSecret(reader); err != nil {
			return fmt.Errorf("failed to read csrf token: %w", err)
		}
	}

	sessionID, csrfToken := parseSessionInput(first, csrfInput)
	if sessionID == "" {
		ui.PrintError("\nNo sessionid found in the input")
		return auth.ErrInvalidCredentials
	}

	fmt.Print("\n🌐 User Agent (press Enter to use default): ")
	userAgent, _ := reader.ReadString('\n')

	account := &auth.Account{
		Name:         name,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserAgent:    strings.TrimSpace(userAgent),
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	masked := auth.SanitizeAccount(account)
	fmt.Println()
	ui.PrintInfo("Session", masked.SessionID)
	if masked.CSRFToken != "" {
		ui.PrintInfo("CSRF token", masked.CSRFToken)
	}
	ui.PrintSuccess("Session saved: " + name)
	fmt.Println("\nCheck it with:")
	fmt.Println("   $ knexport connect album")
	return nil
}

// parseSessionInput accepts a pasted Cookie header or a bare sessionid. A
// csrftoken found in the header wins over the separately entered one.
func parseSessionInput(first, csrf string) (string, string) {
	first = strings.TrimSpace(first)
	csrf = strings.TrimSpace(csrf)
	if strings.Contains(first, "=") {
		sid, headerCSRF := auth.ParseCookieHeader(first)
		if headerCSRF != "" {
			csrf = headerCSRF
		}
		return sid, csrf
	}
	return first, csrf
}

// readSecret reads without echo from a terminal, or a plain line otherwise.
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if len(args) == 1 {
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove session: %w", err)
		}
		ui.PrintSuccess("Session removed: " + args[0])
		return nil
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		ui.PrintWarning("No saved sessions")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	target := accounts[0]
	if len(accounts) > 1 {
		fmt.Println("Select session to remove:")
		for i, account := range accounts {
			fmt.Printf("  %d. %s\n", i+1, account.Name)
		}
		fmt.Printf("  0. Cancel\n\nChoice: ")
		input, _ := reader.ReadString('\n')
		var choice int
		fmt.Sscanf(strings.TrimSpace(input), "%d", &choice)
		if choice <= 0 || choice > len(accounts) {
			return nil
		}
		target = accounts[choice-1]
	} else {
		fmt.Printf("Remove session '%s'? (y/N): ", target.Name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	if err := manager.Delete(target.Name); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	ui.PrintSuccess("Session removed: " + target.Name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No saved sessions", "use 'knexport auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Saved Sessions")
	for i, account := range accounts {
		s := auth.SanitizeAccount(account)
		fmt.Printf("\n%d. %s\n", i+1, s.Name)
		fmt.Printf("   Session ID: %s\n", s.SessionID)
		if s.CSRFToken != "" {
			fmt.Printf("   CSRF Token: %s\n", s.CSRFToken)
		}
		if s.UserAgent != "" {
			fmt.Printf("   User Agent: %s\n", s.UserAgent)
		}
		fmt.Printf("   Last Modified: %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
