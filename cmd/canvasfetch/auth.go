package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canvasfetch/pkg/auth"
)

var authLoginURL string

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored portal credentials",
	Long: `Manage the credentials fetch signs in with. Credentials are kept in
the system keychain when one is available, falling back to an encrypted
file under the user config directory.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Prompt for a password and store the credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := ""
		if len(args) > 0 {
			username = args[0]
		}

		account, err := auth.PromptForCredentials(username)
		if err != nil {
			return err
		}
		account.BaseURL = authLoginURL

		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Store(account); err != nil {
			return fmt.Errorf("failed to store credentials: %w", err)
		}

		fmt.Printf("Credentials stored for %s\n", account.Username)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(args[0]); err != nil {
			return fmt.Errorf("failed to remove credentials: %w", err)
		}

		fmt.Printf("Credentials removed for %s\n", args[0])
		return nil
	},
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with stored credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		accounts, err := manager.List()
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No stored credentials. Run 'canvasfetch auth login' to add some.")
			return nil
		}

		for _, account := range accounts {
			line := account.Username
			if account.BaseURL != "" {
				line += "  " + account.BaseURL
			}
			if !account.LastModified.IsZero() {
				line += "  (updated " + account.LastModified.Format("2006-01-02") + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&authLoginURL, "url", "", "portal base URL to store with the credentials")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authListCmd)
	rootCmd.AddCommand(authCmd)
}
