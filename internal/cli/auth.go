package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/nflow-health/nflow/pkg/client"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthRegisterCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())
	cmd.AddCommand(newAuthCloseCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login with username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = promptInput("Username: ")
			}
			if password == "" {
				password = promptPassword("Password: ")
			}

			resp, err := apiClient.Auth().Login(context.Background(), username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := saveSession(resp); err != nil {
				return err
			}

			fmt.Printf("Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")

	return cmd
}

func newAuthRegisterCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				username = promptInput("Username: ")
			}
			if password == "" {
				password = promptPassword("Password: ")
				confirm := promptPassword("Confirm password: ")
				if password != confirm {
					return fmt.Errorf("passwords do not match")
				}
			}

			resp, err := apiClient.Auth().Register(context.Background(), username, password)
			if err != nil {
				return fmt.Errorf("registration failed: %w", err)
			}
			if err := saveSession(resp); err != nil {
				return err
			}

			fmt.Printf("Account created. Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password")

	return cmd
}

func saveSession(resp *client.LoginResponse) error {
	viper.Set("auth.token", resp.AccessToken)
	viper.Set("auth.refresh_token", resp.RefreshToken)
	if resp.User != nil {
		viper.Set("auth.username", resp.User.Username)
	}

	if _, err := writeConfig(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func clearSession() error {
	viper.Set("auth.token", "")
	viper.Set("auth.refresh_token", "")
	viper.Set("auth.username", "")

	if _, err := writeConfig(); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			// the server side is stateless; a failure here is not fatal
			_ = apiClient.Auth().Logout(context.Background())

			if err := clearSession(); err != nil {
				return err
			}

			fmt.Println("Logged out successfully")
			return nil
		},
	}
}

func newAuthWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show current account info",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := apiClient.Auth().Me(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get user info: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(user)
			}

			fmt.Printf("Username:     %s\n", user.Username)
			fmt.Printf("Role:         %s\n", user.Role)
			fmt.Printf("Subscription: %s\n", formatStatus(user.SubscriptionStatus))
			if user.SubscriptionProvider != "" {
				fmt.Printf("Provider:     %s\n", user.SubscriptionProvider)
			}
			fmt.Printf("Messages:     %d\n", user.MessageCount)
			fmt.Printf("ID:           %d\n", user.ID)
			return nil
		},
	}
}

func newAuthCloseCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "close",
		Short: "Deactivate your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				answer := promptInput("Close your account? Type 'yes' to confirm: ")
				if answer != "yes" {
					fmt.Println("Aborted")
					return nil
				}
			}

			if err := apiClient.Auth().Close(context.Background()); err != nil {
				return fmt.Errorf("failed to close account: %w", err)
			}
			if err := clearSession(); err != nil {
				return err
			}

			fmt.Println("Account closed")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")

	return cmd
}

func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func promptPassword(prompt string) string {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(password)
}
