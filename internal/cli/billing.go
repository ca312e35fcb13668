package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newUsageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show your free message allowance",
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := apiClient.Auth().Usage(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get usage: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(usage)
			}

			fmt.Printf("Role:      %s\n", usage.Role)
			if usage.Unlimited {
				fmt.Println("Messages:  unlimited")
				return nil
			}
			fmt.Printf("Messages:  %d of %d used\n", usage.Count, usage.Limit)
			fmt.Printf("Remaining: %d\n", usage.Remaining)
			return nil
		},
	}
}

func newBillingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "billing",
		Short: "Subscription commands",
	}

	cmd.AddCommand(newBillingPlansCmd())
	cmd.AddCommand(newBillingInfoCmd())
	cmd.AddCommand(newBillingCheckoutCmd())
	cmd.AddCommand(newBillingActivateCmd())

	return cmd
}

func newBillingPlansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			plans, err := apiClient.Billing().Plans(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list plans: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(plans)
			}

			fmt.Printf("Free accounts get %d messages.\n\n", plans.FreeMessages)
			t := NewTable("PLAN", "PROVIDERS")
			for _, p := range plans.Plans {
				t.AddRow(p.Name, strings.Join(p.Providers, ", "))
			}
			t.Render()
			return nil
		},
	}
}

func newBillingInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show your subscription",
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := apiClient.Billing().Info(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get billing info: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(info)
			}

			fmt.Printf("Status:       %s\n", formatStatus(info.SubscriptionStatus))
			if info.Provider != "" {
				fmt.Printf("Provider:     %s\n", info.Provider)
			}
			if info.SubscriptionID != "" {
				fmt.Printf("Subscription: %s\n", info.SubscriptionID)
			}
			if info.Usage.Unlimited {
				fmt.Println("Messages:     unlimited")
			} else {
				fmt.Printf("Messages:     %d of %d used\n", info.Usage.Count, info.Usage.Limit)
			}
			return nil
		},
	}
}

func newBillingCheckoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Start a Stripe checkout and print its URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := apiClient.Billing().CheckoutURL(context.Background())
			if err != nil {
				return fmt.Errorf("failed to start checkout: %w", err)
			}
			fmt.Printf("Open this page to subscribe:\n%s\n", url)
			return nil
		},
	}
}

func newBillingActivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activate <paypal-subscription-id>",
		Short: "Attach an approved PayPal subscription to your account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := apiClient.Billing().ActivatePayPal(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("activation failed: %w", err)
			}
			fmt.Printf("Subscription active. Role: %s\n", user.Role)
			return nil
		},
	}
}
