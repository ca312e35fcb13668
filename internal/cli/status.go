package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server health and your account summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			summary := map[string]interface{}{
				"server": viper.GetString("server_url"),
			}
			if serverURL != "" {
				summary["server"] = serverURL
			}

			health, err := apiClient.Health(ctx)
			if err != nil {
				summary["health"] = "error: " + err.Error()
			} else {
				summary["health"] = health.Status
				summary["version"] = health.Version
			}
			if err := apiClient.Ready(ctx); err != nil {
				summary["database"] = "error"
			} else {
				summary["database"] = "ready"
			}

			// account details only when a session is stored
			if token := viper.GetString("auth.token"); token != "" {
				apiClient.SetToken(token)
				if usage, err := apiClient.Auth().Usage(ctx); err == nil {
					summary["role"] = usage.Role
					if usage.Unlimited {
						summary["messages"] = "unlimited"
					} else {
						summary["messages"] = fmt.Sprintf("%d of %d used", usage.Count, usage.Limit)
					}
				}
			}

			if getOutputFormat() != "table" {
				return printOutput(summary)
			}

			fmt.Println("NFlow Status")
			fmt.Println(strings.Repeat("=", 40))
			fmt.Printf("  Server:    %v\n", summary["server"])
			fmt.Printf("  Health:    %s\n", formatStatus(fmt.Sprint(summary["health"])))
			if v, ok := summary["version"]; ok {
				fmt.Printf("  Version:   %v\n", v)
			}
			fmt.Printf("  Database:  %s\n", formatStatus(fmt.Sprint(summary["database"])))
			if role, ok := summary["role"]; ok {
				fmt.Printf("  Role:      %v\n", role)
				fmt.Printf("  Messages:  %v\n", summary["messages"])
			} else {
				fmt.Println("  Account:   not logged in")
			}
			return nil
		},
	}
}
