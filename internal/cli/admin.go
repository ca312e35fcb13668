package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nflow-health/nflow/pkg/client"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administration commands (admin accounts only)",
	}

	cmd.AddCommand(newAdminUsersCmd())
	cmd.AddCommand(newAdminChatsCmd())
	cmd.AddCommand(newAdminLogsCmd())

	return cmd
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func newAdminUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts",
	}

	var page, pageSize int
	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Admin().Users(context.Background(), &client.ListOptions{Page: page, PageSize: pageSize})
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			t := NewTable("ID", "USERNAME", "ROLE", "ACTIVE", "MESSAGES", "SUBSCRIPTION")
			for _, u := range result.Data {
				t.AddRow(
					strconv.FormatInt(u.ID, 10),
					u.Username,
					u.Role,
					strconv.FormatBool(u.IsActive),
					strconv.Itoa(u.MessageCount),
					formatStatus(u.SubscriptionStatus),
				)
			}
			t.Render()
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "accounts per page")

	cmd.AddCommand(list)
	cmd.AddCommand(userActionCmd("activate", "Re-enable an account", (*client.AdminService).Activate))
	cmd.AddCommand(userActionCmd("deactivate", "Disable an account", (*client.AdminService).Deactivate))
	cmd.AddCommand(userActionCmd("reset-usage", "Reset an account's message counter", (*client.AdminService).ResetUsage))

	var role string
	promote := &cobra.Command{
		Use:   "promote <id>",
		Short: "Set an account's role (admin or user)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := apiClient.Admin().SetRole(context.Background(), id, role)
			if err != nil {
				return fmt.Errorf("promote failed: %w", err)
			}
			fmt.Printf("%s is now %s\n", user.Username, user.Role)
			return nil
		},
	}
	promote.Flags().StringVar(&role, "role", "admin", "role to grant: admin or user")
	cmd.AddCommand(promote)

	return cmd
}

type userAction func(s *client.AdminService, ctx context.Context, id int64) (*client.User, error)

func userActionCmd(use, short string, action userAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			user, err := action(apiClient.Admin(), context.Background(), id)
			if err != nil {
				return fmt.Errorf("%s failed: %w", use, err)
			}

			if getOutputFormat() != "table" {
				return printOutput(user)
			}
			fmt.Printf("%s: role %s, active %t, %d messages\n", user.Username, user.Role, user.IsActive, user.MessageCount)
			return nil
		},
	}
}

func newAdminChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "Moderate conversations",
	}

	var (
		page, pageSize int
		flagged        bool
		unreviewed     bool
		userID         int64
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			opts := client.ListOptions{Page: page, PageSize: pageSize}

			var (
				result *client.Page[client.Conversation]
				err    error
			)
			if unreviewed {
				result, err = apiClient.Admin().Unreviewed(ctx, &opts)
			} else {
				result, err = apiClient.Admin().Chats(ctx, &client.ChatListOptions{ListOptions: opts, Flagged: flagged, UserID: userID})
			}
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			t := NewTable("ID", "USER", "CREATED", "REVIEW", "FLAG", "MESSAGE")
			for _, c := range result.Data {
				var msg string
				if len(c.Messages) > 0 {
					msg = c.Messages[0].Content
				}
				t.AddRow(
					strconv.FormatInt(c.ID, 10),
					strconv.FormatInt(c.UserID, 10),
					c.CreatedAt.Format("2006-01-02 15:04"),
					formatReview(c),
					truncate(c.FlagReason, 30),
					truncate(msg, 40),
				)
			}
			t.Render()
			fmt.Printf("\nPage %d of %d (%d conversations)\n", result.Page, result.TotalPages, result.TotalItems)
			return nil
		},
	}
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&pageSize, "page-size", 20, "conversations per page")
	list.Flags().BoolVar(&flagged, "flagged", false, "only flagged conversations")
	list.Flags().BoolVar(&unreviewed, "unreviewed", false, "only conversations awaiting review")
	list.Flags().Int64Var(&userID, "user", 0, "only conversations of this account")
	cmd.AddCommand(list)

	var reject bool
	var notes string
	review := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve (or reject with --reject) a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			conv, err := apiClient.Admin().Review(context.Background(), id, !reject, notes)
			if err != nil {
				return fmt.Errorf("review failed: %w", err)
			}
			fmt.Printf("Conversation %d %s\n", conv.ID, formatReview(*conv))
			return nil
		},
	}
	review.Flags().BoolVar(&reject, "reject", false, "reject instead of approve")
	review.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.AddCommand(review)

	flag := &cobra.Command{
		Use:   "flag <id> <reason>",
		Short: "Flag a conversation for follow-up",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			reason := strings.Join(args[1:], " ")
			if _, err := apiClient.Admin().Flag(context.Background(), id, reason); err != nil {
				return fmt.Errorf("flag failed: %w", err)
			}
			fmt.Printf("Conversation %d flagged\n", id)
			return nil
		},
	}
	cmd.AddCommand(flag)

	var since time.Duration
	export := &cobra.Command{
		Use:   "export",
		Short: "Export recent conversations to the archive bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			res, err := apiClient.Admin().Export(context.Background(), from)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(res)
			}
			if res.Count == 0 {
				fmt.Println("No conversations to export")
				return nil
			}
			fmt.Printf("Exported %d conversations to %s\n", res.Count, res.Key)
			return nil
		},
	}
	export.Flags().DurationVar(&since, "since", 0, "export conversations newer than this (default 24h)")
	cmd.AddCommand(export)

	return cmd
}

func formatReview(c client.Conversation) string {
	switch {
	case !c.Reviewed:
		return formatStatus("pending")
	case c.Approved != nil && *c.Approved:
		return formatStatus("approved")
	default:
		return formatStatus("rejected")
	}
}

func newAdminLogsCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the admin activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Admin().ActivityLogs(context.Background(), &client.ListOptions{Page: page, PageSize: pageSize})
			if err != nil {
				return fmt.Errorf("failed to list activity: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			t := NewTable("ID", "ADMIN", "ACTION", "WHEN", "DETAILS")
			for _, e := range result.Data {
				t.AddRow(
					strconv.FormatInt(e.ID, 10),
					strconv.FormatInt(e.AdminID, 10),
					e.Action,
					e.CreatedAt.Format("2006-01-02 15:04"),
					truncate(formatDetails(e.Details), 50),
				)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "entries per page")

	return cmd
}
