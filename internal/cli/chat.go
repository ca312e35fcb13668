package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nflow-health/nflow/pkg/client"
)

// maxHistory matches the number of prior turns the server accepts
const maxHistory = 50

func newChatCmd() *cobra.Command {
	var interactive bool

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Send a single message, or start an interactive session with -i.
Free accounts have a limited number of messages; see 'nflow usage'.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if interactive {
				return chatLoop()
			}
			if len(args) == 0 {
				return fmt.Errorf("a message is required (or use -i)")
			}

			resp, err := apiClient.Chat().Send(context.Background(), client.SendRequest{Message: strings.Join(args, " ")})
			if err != nil {
				return chatError(err)
			}

			if getOutputFormat() != "table" {
				return printOutput(resp)
			}
			printReply(resp)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "start an interactive session")

	return cmd
}

func chatLoop() error {
	fmt.Println("Type your message and press enter. An empty line ends the session.")
	reader := bufio.NewReader(os.Stdin)
	var history []client.Turn

	for {
		fmt.Print("> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" || err != nil {
			return nil
		}

		resp, err := apiClient.Chat().Send(context.Background(), client.SendRequest{Message: line, History: history})
		if err != nil {
			return chatError(err)
		}
		printReply(resp)

		history = append(history, resp.Messages...)
		if len(history) > maxHistory {
			history = history[len(history)-maxHistory:]
		}
	}
}

func printReply(resp *client.SendResponse) {
	fmt.Println(resp.Reply())
	if resp.RemainingMessages != nil {
		fmt.Printf("\n(%d free messages left)\n", *resp.RemainingMessages)
	}
}

func chatError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.IsQuotaExceeded() {
		return fmt.Errorf("%s\nRun 'nflow billing plans' to see subscription options", apiErr.Message)
	}
	return fmt.Errorf("chat failed: %w", err)
}

func newHistoryCmd() *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your past conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := apiClient.Chat().History(context.Background(), &client.ListOptions{Page: page, PageSize: pageSize})
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			if getOutputFormat() != "table" {
				return printOutput(result)
			}

			t := NewTable("ID", "CREATED", "MESSAGE", "REPLY")
			for _, c := range result.Data {
				var msg string
				if len(c.Messages) > 0 {
					msg = c.Messages[0].Content
				}
				t.AddRow(
					strconv.FormatInt(c.ID, 10),
					c.CreatedAt.Format("2006-01-02 15:04"),
					truncate(msg, 40),
					truncate(c.Reply(), 40),
				)
			}
			t.Render()
			fmt.Printf("\nPage %d of %d (%d conversations)\n", result.Page, result.TotalPages, result.TotalItems)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "conversations per page")

	return cmd
}
