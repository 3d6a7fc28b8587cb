package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"contact-chat-lab/internal/console"
	"contact-chat-lab/internal/model"
	"contact-chat-lab/internal/render"
)

var (
	listFilters     console.Filters
	listDirection   string
	listUnreadBy    string
	listJSON        bool
	sendAttachments string
	sendAttachFile  string
	sendNoAttach    bool
)

func init() {
	rootCmd.AddCommand(messagesCmd)
	messagesCmd.AddCommand(messagesListCmd, messagesSendCmd)

	lf := messagesListCmd.Flags()
	lf.StringVar(&listFilters.Limit, "limit", "", "page size (default from profile or 30)")
	lf.StringVar(&listFilters.Offset, "offset", "", "page offset (default from profile or 0)")
	lf.StringVar(&listDirection, "direction", "", "only location or contact messages")
	lf.StringVar(&listUnreadBy, "unread-by", "", "only messages unread by location or contact")
	lf.StringVar(&listFilters.StartTime, "start", "", "start time, local 2006-01-02T15:04 or RFC 3339")
	lf.StringVar(&listFilters.EndTime, "end", "", "end time, local 2006-01-02T15:04 or RFC 3339")
	lf.BoolVar(&listJSON, "json", false, "print raw JSON records")

	sf := messagesSendCmd.Flags()
	sf.StringVar(&sendAttachments, "attachments", "", "attachments as a JSON array")
	sf.StringVar(&sendAttachFile, "attachments-file", "", "read the attachments JSON array from a file")
	sf.BoolVar(&sendNoAttach, "no-attachments", false, "send an empty attachment list instead of the sample files")
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List and send conversation messages",
}

var messagesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List messages for the conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := newConsole(cfg, nil)
		if err != nil {
			return err
		}

		filters, err := mergeFilters(c.Snapshot().Filters, cmd)
		if err != nil {
			return err
		}
		c.SetFilters(filters)

		opErr := c.ListMessages(cmd.Context())
		printLatest(c)
		if opErr != nil {
			return opErr
		}
		messages := c.Snapshot().Messages
		if listJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(messages)
		}
		return render.Messages(os.Stdout, messages)
	},
}

func mergeFilters(base console.Filters, cmd *cobra.Command) (console.Filters, error) {
	flags := cmd.Flags()
	if flags.Changed("limit") {
		base.Limit = listFilters.Limit
	}
	if flags.Changed("offset") {
		base.Offset = listFilters.Offset
	}
	if flags.Changed("start") {
		base.StartTime = listFilters.StartTime
	}
	if flags.Changed("end") {
		base.EndTime = listFilters.EndTime
	}
	var err error
	if flags.Changed("direction") {
		if base.Direction, err = model.ParseDirection(listDirection); err != nil {
			return base, err
		}
	}
	if flags.Changed("unread-by") {
		if base.UnreadBy, err = model.ParseDirection(listUnreadBy); err != nil {
			return base, err
		}
	}
	return base, nil
}

var messagesSendCmd = &cobra.Command{
	Use:   "send <content...>",
	Short: "Send a message to the conversation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		c, err := newConsole(cfg, nil)
		if err != nil {
			return err
		}

		attachments := c.Snapshot().Composer.Attachments
		switch {
		case sendNoAttach:
			attachments = ""
		case sendAttachFile != "":
			b, err := os.ReadFile(sendAttachFile)
			if err != nil {
				return fmt.Errorf("read attachments: %w", err)
			}
			attachments = string(b)
		case cmd.Flags().Changed("attachments"):
			attachments = sendAttachments
		}
		c.SetComposer(strings.Join(args, " "), attachments)

		opErr := c.SendMessage(cmd.Context())
		printLatest(c)
		if opErr != nil {
			return opErr
		}
		if msgs := c.Snapshot().Messages; len(msgs) > 0 {
			return render.Messages(os.Stdout, msgs[:1])
		}
		return nil
	},
}

// printLatest echoes the newest status-log line to stderr.
func printLatest(c *console.Console) {
	if log := c.Snapshot().StatusLog; len(log) > 0 {
		fmt.Fprintln(os.Stderr, log[0])
	}
}
