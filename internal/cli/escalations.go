package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/victortong-git/soc-lite-aws-sub002/internal/models"
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Escalation management",
}

var escalationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List escalations",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		pending, _ := cmd.Flags().GetBool("pending")

		resp, err := apiClient.ListEscalations(page, limit, pending)
		if err != nil {
			return fmt.Errorf("failed to list escalations: %w", err)
		}

		if wantJSON(cmd) {
			return printJSON(resp.Escalations)
		}

		if len(resp.Escalations) == 0 {
			fmt.Println("No escalations found")
			return nil
		}

		rows := make([][]string, 0, len(resp.Escalations))
		for _, e := range resp.Escalations {
			rows = append(rows, []string{
				e.ID, e.Title, fmt.Sprint(e.Severity), e.SourceType, e.SourceIP,
				channelMark(e.Notification), channelMark(e.Ticket), channelMark(e.Blocklist),
			})
		}
		table([]string{"ID", "TITLE", "SEV", "SOURCE", "IP", "NOTIFY", "TICKET", "BLOCK"}, rows)

		fmt.Printf("\nShowing %d of %d escalations\n", len(resp.Escalations), resp.Pagination.Total)
		return nil
	},
}

var escalationsRetryCmd = &cobra.Command{
	Use:   "retry [id] [channel]",
	Short: "Retry one escalation channel",
	Long:  "Re-run delivery for an incomplete channel: notification, ticket, or blocklist.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		esc, err := apiClient.RetryChannel(args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to retry channel: %w", err)
		}

		state := esc.Channel(args[1])
		if state.Completed {
			ref := ""
			if state.Ref != nil {
				ref = " (" + *state.Ref + ")"
			}
			fmt.Printf("Channel %s delivered%s\n", args[1], ref)
		} else if state.Error != nil {
			fmt.Printf("Channel %s failed again: %s\n", args[1], *state.Error)
		}
		return nil
	},
}

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "List blocked IPs",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")

		entries, err := apiClient.ListBlocklist(!all)
		if err != nil {
			return fmt.Errorf("failed to list blocklist: %w", err)
		}

		if wantJSON(cmd) {
			return printJSON(entries)
		}

		if len(entries) == 0 {
			fmt.Println("Blocklist is empty")
			return nil
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			active := "yes"
			if !e.IsActive {
				active = "no"
			}
			rows = append(rows, []string{
				e.IP, fmt.Sprint(e.Severity), fmt.Sprint(e.BlockCount), active,
				e.FirstBlockedAt.Format("2006-01-02 15:04"),
			})
		}
		table([]string{"IP", "SEVERITY", "BLOCKS", "ACTIVE", "FIRST BLOCKED"}, rows)
		return nil
	},
}

func channelMark(s models.ChannelState) string {
	if s.Completed {
		return "ok"
	}
	if s.Error != nil {
		return "failed"
	}
	return "-"
}

func init() {
	rootCmd.AddCommand(escalationsCmd)
	rootCmd.AddCommand(blocklistCmd)
	escalationsCmd.AddCommand(escalationsListCmd)
	escalationsCmd.AddCommand(escalationsRetryCmd)

	escalationsListCmd.Flags().IntP("page", "p", 1, "Page number")
	escalationsListCmd.Flags().IntP("limit", "l", 50, "Results per page")
	escalationsListCmd.Flags().Bool("pending", false, "Only escalations with incomplete channels")

	blocklistCmd.Flags().Bool("all", false, "Include inactive entries")
}
