package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Correlation task management",
}

var tasksGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Trigger a correlation run",
	Long:  "Group unlinked open events into tasks and queue analysis jobs. Safe to run while the scheduled run is active.",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := apiClient.GenerateTasks()
		if err != nil {
			return fmt.Errorf("failed to generate tasks: %w", err)
		}

		if wantJSON(cmd) {
			return printJSON(summary)
		}

		fmt.Printf("Tasks created:   %d\n", summary.TasksCreated)
		fmt.Printf("Jobs created:    %d\n", summary.JobsCreated)
		fmt.Printf("Events linked:   %d\n", summary.EventsLinked)
		fmt.Printf("Source IPs:      %d\n", summary.SourceIPs)
		fmt.Printf("Groups skipped:  %d\n", summary.GroupsSkipped)
		fmt.Printf("Groups failed:   %d\n", summary.GroupsFailed)
		return nil
	},
}

var tasksListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List correlation tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")

		resp, err := apiClient.ListTasks(page, limit, status)
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		if wantJSON(cmd) {
			return printJSON(resp.Tasks)
		}

		if len(resp.Tasks) == 0 {
			fmt.Println("No tasks found")
			return nil
		}

		rows := make([][]string, 0, len(resp.Tasks))
		for _, t := range resp.Tasks {
			severity := "-"
			if t.Severity != nil {
				severity = fmt.Sprint(*t.Severity)
			}
			jobStatus := "-"
			if t.JobStatus != nil {
				jobStatus = *t.JobStatus
			}
			rows = append(rows, []string{
				t.ID, t.SourceIP, t.TimeBucket, t.Status,
				fmt.Sprint(t.EventCount), severity, jobStatus,
			})
		}
		table([]string{"ID", "SOURCE IP", "BUCKET", "STATUS", "EVENTS", "SEVERITY", "JOB"}, rows)

		fmt.Printf("\nShowing %d of %d tasks\n", len(resp.Tasks), resp.Pagination.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksGenerateCmd)
	tasksCmd.AddCommand(tasksListCmd)

	tasksListCmd.Flags().IntP("page", "p", 1, "Page number")
	tasksListCmd.Flags().IntP("limit", "l", 50, "Results per page")
	tasksListCmd.Flags().String("status", "", "Filter by status (open, in_review, completed, closed)")
}
