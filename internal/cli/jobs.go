package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Analysis job queue management",
}

var jobsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List analysis jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")
		status, _ := cmd.Flags().GetString("status")

		resp, err := apiClient.ListJobs(page, limit, status)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if wantJSON(cmd) {
			return printJSON(resp.Jobs)
		}

		if len(resp.Jobs) == 0 {
			fmt.Println("No jobs found")
			return nil
		}

		rows := make([][]string, 0, len(resp.Jobs))
		for _, j := range resp.Jobs {
			lastErr := "-"
			if j.LastError != nil {
				lastErr = *j.LastError
			}
			rows = append(rows, []string{
				j.ID, j.TargetType, j.TargetID, j.Status,
				fmt.Sprintf("%d/%d", j.Attempts, j.MaxAttempts),
				fmt.Sprint(j.Priority), lastErr,
			})
		}
		table([]string{"ID", "TARGET", "TARGET ID", "STATUS", "ATTEMPTS", "PRIORITY", "LAST ERROR"}, rows)

		fmt.Printf("\nShowing %d of %d jobs\n", len(resp.Jobs), resp.Pagination.Total)
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get job details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.GetJob(args[0])
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}
		return printJSON(job)
	},
}

var jobsRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Retry a failed job",
	Long:  "Return a failed job to pending. The lifetime attempts counter is kept; raise the cap first if it is exhausted.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.RetryJob(args[0])
		if err != nil {
			return fmt.Errorf("failed to retry job: %w", err)
		}
		fmt.Printf("Job %s requeued (attempts %d/%d)\n", job.ID, job.Attempts, job.MaxAttempts)
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a job that has not started",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.CancelJob(args[0]); err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}
		fmt.Printf("Job %s cancelled\n", args[0])
		return nil
	},
}

var jobsResetCmd = &cobra.Command{
	Use:   "reset [id]",
	Short: "Force a stuck running job back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.ResetJob(args[0])
		if err != nil {
			return fmt.Errorf("failed to reset job: %w", err)
		}
		fmt.Printf("Job %s reset to %s\n", job.ID, job.Status)
		return nil
	},
}

var jobsRaiseCmd = &cobra.Command{
	Use:   "raise-attempts [id]",
	Short: "Raise a job's retry cap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAttempts, _ := cmd.Flags().GetInt("max")

		job, err := apiClient.RaiseMaxAttempts(args[0], maxAttempts)
		if err != nil {
			return fmt.Errorf("failed to raise max attempts: %w", err)
		}
		fmt.Printf("Job %s max attempts now %d\n", job.ID, job.MaxAttempts)
		return nil
	},
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the job queue",
	Long:  "Move every pending and queued job to on_hold. Running jobs finish; nothing new is claimed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.PauseJobs()
		if err != nil {
			return fmt.Errorf("failed to pause jobs: %w", err)
		}
		fmt.Printf("Paused %d jobs\n", resp.Affected)
		return nil
	},
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the job queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := apiClient.ResumeJobs()
		if err != nil {
			return fmt.Errorf("failed to resume jobs: %w", err)
		}
		fmt.Printf("Resumed %d jobs\n", resp.Affected)
		return nil
	},
}

var jobsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete finished or queued jobs",
	Long:  "Delete jobs by scope: completed, failed, or all. Running jobs are never deleted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, _ := cmd.Flags().GetString("scope")

		resp, err := apiClient.ClearJobs(scope)
		if err != nil {
			return fmt.Errorf("failed to clear jobs: %w", err)
		}
		fmt.Printf("Cleared %d jobs\n", resp.Affected)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsRetryCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsResetCmd)
	jobsCmd.AddCommand(jobsRaiseCmd)
	jobsCmd.AddCommand(jobsPauseCmd)
	jobsCmd.AddCommand(jobsResumeCmd)
	jobsCmd.AddCommand(jobsClearCmd)

	jobsListCmd.Flags().IntP("page", "p", 1, "Page number")
	jobsListCmd.Flags().IntP("limit", "l", 50, "Results per page")
	jobsListCmd.Flags().StringP("status", "s", "", "Filter by status")

	jobsRaiseCmd.Flags().Int("max", 5, "New retry cap")

	jobsClearCmd.Flags().String("scope", "all", "Scope: completed, failed, all")
}
