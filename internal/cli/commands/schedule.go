package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/reportengine/internal/api/client"
	"github.com/reportengine/internal/scheduler"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule",
		Short:   "Schedule management commands",
		Aliases: []string{"schedules", "s"},
	}

	cmd.AddCommand(newScheduleJobsCommand())
	cmd.AddCommand(newScheduleTriggerCommand())
	cmd.AddCommand(newScheduleReloadCommand())

	return cmd
}

func newScheduleJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Short:   "List registered cron jobs",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			jobs, err := c.ListJobs()
			if err != nil {
				return fmt.Errorf("failed to list jobs: %v", err)
			}

			return printJobs(jobs)
		},
	}

	return cmd
}

func newScheduleTriggerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger [schedule_id]",
		Short: "Fire a schedule out of band",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleID, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			resp, err := c.TriggerSchedule(scheduleID)
			if err != nil {
				return fmt.Errorf("failed to trigger schedule: %v", err)
			}

			fmt.Printf("Execution started: %s\n", resp.ExecutionID)
			return nil
		},
	}

	return cmd
}

func newScheduleReloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reconcile cron jobs against the schedule table",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			resp, err := c.ReloadSchedules()
			if err != nil {
				return fmt.Errorf("failed to reload schedules: %v", err)
			}

			fmt.Println(resp.Message)
			return printJobs(resp.Jobs)
		},
	}

	return cmd
}

func printJobs(jobs []scheduler.JobInfo) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SCHEDULE\tCONFIG\tCRON\tTIMEZONE\tNEXT RUN")
	for _, j := range jobs {
		next := "-"
		if !j.NextRun.IsZero() {
			next = j.NextRun.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", j.ScheduleID, j.ConfigID, j.Spec, j.Timezone, next)
	}
	return w.Flush()
}
