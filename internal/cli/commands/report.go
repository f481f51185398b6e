package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reportengine/internal/api/client"
)

func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Report execution commands",
		Aliases: []string{"reports", "r"},
	}

	cmd.AddCommand(newReportRunCommand())
	cmd.AddCommand(newReportStatusCommand())
	cmd.AddCommand(newReportCancelCommand())

	return cmd
}

func newReportRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [config_id]",
		Short: "Run a report config immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configID, err := parseID(args[0])
			if err != nil {
				return fmt.Errorf("invalid config id: %v", err)
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			resp, err := c.ExecuteConfig(configID)
			if err != nil {
				return fmt.Errorf("failed to start execution: %v", err)
			}

			fmt.Printf("Execution started: %s\n", resp.ExecutionID)
			return nil
		},
	}

	return cmd
}

func newReportStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [execution_id]",
		Short: "Show an execution and its deliveries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			resp, err := c.GetExecution(args[0])
			if err != nil {
				return fmt.Errorf("failed to get execution: %v", err)
			}

			exec := resp.Execution
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "FIELD\tVALUE")
			fmt.Fprintf(w, "ID\t%s\n", exec.ID)
			fmt.Fprintf(w, "Config\t%d\n", exec.ConfigID)
			fmt.Fprintf(w, "Status\t%s\n", exec.Status)
			fmt.Fprintf(w, "Started\t%s\n", exec.StartedAt.Format("2006-01-02 15:04:05"))
			if exec.CompletedAt != nil {
				fmt.Fprintf(w, "Completed\t%s\n", exec.CompletedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(w, "Rows\t%d\n", exec.RowsReturned)
			fmt.Fprintf(w, "Query ms\t%d\n", exec.QueryTimeMs)
			if exec.FilePath != "" {
				fmt.Fprintf(w, "File\t%s (%d bytes)\n", exec.FilePath, exec.FileSizeBytes)
			}
			if exec.ErrorMessage != "" {
				fmt.Fprintf(w, "Error\t%s\n", exec.ErrorMessage)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(resp.Deliveries) == 0 {
				return nil
			}

			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "DELIVERY\tSTATUS\tRECIPIENTS\tOK\tFAILED\tRETRIES\tERROR")
			for _, d := range resp.Deliveries {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
					d.DeliveryID, d.Status, d.RecipientCount, d.SuccessCount, d.FailureCount, d.RetryCount, d.ErrorMessage)
			}
			return w.Flush()
		},
	}

	return cmd
}

func newReportCancelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel [execution_id]",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.CancelExecution(args[0]); err != nil {
				return fmt.Errorf("failed to cancel execution: %v", err)
			}

			fmt.Println("Cancellation requested")
			return nil
		},
	}

	return cmd
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
