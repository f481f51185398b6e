package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reportengine/internal/api/client"
)

func NewHealthCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show engine health",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			h, err := c.GetHealth()
			if err != nil {
				return fmt.Errorf("failed to get health: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "FIELD\tVALUE")
			fmt.Fprintf(w, "Status\t%s\n", h.Status)
			fmt.Fprintf(w, "Uptime\t%ds\n", h.UptimeSeconds)
			fmt.Fprintf(w, "Running executions\t%d\n", h.RunningExecutions)
			fmt.Fprintf(w, "Slots\t%d/%d\n", h.SlotsInUse, h.SlotsCapacity)
			fmt.Fprintf(w, "Registered jobs\t%d\n", h.RegisteredJobs)
			return w.Flush()
		},
	}

	return cmd
}
