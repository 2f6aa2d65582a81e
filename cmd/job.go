package cmd

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "summary job commands",
}

func init() {
	jobCmd.AddCommand(jobStatusCmd())
	jobCmd.AddCommand(cancelJobCmd())
}

func statusColor(status string) string {
	switch status {
	case "completed":
		return color.GreenString("%s", status)
	case "failed":
		return color.RedString("%s", status)
	case "canceled":
		return color.YellowString("%s", status)
	}
	return color.CyanString("%s", status)
}

func jobStatusCmd() *cobra.Command {
	var jobID uint

	var required = []string{"job-id"}

	command := &cobra.Command{
		Use:     "status",
		Short:   "show the status of a summary job",
		Example: "studyhub job status -j <job-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			status, err := newClient().JobStatus(context.Background(), jobID)
			if err != nil {
				logrus.Error(err)
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Status", "Progress", "Analysis", "Model", "Updated"})
			table.Append([]string{
				strconv.FormatUint(uint64(status.JobID), 10),
				statusColor(status.Status),
				strconv.Itoa(status.Progress) + "%",
				status.AnalysisType,
				status.Model,
				status.UpdatedAt.Local().Format(time.DateTime),
			})
			table.Render()

			if status.Error != "" {
				printField("Error", color.RedString("%s", status.Error))
			}
			if status.Summary != "" {
				printField("Summary", status.Summary)
			}
		},
	}

	command.Flags().UintVarP(&jobID, "job-id", "j", 0, "job id (required)")
	bindContextFlags(command)
	command.Flags().SortFlags = false

	return command
}

func cancelJobCmd() *cobra.Command {
	var jobID uint

	var required = []string{"job-id"}

	command := &cobra.Command{
		Use:     "cancel",
		Short:   "cancel a pending or running summary job",
		Example: "studyhub job cancel -j <job-id>",
		Run: func(cmd *cobra.Command, args []string) {
			if checkMissingFlags(cmd, required) {
				return
			}

			res, err := newClient().CancelJob(context.Background(), jobID)
			if err != nil {
				logrus.Error(err)
				return
			}

			if res.Canceled {
				color.Green("job %d canceled", res.JobID)
				return
			}
			color.Yellow("job %d already %s", res.JobID, res.Status)
		},
	}

	command.Flags().UintVarP(&jobID, "job-id", "j", 0, "job id (required)")
	bindContextFlags(command)
	command.Flags().SortFlags = false

	return command
}
