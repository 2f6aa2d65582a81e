package cmd

import (
	"context"
	"os/signal"

	"github.com/evolearn/studyhub/internal/worker"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "summary worker commands",
}

func init() {
	workerCmd.AddCommand(workerRunCmd())
	workerCmd.AddCommand(workerLoopCmd())
}

func workerRunCmd() *cobra.Command {
	var drain bool

	command := &cobra.Command{
		Use:   "run",
		Short: "process the oldest pending summary job",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
			defer stop()

			app := loadApp(ctx)
			defer app.Close()

			if drain {
				processed, err := app.Worker.Drain(ctx)
				if err != nil {
					logrus.Errorf("[worker] %v", err)
				}
				printField("Processed", color.GreenString("%d", processed))
				return
			}

			res, err := app.Worker.RunOnce(ctx)
			if err != nil {
				logrus.Fatalf("[worker] %v", err)
			}
			printResult(res)
		},
	}

	command.Flags().BoolVarP(&drain, "drain", "d", false, "keep going until no job is pending")

	return command
}

func workerLoopCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "loop",
		Short: "process summary jobs until interrupted",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, stop := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
			defer stop()

			app := loadApp(ctx)
			defer app.Close()

			if err := app.Worker.Loop(ctx, app.Queue); err != nil {
				logrus.Fatalf("[worker] %v", err)
			}
		},
	}

	return command
}

func printResult(res *worker.Result) {
	if res.Outcome == worker.OutcomeIdle {
		color.Yellow("no pending job")
		return
	}

	printField("Job", color.CyanString("%d", res.JobID))
	switch res.Outcome {
	case worker.OutcomeCompleted:
		printField("Outcome", color.GreenString("%s", res.Outcome))
	case worker.OutcomeFailed:
		printField("Outcome", color.RedString("%s", res.Outcome))
	default:
		printField("Outcome", color.YellowString("%s", res.Outcome))
	}
	if res.Message != "" {
		printField("Message", res.Message)
	}
}
