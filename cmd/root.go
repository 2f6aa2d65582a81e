package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "studyhub",
	Short: "studyhub document backend",
	Example: `studyhub serve --worker loop
studyhub worker run
studyhub db migrate
studyhub lock inspect -r document -i <id>
studyhub job status -j <job-id>
studyhub job cancel -j <job-id>`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(jobCmd)
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(contextCommand)
	rootCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	cobra.EnableCommandSorting = false
}
