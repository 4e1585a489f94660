package cmd

import (
	"fmt"

	"github.com/bestsecurity/meetman/version"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	config *viper.Viper

	isDevEnv  bool
	isTestEnv bool

	yellow       = color.New(color.FgYellow).SprintFunc()
	warningLabel = yellow("Warning:")
)

// rootCmd represents the base command when called without any subcommands.
// It is initialized in the var declaration (not in init) so that it is
// ready before the init funcs in other files call rootCmd.AddCommand.
var rootCmd = createRootCmd()

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.Version = fmt.Sprintf("v%s", version.Version)
}

func createRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use: "meetman",
		Short: `meetman is a self-hosted meeting booking backend.

It keeps one canonical customer record per person - bookings submitted with
any known email or phone number are matched back to the same customer,
instead of piling up duplicates.`,
	}

	cmd.PersistentFlags().BoolVarP(&isDevEnv, "dev", "", false, "run in development mode")
	cmd.PersistentFlags().BoolVarP(&isTestEnv, "test", "", false, "run in test mode")

	return cmd
}
