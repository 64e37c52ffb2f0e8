// Package cli provides the command-line interface for linkwatch
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	envFile     string
	projectRoot string
	verbosity   string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "linkwatch",
	Short: "Service availability monitor with SSH recovery",
	Long: `📡 linkwatch - Availability monitoring for datacenter service links

linkwatch polls the health endpoint of every configured DC:SRV pair,
backs off while a link stays down, runs a recovery command on the DC
host over SSH, and reports outages and recoveries to Telegram.`,

	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("📡 linkwatch v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initEnv)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file with monitor configuration (default: .env)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory for state and PID files")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newDaemonCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initEnv() {
	// Flags may also come from LINKWATCH_* environment variables
	viper.SetEnvPrefix("LINKWATCH")
	viper.AutomaticEnv()

	if envFile == "" {
		if v := viper.GetString("ENV_FILE"); v != "" {
			envFile = v
		}
	}
	if v := viper.GetString("ROOT"); v != "" && projectRoot == "." {
		projectRoot = v
	}
	if v := viper.GetString("VERBOSITY"); v != "" && verbosity == "info" {
		verbosity = v
	}
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("📡 %s %s\n", color.GreenString("[linkwatch]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "📡 %s %s\n", color.RedString("[linkwatch]"), message)
}

func printInfo(message string) {
	fmt.Printf("📡 %s %s\n", color.CyanString("[linkwatch]"), message)
}

func printWarning(message string) {
	fmt.Printf("📡 %s %s\n", color.YellowString("[linkwatch]"), message)
}
