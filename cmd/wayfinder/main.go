package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wayfinder",
	Short: "Wayfinder career coaching web server",
	Long:  "Wayfinder serves the career coaching application: it manages browser sessions against the API gateway, guards routes, terminates the OAuth callback, and drives the diagnostic questionnaire and roadmap views.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: configs/wayfinder.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
