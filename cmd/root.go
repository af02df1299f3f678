package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/aKV/cmd/bench"
	"github.com/ValentinKolb/aKV/cmd/serve"
	"github.com/ValentinKolb/aKV/cmd/shell"
	"github.com/ValentinKolb/aKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "akv",
		Short: "asynchronous key-value server",
		Long: fmt.Sprintf(`aKV (v%s)

A key-value database speaking a line based IRC-style protocol. Queries
are executed asynchronously by a worker pool, large collections are
streamed back in chunks and keys can expire or be scheduled for later.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of aKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aKV v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(shell.ShellCmd)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "transport"
	RootCmd.PersistentFlags().String(key, "tcp", util.WrapString("transport to use (tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
