package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cmdUtil "github.com/ValentinKolb/aKV/cmd/util"
	"github.com/ValentinKolb/aKV/rpc/common"
	"github.com/ValentinKolb/aKV/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = common.DefaultServerConfig()
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the aKV server",
		Long:    `Start the aKV server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is AKV_<flag> (e.g. AKV_CHUNK_SIZE=500)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	defaults := common.DefaultServerConfig()

	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, defaults.Endpoint, cmdUtil.WrapString("The address on which the server will listen (e.g. 0.0.0.0:6667 for tcp, /tmp/akv.sock for unix)"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, defaults.DataDir, cmdUtil.WrapString("DataDir is the directory of the on-disk database"))

	key = "in-memory"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Keep the database in memory only. All data is lost when the server stops"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, defaults.Workers, cmdUtil.WrapString("Number of worker goroutines executing queries"))

	key = "chunk-size"
	ServeCmd.PersistentFlags().Int(key, defaults.ChunkSize, cmdUtil.WrapString("Maximum number of elements returned per chunk of a collection scan"))

	key = "tick-millisecond"
	ServeCmd.PersistentFlags().Int64(key, defaults.TickMillisecond, cmdUtil.WrapString("Interval in milliseconds in which the dispatcher drains results and advances the expire and future schedulers"))

	key = "max-line-bytes"
	ServeCmd.PersistentFlags().Int(key, defaults.MaxLineBytes, cmdUtil.WrapString("The longest command line accepted from a client. Longer lines close the session"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Optional address of an http listener serving /metrics and /debug/pprof (e.g. localhost:9100)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, defaults.LogLevel, cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.Transport = viper.GetString("transport")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.InMemory = viper.GetBool("in-memory")
	serveCmdConfig.Workers = viper.GetInt("workers")
	serveCmdConfig.ChunkSize = viper.GetInt("chunk-size")
	serveCmdConfig.TickMillisecond = viper.GetInt64("tick-millisecond")
	serveCmdConfig.MaxLineBytes = viper.GetInt("max-line-bytes")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	return serveCmdConfig.Validate()
}

// run starts the aKV server and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewServer(serveCmdConfig, t).Serve(ctx)
}
