package common

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultEndpoint        = "0.0.0.0:6667"
	DefaultTransport       = "tcp"
	DefaultDataDir         = "data"
	DefaultWorkers         = 4
	DefaultChunkSize       = 1000
	DefaultTickMillisecond = 10
	DefaultLogLevel        = "info"
	DefaultMaxLineBytes    = 512 * 1024
)

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of an aKV server
type ServerConfig struct {
	// Listener settings
	Endpoint     string // host:port for tcp, socket path for unix
	Transport    string // tcp or unix
	MaxLineBytes int    // longest accepted command line

	// Storage settings
	DataDir  string
	InMemory bool

	// Query pipeline
	Workers         int   // size of the worker pool
	ChunkSize       int   // elements per scan chunk
	TickMillisecond int64 // fallback interval of the dispatch loop

	// HTTP endpoint for /metrics and pprof (empty = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// DefaultServerConfig returns a configuration with all defaults set
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Endpoint:        DefaultEndpoint,
		Transport:       DefaultTransport,
		MaxLineBytes:    DefaultMaxLineBytes,
		DataDir:         DefaultDataDir,
		Workers:         DefaultWorkers,
		ChunkSize:       DefaultChunkSize,
		TickMillisecond: DefaultTickMillisecond,
		LogLevel:        DefaultLogLevel,
	}
}

// Validate checks the configuration for values the server cannot start with
func (c *ServerConfig) Validate() error {
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint must not be empty")
	case c.Transport != "tcp" && c.Transport != "unix":
		return errors.Newf("invalid transport %q, must be one of tcp, unix", c.Transport)
	case c.Workers < 1:
		return errors.Newf("invalid worker count %d, must be at least 1", c.Workers)
	case c.ChunkSize < 1:
		return errors.Newf("invalid chunk size %d, must be at least 1", c.ChunkSize)
	case c.TickMillisecond < 1:
		return errors.Newf("invalid tick interval %dms", c.TickMillisecond)
	case c.MaxLineBytes < 64:
		return errors.Newf("invalid max line length %d, must be at least 64 bytes", c.MaxLineBytes)
	case !c.InMemory && c.DataDir == "":
		return errors.New("data directory must be set unless the store runs in memory")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport)
	addField("Max Line Length", fmt.Sprintf("%d bytes", c.MaxLineBytes))
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	} else {
		addField("Metrics Endpoint", "disabled")
	}

	addSection("Query Pipeline")
	addField("Workers", fmt.Sprintf("%d", c.Workers))
	addField("Scan Chunk Size", fmt.Sprintf("%d", c.ChunkSize))
	addField("Dispatch Interval", fmt.Sprintf("%d ms", c.TickMillisecond))

	addSection("Storage")
	if c.InMemory {
		addField("Data Directory", "in memory")
	} else {
		addField("Data Directory", c.DataDir)
	}

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoint      string
	Transport     string
	TimeoutSecond int // dial and read timeout (0 = none)
	RetryCount    int // dial attempts
	MaxLineBytes  int
}

// DefaultClientConfig returns a client configuration matching the server defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Endpoint:      "localhost:6667",
		Transport:     DefaultTransport,
		TimeoutSecond: 5,
		RetryCount:    3,
		MaxLineBytes:  DefaultMaxLineBytes,
	}
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Transport", c.Transport)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	return sb.String()
}
