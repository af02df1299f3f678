// Package common provides the configuration structures and the logging setup
// shared by the aKV server, client and command line tools.
//
// Key Components:
//
//   - ServerConfig: listener, storage, query pipeline and logging settings of
//     a server. Validate rejects values the server cannot start with and
//     String pretty prints the configuration at startup.
//
//   - ClientConfig: endpoint, transport and timeout of a line protocol client.
//
//   - Logger: custom implementation of dragonboat's logger.ILogger that prints
//     "LEVEL | package | message". InitLoggers installs it as the global
//     factory and applies the configured level to every aKV logger.
package common
