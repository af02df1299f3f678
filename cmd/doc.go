// Package cmd implements the command-line interface of aKV. It provides a
// hierarchical command structure for running the server and talking to it.
//
// The package is organized into several subpackages:
//
//   - serve: Starts and configures the aKV server
//   - shell: Interactive (readline) and one-shot client for the line protocol
//   - bench: Parallel workloads against a running server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set through an AKV_<FLAG> environment variable or
// a .env / .env.local file in the working directory.
//
// See akv -help for a list of all commands.
package cmd
