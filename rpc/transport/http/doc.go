// Package http serves the observability endpoint of an aKV server: Prometheus
// metrics on /metrics (VictoriaMetrics text format, including process
// metrics) and the runtime profiles on /debug/pprof/.
//
// The client protocol itself never runs over HTTP, see the tcp and unix
// transports for that.
package http
