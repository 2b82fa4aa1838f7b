// Package metrics exposes expvar-published counters for graph runs, node
// executions, checkpoints and retrieval. The ragagent-server renders them on
// /debug/vars and as Prometheus text on /metrics.
package metrics
