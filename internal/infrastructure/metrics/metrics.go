package metrics

import (
	"expvar"
)

// Per-node metrics using expvar maps keyed by node ID.
var (
	nodeExecs    = expvar.NewMap("ragagent_node_executions_total")
	nodeErrors   = expvar.NewMap("ragagent_node_errors_total")
	nodeRetries  = expvar.NewMap("ragagent_node_retries_total")
	nodeDuration = expvar.NewMap("ragagent_node_duration_ms_total")
	runs         = expvar.NewMap("ragagent_runs_total")
)

// Engine / storage / retrieval metrics.
var (
	superstepsTotal    = new(expvar.Int)
	checkpointsSaved   = new(expvar.Int)
	documentsRetrieved = new(expvar.Int)
	documentsIndexed   = new(expvar.Int)
	generationsTotal   = new(expvar.Int)
)

func init() {
	expvar.Publish("ragagent_supersteps_total", superstepsTotal)
	expvar.Publish("ragagent_checkpoints_saved_total", checkpointsSaved)
	expvar.Publish("ragagent_documents_retrieved_total", documentsRetrieved)
	expvar.Publish("ragagent_documents_indexed_total", documentsIndexed)
	expvar.Publish("ragagent_generations_total", generationsTotal)
}

// Run outcome labels.
const (
	RunStarted     = "started"
	RunCompleted   = "completed"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// Node helpers
func NodeExecuted(node string, ms int64) {
	nodeExecs.Add(node, 1)
	nodeDuration.Add(node, ms)
}
func NodeFailed(node string)  { nodeErrors.Add(node, 1) }
func NodeRetried(node string) { nodeRetries.Add(node, 1) }

// Run helpers
func IncRuns(outcome string) { runs.Add(outcome, 1) }
func IncSupersteps()         { superstepsTotal.Add(1) }

// Storage / RAG helpers
func IncCheckpointsSaved()        { checkpointsSaved.Add(1) }
func AddDocumentsRetrieved(n int) { documentsRetrieved.Add(int64(n)) }
func AddDocumentsIndexed(n int)   { documentsIndexed.Add(int64(n)) }
func IncGenerations()             { generationsTotal.Add(1) }
