package metrics

import (
	"expvar"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

type promMeta struct {
	typ, help string
	label     string // set for expvar maps
}

var promMetas = map[string]promMeta{
	"ragagent_node_executions_total":     {typ: "counter", help: "Node executions", label: "node"},
	"ragagent_node_errors_total":         {typ: "counter", help: "Node executions that failed after retries", label: "node"},
	"ragagent_node_retries_total":        {typ: "counter", help: "Node retry attempts", label: "node"},
	"ragagent_node_duration_ms_total":    {typ: "counter", help: "Cumulative node execution time in milliseconds", label: "node"},
	"ragagent_runs_total":                {typ: "counter", help: "Graph runs by outcome", label: "outcome"},
	"ragagent_supersteps_total":          {typ: "counter", help: "Supersteps executed"},
	"ragagent_checkpoints_saved_total":   {typ: "counter", help: "Checkpoints saved"},
	"ragagent_documents_retrieved_total": {typ: "counter", help: "Documents returned by retrievers"},
	"ragagent_documents_indexed_total":   {typ: "counter", help: "Documents written to document stores"},
	"ragagent_generations_total":         {typ: "counter", help: "Answers generated"},
}

// Handler serves the published counters in Prometheus text format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		WritePrometheus(w)
	})
}

// WritePrometheus renders every expvar variable in Prometheus text format.
// Known ragagent metrics get HELP and TYPE lines; other integer variables
// are written as untyped gauges and everything else is skipped.
func WritePrometheus(w io.Writer) {
	names := make([]string, 0, 32)
	expvar.Do(func(kv expvar.KeyValue) { names = append(names, kv.Key) })
	sort.Strings(names)

	for _, name := range names {
		v := expvar.Get(name)
		m, known := promMetas[name]
		if !known {
			if iv, ok := v.(*expvar.Int); ok {
				fmt.Fprintf(w, "# TYPE %s gauge\n%s %d\n", name, name, iv.Value())
			}
			continue
		}
		fmt.Fprintf(w, "# HELP %s %s\n", name, sanitizeHelp(m.help))
		fmt.Fprintf(w, "# TYPE %s %s\n", name, m.typ)

		mp, isMap := v.(*expvar.Map)
		if !isMap {
			fmt.Fprintf(w, "%s %s\n", name, v.String())
			continue
		}
		sub := make([]expvar.KeyValue, 0, 8)
		mp.Do(func(kv expvar.KeyValue) { sub = append(sub, kv) })
		sort.Slice(sub, func(i, j int) bool { return sub[i].Key < sub[j].Key })
		for _, kv := range sub {
			fmt.Fprintf(w, "%s{%s=\"%s\"} %s\n", name, m.label, escapeLabel(kv.Key), kv.Value.String())
		}
	}
}

func sanitizeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// escapeLabel escapes backslash, double quote and newline.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
