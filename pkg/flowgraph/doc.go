// Package flowgraph is the public API for building and running state
// graphs without importing internal packages.
//
// A StateGraph is declared from a Schema that names how each state key is
// merged across steps. Nodes are plain functions returning partial state
// updates; edges connect them between the START and END sentinels:
//
//	sg := flowgraph.NewStateGraph(flowgraph.MessagesState())
//	sg.AddNode("retrieve", retrieve)
//	sg.AddNode("generate", generate)
//	sg.AddEdge(flowgraph.START, "retrieve")
//	sg.AddEdge("retrieve", "generate")
//	sg.AddEdge("generate", flowgraph.END)
//	app, err := sg.Compile()
//
// Compiled graphs run in supersteps; with a checkpointer every step is
// persisted per thread so runs can be inspected, edited and resumed.
package flowgraph
