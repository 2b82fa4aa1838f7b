package graph

import (
	"fmt"
	"strings"
)

// ToMermaid exports the graph to Mermaid diagram syntax. Conditional edges
// are drawn dotted and labelled with their router key.
func (g *Graph) ToMermaid() string {
	var sb strings.Builder

	sb.WriteString("graph TD\n")
	sb.WriteString(fmt.Sprintf("    %s([%s])\n", Start, Start))
	for _, id := range g.NodeIDs() {
		sb.WriteString(fmt.Sprintf("    %s[%s]\n", id, g.Nodes[id].Name))
	}
	sb.WriteString(fmt.Sprintf("    %s([%s])\n", End, End))

	for _, e := range g.Edges {
		if e.IsConditional() {
			sb.WriteString(fmt.Sprintf("    %s -. %s .-> %s\n", e.Source, e.Condition, e.Target))
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", e.Source, e.Target))
	}

	return sb.String()
}
