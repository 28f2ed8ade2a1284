package graph

import (
	"fmt"
	"io"
	"strings"
)

// ModuleNode is one module of an import graph as seen by the visualizer.
type ModuleNode struct {
	Token       string
	Name        string
	Global      bool
	Providers   []string
	Controllers []string
	Exports     []string
	Imports     []string // tokens of imported modules
}

// Visualizer renders a module import graph. Nodes keep the order they were given in.
type Visualizer struct {
	nodes []ModuleNode
}

// NewVisualizer creates a new graph visualizer
func NewVisualizer(nodes []ModuleNode) *Visualizer {
	return &Visualizer{nodes: nodes}
}

// WriteDOT writes the graph in Graphviz DOT format
func (v *Visualizer) WriteDOT(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph modules {"); err != nil {
		return err
	}
	fmt.Fprintln(w, "  rankdir=LR;")
	fmt.Fprintln(w, "  node [shape=box];")

	nodeIDs := make(map[string]string, len(v.nodes))
	for i, node := range v.nodes {
		nodeID := fmt.Sprintf("m%d", i)
		nodeIDs[node.Token] = nodeID

		fmt.Fprintf(w, "  %s [label=\"%s\", fillcolor=\"%s\", style=filled];\n",
			nodeID, v.formatNodeLabel(node), v.getNodeColor(node))
	}

	for _, node := range v.nodes {
		for _, imported := range node.Imports {
			toID, ok := nodeIDs[imported]
			if !ok {
				continue
			}
			fmt.Fprintf(w, "  %s -> %s;\n", nodeIDs[node.Token], toID)
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// WriteText writes a text representation of the graph
func (v *Visualizer) WriteText(w io.Writer) error {
	names := make(map[string]string, len(v.nodes))
	for _, node := range v.nodes {
		names[node.Token] = node.Name
	}

	if _, err := fmt.Fprintln(w, "Module Graph:"); err != nil {
		return err
	}
	fmt.Fprintln(w, "=============")
	fmt.Fprintln(w)

	for _, node := range v.nodes {
		header := node.Name
		if node.Global {
			header += " (global)"
		}
		fmt.Fprintln(w, header)

		imports := make([]string, 0, len(node.Imports))
		for _, token := range node.Imports {
			if name, ok := names[token]; ok {
				imports = append(imports, name)
			}
		}
		writeList(w, "Imports", imports)
		writeList(w, "Providers", node.Providers)
		writeList(w, "Controllers", node.Controllers)
		writeList(w, "Exports", node.Exports)
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total modules: %d\n", len(v.nodes))
	return nil
}

func writeList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "  %s: [%s]\n", label, strings.Join(items, ", "))
}

// formatNodeLabel creates a label for a node
func (v *Visualizer) formatNodeLabel(node ModuleNode) string {
	return fmt.Sprintf("%s\\nProviders:%d Exports:%d",
		node.Name, len(node.Providers), len(node.Exports))
}

// getNodeColor determines the color for a node based on its properties
func (v *Visualizer) getNodeColor(node ModuleNode) string {
	if node.Global {
		return "lightyellow"
	}
	return "lightblue"
}
