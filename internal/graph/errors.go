package graph

import (
	"fmt"
	"strings"
)

// CircularDependencyError represents a cycle between providers that are
// being constructed.
type CircularDependencyError struct {
	Node string
	Path []string
}

func (e CircularDependencyError) Error() string {
	var b strings.Builder
	b.WriteString("circular dependency detected:\n\n")

	if len(e.Path) == 0 {
		b.WriteString(fmt.Sprintf("    %s\n", e.Node))
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Node))
	} else {
		for i, node := range e.Path {
			b.WriteString(fmt.Sprintf("    %s\n", node))
			if i < len(e.Path)-1 {
				b.WriteString("      ↓\n")
			}
		}
		b.WriteString("      ↓\n")
		b.WriteString(fmt.Sprintf("    %s (cycle)\n", e.Path[0]))
	}

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Mark one side of the cycle with nestor.ForwardRef\n")
	b.WriteString("  • Make both sides return pointers to structs so a placeholder can be shared\n")
	b.WriteString("  • Restructure to remove the circular relationship\n")

	return b.String()
}
