package export

import (
	"fmt"
	"sort"
	"strings"
)

// GenerateMermaid produces a Mermaid classDiagram from type records.
// Superclass and super-interface references become inheritance arrows,
// realized interfaces dotted realization arrows and annotations plain
// dependency arrows. Referenced types missing from records are drawn as
// empty classes.
func GenerateMermaid(records []TypeRecord) string {
	byFQN := make(map[string]*TypeRecord, len(records))
	for i := range records {
		byFQN[records[i].FQN] = &records[i]
	}

	// Build FQN → ID mapping for Mermaid (alphanumeric only).
	nodeIDs := make(map[string]string)
	var order []string
	getID := func(fqn string) string {
		if id, ok := nodeIDs[fqn]; ok {
			return id
		}
		id := fmt.Sprintf("T%d", len(nodeIDs))
		nodeIDs[fqn] = id
		order = append(order, fqn)
		return id
	}

	sorted := make([]*TypeRecord, 0, len(records))
	for i := range records {
		sorted = append(sorted, &records[i])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FQN < sorted[j].FQN })

	var edges []string
	for _, r := range sorted {
		id := getID(r.FQN)
		for _, s := range r.SuperClasses {
			edges = append(edges, fmt.Sprintf("  %s <|-- %s", getID(s), id))
		}
		for _, s := range r.SuperInterfaces {
			edges = append(edges, fmt.Sprintf("  %s <|-- %s", getID(s), id))
		}
		for _, s := range r.RealizedInterfaces {
			edges = append(edges, fmt.Sprintf("  %s <|.. %s", getID(s), id))
		}
		for _, a := range r.Annotations {
			edges = append(edges, fmt.Sprintf("  %s ..> %s", id, getID(a)))
		}
	}

	var sb strings.Builder
	sb.WriteString("classDiagram\n")
	for _, fqn := range order {
		id := nodeIDs[fqn]
		r, ok := byFQN[fqn]
		if !ok {
			fmt.Fprintf(&sb, "  class %s[\"%s\"]\n", id, escape(fqn))
			continue
		}
		fmt.Fprintf(&sb, "  class %s[\"%s\"] {\n", id, escape(fqn))
		if stereotype := stereotypeOf(r); stereotype != "" {
			fmt.Fprintf(&sb, "    <<%s>>\n", stereotype)
		}
		for _, m := range r.Methods {
			sb.WriteString("    " + methodLine(m) + "\n")
		}
		sb.WriteString("  }\n")
	}
	for _, e := range edges {
		sb.WriteString(e + "\n")
	}
	return sb.String()
}

func stereotypeOf(r *TypeRecord) string {
	switch r.Kind {
	case "interface", "annotation":
		return r.Kind
	}
	if strings.Contains(r.Modifiers, "abstract") {
		return "abstract"
	}
	return ""
}

// methodLine renders a method in Mermaid member syntax, for example
// "+find(int) User".
func methodLine(m MethodRecord) string {
	var sb strings.Builder
	sb.WriteString(visibility(m.Modifiers))
	sb.WriteString(escape(m.Name))
	sb.WriteString("(" + escape(strings.Join(m.Parameters, ", ")) + ")")
	if strings.Contains(m.Modifiers, "abstract") {
		sb.WriteString("*")
	} else if strings.Contains(m.Modifiers, "static") {
		sb.WriteString("$")
	}
	if m.ReturnType != "" && m.ReturnType != "void" {
		sb.WriteString(" " + escape(m.ReturnType))
	}
	return sb.String()
}

func visibility(modifiers string) string {
	for _, f := range strings.Fields(modifiers) {
		switch f {
		case "public":
			return "+"
		case "private":
			return "-"
		case "protected":
			return "#"
		}
	}
	return "~"
}

// escape replaces characters Mermaid treats as syntax inside labels.
func escape(s string) string {
	return strings.NewReplacer(
		`"`, "'",
		"<", "~",
		">", "~",
		"{", "(",
		"}", ")",
	).Replace(s)
}
