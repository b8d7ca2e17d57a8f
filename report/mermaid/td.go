// Package mermaid renders stage graphs and readiness reports as Mermaid flowcharts.
package mermaid

import (
	"fmt"
	"strings"
)

// Node represents a node in the Mermaid graph.
type Node struct {
	ID    string
	Label string
	Style Style
}

// Edge represents a directed edge in the Mermaid graph.
// It connects two nodes or subgraphs by their IDs.
type Edge struct {
	From  string
	To    string
	Arrow string // Optional arrow style (e.g., "-.->", "==>")
	Text  string
}

// Subgraph groups nodes under a titled box.
type Subgraph struct {
	ID    string
	Label string
	Nodes []Node
	Style Style
}

// Graph represents a Mermaid graph with subgraphs, nodes and edges.
type Graph struct {
	Subgraphs []Subgraph
	Nodes     []Node
	Edges     []Edge
}

// Style represents the style of a node in the graph.
type Style struct {
	Fill            string
	Stroke          string
	StrokeWidth     string
	StrokeDasharray string
	// Color applies to text color.
	Color      string
	FontWeight string
	FontSize   string
	IsHtml     bool
}

// ToCSS renders the style as a Mermaid style directive, or as inline CSS when IsHtml is set.
func (s Style) ToCSS() string {
	var parts []string
	if s.Fill != "" {
		parts = append(parts, "fill:"+s.Fill)
	}
	if s.Stroke != "" {
		parts = append(parts, "stroke:"+s.Stroke)
	}
	if s.StrokeWidth != "" {
		parts = append(parts, "stroke-width:"+s.StrokeWidth)
	}
	if s.StrokeDasharray != "" {
		parts = append(parts, "stroke-dasharray:"+s.StrokeDasharray)
	}
	if s.Color != "" {
		parts = append(parts, "color:"+s.Color)
	}
	if s.FontWeight != "" {
		parts = append(parts, "font-weight:"+s.FontWeight)
	}
	if s.FontSize != "" {
		parts = append(parts, "font-size:"+s.FontSize)
	}
	if len(parts) == 0 {
		return ""
	}
	if s.IsHtml {
		return strings.Join(parts, ";") + ";"
	}
	return strings.Join(parts, ",")
}

// LabelBuilder helps build HTML labels for nodes in a declarative way.
type LabelBuilder struct {
	Label     string
	FontSize  int
	FontColor string
	Bold      bool
	SubLines  []string
}

// ToHTML renders the label. SubLines are expected to be built with Subline.
func (l LabelBuilder) ToHTML() string {
	var styleParts []string
	if l.FontSize > 0 {
		styleParts = append(styleParts, fmt.Sprintf("font-size:%dpx", l.FontSize))
	}
	if l.FontColor != "" {
		styleParts = append(styleParts, fmt.Sprintf("color:%s", l.FontColor))
	}
	styleAttr := ""
	if len(styleParts) > 0 {
		styleAttr = fmt.Sprintf(" style='%s'", strings.Join(styleParts, ";"))
	}

	main := fmt.Sprintf("<span%s>%s</span>", styleAttr, escape(l.Label))
	if l.Bold {
		main = "<b>" + main + "</b>"
	}

	var sub string
	if len(l.SubLines) > 0 {
		sub = "<br/>" + strings.Join(l.SubLines, "<br/>")
	}
	return main + sub
}

// Subline creates a subline for a node label with the given text and style.
func Subline(style Style, format string, args ...any) string {
	content := escape(fmt.Sprintf(format, args...))
	css := style.ToCSS()
	if css != "" {
		return fmt.Sprintf("<span style='%s'>%s</span>", css, content)
	}
	return fmt.Sprintf("<span>%s</span>", content)
}

// RenderTD renders the graph in Mermaid TD (top-down) format.
// Subgraphs, nodes and edges are rendered in the order they were added.
func (g *Graph) RenderTD() string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	for _, sg := range g.Subgraphs {
		fmt.Fprintf(&b, "    subgraph %s[\"%s\"]\n", sanitizeID(sg.ID), sg.Label)
		for _, n := range sg.Nodes {
			fmt.Fprintf(&b, "        %s[\"%s\"]\n", sanitizeID(n.ID), n.Label)
		}
		b.WriteString("    end\n")
	}
	for _, n := range g.Nodes {
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", sanitizeID(n.ID), n.Label)
	}

	for _, e := range g.Edges {
		from := sanitizeID(e.From)
		to := sanitizeID(e.To)
		arrow := e.Arrow
		if arrow == "" {
			arrow = "-->"
		}
		if e.Text != "" {
			fmt.Fprintf(&b, "    %s %s|%s| %s\n", from, arrow, e.Text, to)
		} else {
			fmt.Fprintf(&b, "    %s %s %s\n", from, arrow, to)
		}
	}

	for _, sg := range g.Subgraphs {
		if css := sg.Style.ToCSS(); css != "" {
			fmt.Fprintf(&b, "    style %s %s\n", sanitizeID(sg.ID), css)
		}
		for _, n := range sg.Nodes {
			writeStyle(&b, n)
		}
	}
	for _, n := range g.Nodes {
		writeStyle(&b, n)
	}

	return b.String()
}

func writeStyle(b *strings.Builder, n Node) {
	if css := n.Style.ToCSS(); css != "" {
		fmt.Fprintf(b, "    style %s %s\n", sanitizeID(n.ID), css)
	}
}

// sanitizeID replaces characters in a string to make it suitable for use as an ID in Mermaid graphs.
func sanitizeID(s string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		".", "_",
		"(", "_",
		")", "_",
		":", "_",
		",", "_",
		"[", "_",
		"]", "_",
		"-", "_",
		"/", "_",
	)
	return replacer.Replace(s)
}

// escape makes free text safe inside a quoted HTML label.
func escape(s string) string {
	replacer := strings.NewReplacer(
		"\"", "#quot;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(s)
}
