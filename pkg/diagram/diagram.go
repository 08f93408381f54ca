// Package diagram draws compiled workflows as Mermaid flowcharts or
// plain-text box diagrams.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/goalrun/pkg/kernel/model"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram of wf in the requested format.
func Generate(wf *model.Workflow, format Format) (string, error) {
	if wf == nil {
		return "", fmt.Errorf("nil workflow")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(wf), nil
	case FormatASCII:
		return generateASCII(wf), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

const (
	startNode = "START"
	endNode   = "ENDE"
)

// edge is a dangling arrow waiting for the next node.
type edge struct {
	from  string
	label string
}

type mermaid struct {
	b  strings.Builder
	wf *model.Workflow
}

func generateMermaid(wf *model.Workflow) string {
	m := &mermaid{wf: wf}
	m.b.WriteString("flowchart TD\n")
	m.line(startNode + "([" + startNode + "])")
	_, out := m.sequence([]edge{{from: startNode}}, wf.Root)
	m.line(endNode + "([" + endNode + "])")
	m.connect(out, endNode)
	return m.b.String()
}

// sequence draws ids one after the other. It returns the first node of the
// sequence and the edges leaving its last block; an empty sequence passes
// in through unchanged.
func (m *mermaid) sequence(in []edge, ids []string) (string, []edge) {
	entry := ""
	out := in
	for i, id := range ids {
		e, next := m.block(out, id)
		if i == 0 {
			entry = e
		}
		out = next
	}
	return entry, out
}

func (m *mermaid) block(in []edge, id string) (string, []edge) {
	node := safeID(id)
	switch b := m.wf.Block(id).(type) {
	case *model.If:
		m.line(fmt.Sprintf(`%s{"%s"}`, node, escMermaid(b.Condition)))
		m.connect(in, node)
		_, yes := m.sequence([]edge{{node, "Ja"}}, b.Then)
		_, no := m.sequence([]edge{{node, "Nein"}}, b.Else)
		return node, append(yes, no...)
	case *model.RepeatWhile:
		m.line(fmt.Sprintf(`%s{"%s"}`, node, escMermaid(b.Condition)))
		m.connect(in, node)
		_, body := m.sequence([]edge{{node, "Ja"}}, b.Body)
		m.connect(body, node)
		return node, []edge{{node, "Nein"}}
	case *model.RepeatTimes:
		m.line(fmt.Sprintf(`%s{{"%d mal"}}`, node, b.Count))
		m.connect(in, node)
		_, body := m.sequence([]edge{{node, ""}}, b.Body)
		m.connect(body, node)
		return node, []edge{{node, "fertig"}}
	case *model.RepeatUntil:
		// The body runs before the first check.
		entry, body := m.sequence(in, b.Body)
		if entry == "" {
			entry = node
		}
		m.line(fmt.Sprintf(`%s{"%s"}`, node, escMermaid(b.Condition)))
		m.connect(body, node)
		m.connect([]edge{{node, "Nein"}}, entry)
		return entry, []edge{{node, "Ja"}}
	case *model.Parallel:
		m.line(fmt.Sprintf(`subgraph %s["%s (%d von %d)"]`, node, escMermaid(b.Text), b.Effective(), len(b.Tasks)))
		for _, t := range b.Tasks {
			m.line("    " + fmt.Sprintf(`%s["%s"]`, safeID(t), escMermaid(text(m.wf.Block(t)))))
		}
		m.line("end")
		m.connect(in, node)
		return node, []edge{{from: node}}
	case *model.Sleep:
		m.line(fmt.Sprintf(`%s(["%s"])`, node, escMermaid(b.DisplayText())))
	default:
		m.line(fmt.Sprintf(`%s["%s"]`, node, escMermaid(text(b))))
	}
	m.connect(in, node)
	return node, []edge{{from: node}}
}

func (m *mermaid) connect(in []edge, to string) {
	for _, e := range in {
		if e.label == "" {
			m.line(e.from + " --> " + to)
			continue
		}
		m.line(fmt.Sprintf("%s -->|%q| %s", e.from, e.label, to))
	}
}

func (m *mermaid) line(s string) {
	m.b.WriteString("    " + s + "\n")
}

// --- ASCII ---

func generateASCII(wf *model.Workflow) string {
	var b strings.Builder

	name := wf.Name
	if name == "" {
		name = "Workflow"
	}
	if len(wf.Root) == 0 {
		b.WriteString(name + " (leer)\n")
		return b.String()
	}

	boxes := make([][]string, len(wf.Root))
	for i, id := range wf.Root {
		boxes[i] = lines(wf, id, 0)
	}

	// Uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(boxes, name)
	connCol := indent + 1 + boxWidth/2
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)
	mid := boxWidth / 2

	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + centerPad(name, boxWidth) + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")

	for _, box := range boxes {
		b.WriteString(connPad + "│\n")
		b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
		for _, l := range box {
			content := " " + l
			b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-runewidth.StringWidth(content)) + "│\n")
		}
		b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
	}
	b.WriteString(connPad + "│\n")
	b.WriteString(strings.Repeat(" ", connCol-2) + "■ " + endNode + "\n")
	return b.String()
}

// lines renders one block and its children, indented by depth.
func lines(wf *model.Workflow, id string, depth int) []string {
	ind := strings.Repeat("  ", depth)
	children := func(ids []string, d int) []string {
		var out []string
		for _, c := range ids {
			out = append(out, lines(wf, c, d)...)
		}
		return out
	}

	switch b := wf.Block(id).(type) {
	case *model.If:
		out := []string{ind + icon(b.Kind()) + " " + b.Condition}
		out = append(out, ind+"  Ja:")
		out = append(out, children(b.Then, depth+2)...)
		if len(b.Else) > 0 {
			out = append(out, ind+"  Nein:")
			out = append(out, children(b.Else, depth+2)...)
		}
		return out
	case *model.RepeatWhile:
		return append([]string{ind + icon(b.Kind()) + " solange " + b.Condition}, children(b.Body, depth+1)...)
	case *model.RepeatUntil:
		return append([]string{ind + icon(b.Kind()) + " bis " + b.Condition}, children(b.Body, depth+1)...)
	case *model.RepeatTimes:
		return append([]string{fmt.Sprintf("%s%s %d mal", ind, icon(b.Kind()), b.Count)}, children(b.Body, depth+1)...)
	case *model.Parallel:
		out := []string{fmt.Sprintf("%s%s %s (%d von %d)", ind, icon(b.Kind()), b.Text, b.Effective(), len(b.Tasks))}
		return append(out, children(b.Tasks, depth+1)...)
	case nil:
		return []string{ind + "? " + id}
	default:
		return []string{ind + icon(b.Kind()) + " " + text(b)}
	}
}

// computeUniformBoxWidth returns the widest interior width needed
// across all boxes and the header name.
func computeUniformBoxWidth(boxes [][]string, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for _, box := range boxes {
		for _, l := range box {
			if lw := runewidth.StringWidth(l) + 2; lw > w {
				w = lw
			}
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func icon(k model.Kind) string {
	switch k {
	case model.KindTask:
		return "□"
	case model.KindIf:
		return "◇"
	case model.KindWhile, model.KindUntil, model.KindTimes:
		return "↻"
	case model.KindParallel:
		return "≡"
	case model.KindMiniTask:
		return "·"
	case model.KindSleep:
		return "◷"
	default:
		return "○"
	}
}

// --- string helpers ---

func text(b model.Block) string {
	if b == nil {
		return ""
	}
	return b.DisplayText()
}

// safeID prefixes block ids so they never collide with Mermaid keywords
// or the start and end nodes.
func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return "n_" + r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}
