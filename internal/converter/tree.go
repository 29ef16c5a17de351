// Package converter implements the bidirectional content converter between
// Markdown and Confluence storage-format markup. Both directions share one
// intermediate document tree; parsing degrades unsupported constructs to the
// nearest supported node and records a warning instead of failing.
package converter

import "strings"

// Document is the format-agnostic tree shared by both converters. Rendering
// a Document is deterministic; the tree is finite and acyclic by
// construction.
type Document struct {
	Blocks []Block
}

// Block is the tagged-variant interface for block-level nodes.
type Block interface {
	block()
}

// Inline is the tagged-variant interface for inline nodes.
type Inline interface {
	inline()
}

// Heading levels are clamped to 1..6, never re-numbered.
type Heading struct {
	Level   int
	Content []Inline
}

type Paragraph struct {
	Content []Inline
}

type List struct {
	Ordered bool
	Items   []ListItem
}

// ListItem carries its leading inline content plus any nested blocks
// (sub-lists, code blocks).
type ListItem struct {
	Content []Inline
	Blocks  []Block
}

// CodeBlock preserves its text line for line.
type CodeBlock struct {
	Language string
	Text     string
}

type Table struct {
	HasHeader bool
	Rows      []TableRow
}

type TableRow struct {
	Cells [][]Inline
}

// Raw is the explicit opaque fallback node: content one format carries that
// the other cannot express. Format names the markup the text is written in.
type Raw struct {
	Format string
	Text   string
}

const (
	RawFormatStorage  = "storage"
	RawFormatMarkdown = "markdown"
)

// Text is a single inline run with emphasis flags.
type Text struct {
	Text   string
	Bold   bool
	Italic bool
	Code   bool
}

type Link struct {
	Href    string
	Content []Inline
}

func (Heading) block()   {}
func (Paragraph) block() {}
func (List) block()      {}
func (CodeBlock) block() {}
func (Table) block()     {}
func (Raw) block()       {}

func (Text) inline() {}
func (Link) inline() {}

// Warning records a construct that was degraded rather than rejected.
type Warning struct {
	Location string
	Message  string
}

// Result is the output of a render pass together with any degradation
// warnings collected along the way. Rendering itself never fails.
type Result struct {
	Output   string
	Warnings []Warning
}

// Equivalent reports whether two trees are semantically equal up to
// whitespace normalization of text runs. It backs the round-trip guarantee:
// md -> storage -> md must stay tree-equivalent for the supported set.
func Equivalent(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return blocksEquivalent(a.Blocks, b.Blocks)
}

func blocksEquivalent(a, b []Block) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !blockEquivalent(a[i], b[i]) {
			return false
		}
	}
	return true
}

func blockEquivalent(a, b Block) bool {
	switch left := a.(type) {
	case Heading:
		right, ok := b.(Heading)
		return ok && left.Level == right.Level && inlinesEquivalent(left.Content, right.Content)
	case Paragraph:
		right, ok := b.(Paragraph)
		return ok && inlinesEquivalent(left.Content, right.Content)
	case List:
		right, ok := b.(List)
		if !ok || left.Ordered != right.Ordered || len(left.Items) != len(right.Items) {
			return false
		}
		for i := range left.Items {
			if !inlinesEquivalent(left.Items[i].Content, right.Items[i].Content) {
				return false
			}
			if !blocksEquivalent(left.Items[i].Blocks, right.Items[i].Blocks) {
				return false
			}
		}
		return true
	case CodeBlock:
		right, ok := b.(CodeBlock)
		return ok && left.Language == right.Language && strings.TrimRight(left.Text, "\n") == strings.TrimRight(right.Text, "\n")
	case Table:
		right, ok := b.(Table)
		if !ok || left.HasHeader != right.HasHeader || len(left.Rows) != len(right.Rows) {
			return false
		}
		for i := range left.Rows {
			if len(left.Rows[i].Cells) != len(right.Rows[i].Cells) {
				return false
			}
			for j := range left.Rows[i].Cells {
				if !inlinesEquivalent(left.Rows[i].Cells[j], right.Rows[i].Cells[j]) {
					return false
				}
			}
		}
		return true
	case Raw:
		right, ok := b.(Raw)
		return ok && left.Format == right.Format && normalizeSpace(left.Text) == normalizeSpace(right.Text)
	default:
		return false
	}
}

// inlinesEquivalent compares flattened styled text so that differing run
// boundaries ("ab" vs "a"+"b") do not break equivalence.
func inlinesEquivalent(a, b []Inline) bool {
	return strings.TrimSpace(flattenInlines(a)) == strings.TrimSpace(flattenInlines(b))
}

func flattenInlines(content []Inline) string {
	var builder strings.Builder
	for _, node := range content {
		switch typed := node.(type) {
		case Text:
			builder.WriteString(styleMarker(typed))
			builder.WriteString(normalizeSpace(typed.Text))
			builder.WriteString("\x00")
		case Link:
			builder.WriteString("link(")
			builder.WriteString(typed.Href)
			builder.WriteString(")[")
			builder.WriteString(flattenInlines(typed.Content))
			builder.WriteString("]")
		}
	}
	return collapseRunBreaks(builder.String())
}

func styleMarker(run Text) string {
	marker := ""
	if run.Bold {
		marker += "b"
	}
	if run.Italic {
		marker += "i"
	}
	if run.Code {
		marker += "c"
	}
	if marker == "" {
		return ""
	}
	return "\x01" + marker + "\x01"
}

// collapseRunBreaks removes separators between runs that carry no style
// change, merging adjacent plain runs.
func collapseRunBreaks(flat string) string {
	return strings.ReplaceAll(flat, "\x00", "")
}

// normalizeSpace collapses whitespace runs to single spaces while keeping
// boundary spaces, so run segmentation does not change the flattened form.
func normalizeSpace(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		if strings.TrimSpace(text) == "" && text != "" {
			return " "
		}
		return ""
	}
	if strings.HasPrefix(text, " ") || strings.HasPrefix(text, "\t") || strings.HasPrefix(text, "\n") {
		collapsed = " " + collapsed
	}
	if strings.HasSuffix(text, " ") || strings.HasSuffix(text, "\t") || strings.HasSuffix(text, "\n") {
		collapsed += " "
	}
	return collapsed
}
