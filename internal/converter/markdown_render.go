package converter

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders the document tree as Markdown. Like the storage
// renderer it is total: opaque storage content is carried inside a fenced
// block with a warning rather than dropped.
func RenderMarkdown(doc *Document) Result {
	renderer := &markdownRenderer{}
	var parts []string
	if doc != nil {
		for _, block := range doc.Blocks {
			rendered := renderer.renderBlock(block, "")
			if rendered != "" {
				parts = append(parts, rendered)
			}
		}
	}
	output := strings.Join(parts, "\n\n")
	if output != "" {
		output += "\n"
	}
	return Result{Output: output, Warnings: renderer.warnings}
}

type markdownRenderer struct {
	warnings []Warning
}

func (r *markdownRenderer) warn(location, message string) {
	r.warnings = append(r.warnings, Warning{Location: location, Message: message})
}

// renderBlock renders a single block with every line prefixed by indent,
// which carries the continuation indentation of enclosing list items.
func (r *markdownRenderer) renderBlock(block Block, indent string) string {
	switch typed := block.(type) {
	case Heading:
		return indent + strings.Repeat("#", clampHeadingLevel(typed.Level)) + " " + r.renderInlines(typed.Content)
	case Paragraph:
		rendered := r.renderInlines(typed.Content)
		if strings.TrimSpace(rendered) == "" {
			return ""
		}
		return indent + rendered
	case List:
		return r.renderList(typed, indent)
	case CodeBlock:
		return r.renderCodeBlock(typed, indent)
	case Table:
		return r.renderTable(typed, indent)
	case Raw:
		if typed.Format == RawFormatMarkdown {
			return indentLines(typed.Text, indent)
		}
		r.warn("raw block", "opaque content rendered as a fenced block")
		return r.renderCodeBlock(CodeBlock{Text: typed.Text}, indent)
	default:
		return ""
	}
}

func (r *markdownRenderer) renderList(list List, indent string) string {
	var lines []string
	for index, item := range list.Items {
		marker := "- "
		if list.Ordered {
			marker = fmt.Sprintf("%d. ", index+1)
		}
		lines = append(lines, indent+marker+r.renderInlines(item.Content))

		continuation := indent + strings.Repeat(" ", len(marker))
		for _, nested := range item.Blocks {
			rendered := r.renderBlock(nested, continuation)
			if rendered == "" {
				continue
			}
			// Nested non-list blocks need a separating blank line to stay
			// attached to the item.
			if _, isList := nested.(List); !isList {
				lines = append(lines, "")
				rendered += "\n"
			}
			lines = append(lines, rendered)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *markdownRenderer) renderCodeBlock(block CodeBlock, indent string) string {
	fence := codeFence(block.Text)
	var lines []string
	lines = append(lines, indent+fence+block.Language)
	for _, line := range strings.Split(strings.TrimRight(block.Text, "\n"), "\n") {
		lines = append(lines, indent+line)
	}
	lines = append(lines, indent+fence)
	return strings.Join(lines, "\n")
}

// codeFence picks a fence long enough that the body can never close it.
func codeFence(text string) string {
	longest := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		count := countLeading(trimmed, '`')
		if count > longest {
			longest = count
		}
	}
	if longest < 3 {
		longest = 3
	} else {
		longest++
	}
	return strings.Repeat("`", longest)
}

func (r *markdownRenderer) renderTable(table Table, indent string) string {
	if len(table.Rows) == 0 {
		return ""
	}

	columns := 0
	for _, row := range table.Rows {
		if len(row.Cells) > columns {
			columns = len(row.Cells)
		}
	}

	rows := table.Rows
	header := make([]string, columns)
	if table.HasHeader {
		for i, cell := range rows[0].Cells {
			header[i] = r.renderInlines(cell)
		}
		rows = rows[1:]
	} else {
		// GFM tables require a header row; synthesize an empty one.
		r.warn("table", "headerless table rendered with an empty header row")
	}

	var lines []string
	lines = append(lines, indent+tableLine(header))

	separator := make([]string, columns)
	for i := range separator {
		separator[i] = "---"
	}
	lines = append(lines, indent+tableLine(separator))

	for _, row := range rows {
		cells := make([]string, columns)
		for i := 0; i < columns; i++ {
			if i < len(row.Cells) {
				cells[i] = r.renderInlines(row.Cells[i])
			}
		}
		lines = append(lines, indent+tableLine(cells))
	}
	return strings.Join(lines, "\n")
}

func tableLine(cells []string) string {
	escaped := make([]string, len(cells))
	for i, cell := range cells {
		escaped[i] = strings.ReplaceAll(cell, "|", `\|`)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

// renderInlines normalizes whitespace between runs but leaves code spans
// untouched, since their interior spacing is significant.
func (r *markdownRenderer) renderInlines(content []Inline) string {
	var builder strings.Builder
	var pending strings.Builder
	flush := func() {
		builder.WriteString(normalizeSpace(pending.String()))
		pending.Reset()
	}
	for _, node := range content {
		switch typed := node.(type) {
		case Text:
			if typed.Code {
				flush()
				builder.WriteString(renderMarkdownText(typed))
				continue
			}
			pending.WriteString(renderMarkdownText(typed))
		case Link:
			pending.WriteString("[" + r.renderInlines(typed.Content) + "](" + typed.Href + ")")
		}
	}
	flush()
	return strings.TrimSpace(builder.String())
}

// renderMarkdownText wraps a run in emphasis markers. Markers hug the text,
// so boundary whitespace moves outside them.
func renderMarkdownText(run Text) string {
	text := run.Text
	if run.Code {
		return "`" + text + "`"
	}

	leading := text[:len(text)-len(strings.TrimLeft(text, " \t"))]
	trailing := text[len(strings.TrimRight(text, " \t")):]
	core := strings.TrimSpace(text)
	if core == "" {
		return text
	}
	if run.Italic {
		core = "*" + core + "*"
	}
	if run.Bold {
		core = "**" + core + "**"
	}
	return leading + core + trailing
}

func indentLines(text string, indent string) string {
	if indent == "" {
		return strings.TrimRight(text, "\n")
	}
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
