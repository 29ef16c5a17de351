package converter

import (
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// newMarkdownEngine builds the goldmark instance shared by every parse. The
// engine is stateless, so a single package-level instance is safe.
func newMarkdownEngine() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(
			extension.Table,
			extension.Strikethrough,
		),
	)
}

var markdownEngine = newMarkdownEngine()

// ParseMarkdown parses Markdown into the shared document tree. It fails only
// on structurally malformed input (an unterminated fenced code block);
// unsupported constructs degrade to the nearest supported node and emit a
// warning.
func ParseMarkdown(source []byte) (*Document, []Warning, error) {
	if err := checkFences(source); err != nil {
		return nil, nil, err
	}

	root := markdownEngine.Parser().Parse(text.NewReader(source))

	builder := &markdownTreeBuilder{source: source}
	blocks := builder.buildBlocks(root)
	return &Document{Blocks: blocks}, builder.warnings, nil
}

// checkFences rejects documents whose last fenced code block is never
// closed. Goldmark silently auto-closes these, which would hide a truncated
// document from the author.
func checkFences(source []byte) error {
	var fenceChar byte
	fenceLen := 0
	openLine := 0

	for lineNumber, line := range strings.Split(string(source), "\n") {
		trimmed := strings.TrimSpace(line)
		if fenceLen == 0 {
			if len(trimmed) >= 3 && (trimmed[0] == '`' || trimmed[0] == '~') {
				marker := trimmed[0]
				count := countLeading(trimmed, marker)
				if count >= 3 {
					fenceChar = marker
					fenceLen = count
					openLine = lineNumber + 1
				}
			}
			continue
		}

		if countLeading(trimmed, fenceChar) >= fenceLen && strings.Trim(trimmed, string(fenceChar)) == "" {
			fenceLen = 0
		}
	}

	if fenceLen != 0 {
		return &Error{
			Code:     ErrorCodeUnterminatedFence,
			Location: lineLocation(openLine),
			Message:  "unterminated fenced code block",
		}
	}
	return nil
}

func countLeading(line string, marker byte) int {
	count := 0
	for count < len(line) && line[count] == marker {
		count++
	}
	return count
}

func lineLocation(line int) string {
	return "line " + strconv.Itoa(line)
}

type markdownTreeBuilder struct {
	source   []byte
	warnings []Warning
}

func (b *markdownTreeBuilder) warn(location, message string) {
	b.warnings = append(b.warnings, Warning{Location: location, Message: message})
}

func (b *markdownTreeBuilder) buildBlocks(parent ast.Node) []Block {
	var blocks []Block
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		blocks = append(blocks, b.buildBlock(child)...)
	}
	return blocks
}

func (b *markdownTreeBuilder) buildBlock(node ast.Node) []Block {
	switch typed := node.(type) {
	case *ast.Heading:
		return []Block{Heading{Level: clampHeadingLevel(typed.Level), Content: b.buildInlines(typed, inlineStyle{})}}
	case *ast.Paragraph:
		return []Block{Paragraph{Content: b.buildInlines(typed, inlineStyle{})}}
	case *ast.TextBlock:
		return []Block{Paragraph{Content: b.buildInlines(typed, inlineStyle{})}}
	case *ast.FencedCodeBlock:
		return []Block{CodeBlock{
			Language: string(typed.Language(b.source)),
			Text:     b.linesText(typed),
		}}
	case *ast.CodeBlock:
		return []Block{CodeBlock{Text: b.linesText(typed)}}
	case *ast.List:
		return []Block{b.buildList(typed)}
	case *east.Table:
		return []Block{b.buildTable(typed)}
	case *ast.Blockquote:
		b.warn("blockquote", "blockquote degraded to plain paragraphs")
		return b.buildBlocks(typed)
	case *ast.ThematicBreak:
		b.warn("thematic break", "thematic break degraded to a paragraph")
		return []Block{Paragraph{Content: []Inline{Text{Text: "---"}}}}
	case *ast.HTMLBlock:
		b.warn("html block", "raw HTML block carried as opaque content")
		return []Block{Raw{Format: RawFormatMarkdown, Text: b.htmlBlockText(typed)}}
	default:
		b.warn(node.Kind().String(), "unsupported block degraded to a paragraph")
		return []Block{Paragraph{Content: b.buildInlines(node, inlineStyle{})}}
	}
}

func clampHeadingLevel(level int) int {
	if level < 1 {
		return 1
	}
	if level > 6 {
		return 6
	}
	return level
}

func (b *markdownTreeBuilder) buildList(node *ast.List) List {
	list := List{Ordered: node.IsOrdered()}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		item, ok := child.(*ast.ListItem)
		if !ok {
			continue
		}
		list.Items = append(list.Items, b.buildListItem(item))
	}
	return list
}

func (b *markdownTreeBuilder) buildListItem(node *ast.ListItem) ListItem {
	item := ListItem{}
	first := true
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch child.(type) {
		case *ast.TextBlock, *ast.Paragraph:
			if first {
				item.Content = b.buildInlines(child, inlineStyle{})
				first = false
				continue
			}
		}
		first = false
		item.Blocks = append(item.Blocks, b.buildBlock(child)...)
	}
	return item
}

func (b *markdownTreeBuilder) buildTable(node *east.Table) Table {
	table := Table{}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch row := child.(type) {
		case *east.TableHeader:
			table.HasHeader = true
			table.Rows = append(table.Rows, b.buildTableRow(row))
		case *east.TableRow:
			table.Rows = append(table.Rows, b.buildTableRow(row))
		}
	}
	return table
}

func (b *markdownTreeBuilder) buildTableRow(node ast.Node) TableRow {
	row := TableRow{}
	for cell := node.FirstChild(); cell != nil; cell = cell.NextSibling() {
		row.Cells = append(row.Cells, b.buildInlines(cell, inlineStyle{}))
	}
	return row
}

type inlineStyle struct {
	bold   bool
	italic bool
	code   bool
}

func (b *markdownTreeBuilder) buildInlines(parent ast.Node, style inlineStyle) []Inline {
	var content []Inline
	for child := parent.FirstChild(); child != nil; child = child.NextSibling() {
		content = append(content, b.buildInline(child, style)...)
	}
	return content
}

func (b *markdownTreeBuilder) buildInline(node ast.Node, style inlineStyle) []Inline {
	switch typed := node.(type) {
	case *ast.Text:
		segment := typed.Segment.Value(b.source)
		text := string(segment)
		if typed.SoftLineBreak() || typed.HardLineBreak() {
			text += " "
		}
		return []Inline{b.styledText(text, style)}
	case *ast.String:
		return []Inline{b.styledText(string(typed.Value), style)}
	case *ast.Emphasis:
		nested := style
		if typed.Level >= 2 {
			nested.bold = true
		} else {
			nested.italic = true
		}
		return b.buildInlines(typed, nested)
	case *ast.CodeSpan:
		nested := style
		nested.code = true
		return []Inline{b.styledText(b.codeSpanText(typed), nested)}
	case *ast.Link:
		return []Inline{Link{
			Href:    string(typed.Destination),
			Content: b.buildInlines(typed, inlineStyle{}),
		}}
	case *ast.AutoLink:
		url := string(typed.URL(b.source))
		return []Inline{Link{Href: url, Content: []Inline{Text{Text: url}}}}
	case *ast.Image:
		b.warn("image", "image degraded to a link")
		return []Inline{Link{
			Href:    string(typed.Destination),
			Content: b.buildInlines(typed, inlineStyle{}),
		}}
	case *ast.RawHTML:
		b.warn("raw html", "inline HTML degraded to plain text")
		return []Inline{b.styledText(b.segmentsText(typed.Segments), style)}
	case *east.Strikethrough:
		b.warn("strikethrough", "strikethrough degraded to plain text")
		return b.buildInlines(typed, style)
	default:
		if node.ChildCount() > 0 {
			return b.buildInlines(node, style)
		}
		return nil
	}
}

func (b *markdownTreeBuilder) styledText(value string, style inlineStyle) Text {
	return Text{Text: value, Bold: style.bold, Italic: style.italic, Code: style.code}
}

func (b *markdownTreeBuilder) codeSpanText(node *ast.CodeSpan) string {
	var builder strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if typed, ok := child.(*ast.Text); ok {
			builder.Write(typed.Segment.Value(b.source))
		}
	}
	return builder.String()
}

func (b *markdownTreeBuilder) linesText(node interface {
	Lines() *text.Segments
}) string {
	var builder strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		builder.Write(line.Value(b.source))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func (b *markdownTreeBuilder) htmlBlockText(node *ast.HTMLBlock) string {
	var builder strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		builder.Write(line.Value(b.source))
	}
	if node.HasClosure() {
		builder.Write(node.ClosureLine.Value(b.source))
	}
	return strings.TrimRight(builder.String(), "\n")
}

func (b *markdownTreeBuilder) segmentsText(segments *text.Segments) string {
	var builder strings.Builder
	for i := 0; i < segments.Len(); i++ {
		segment := segments.At(i)
		builder.Write(segment.Value(b.source))
	}
	return builder.String()
}
