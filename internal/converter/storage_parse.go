package converter

import (
	"encoding/xml"
	"io"
	"strings"
)

// ParseStorage parses Confluence storage-format markup into the shared
// document tree. Constructs without a Markdown equivalent degrade to the
// nearest supported node (unknown macros become opaque Raw nodes) and emit
// warnings; the parse fails only when the markup itself cannot be tokenized.
func ParseStorage(source []byte) (*Document, []Warning, error) {
	// Storage payloads are fragments with multiple roots, so wrap them.
	wrapped := "<cmt-root>" + string(source) + "</cmt-root>"

	decoder := xml.NewDecoder(strings.NewReader(wrapped))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity

	parser := &storageParser{decoder: decoder}

	if err := parser.expectRootStart(); err != nil {
		return nil, nil, err
	}

	blocks, err := parser.parseBlocks()
	if err != nil {
		return nil, nil, err
	}
	return &Document{Blocks: blocks}, parser.warnings, nil
}

type storageParser struct {
	decoder  *xml.Decoder
	warnings []Warning
}

func (p *storageParser) warn(location, message string) {
	p.warnings = append(p.warnings, Warning{Location: location, Message: message})
}

func (p *storageParser) malformed(err error) error {
	return &Error{Code: ErrorCodeMalformedStorage, Message: "malformed storage markup", Err: err}
}

func (p *storageParser) expectRootStart() error {
	for {
		token, err := p.decoder.Token()
		if err != nil {
			return p.malformed(err)
		}
		if start, ok := token.(xml.StartElement); ok && start.Name.Local == "cmt-root" {
			return nil
		}
	}
}

// parseBlocks consumes tokens until the end of the enclosing element,
// flushing loose inline content into implicit paragraphs.
func (p *storageParser) parseBlocks() ([]Block, error) {
	var blocks []Block
	var pending []Inline

	flush := func() {
		if len(pending) == 0 {
			return
		}
		if !inlineContentEmpty(pending) {
			blocks = append(blocks, Paragraph{Content: pending})
		}
		pending = nil
	}

	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			flush()
			return blocks, nil
		}
		if err != nil {
			return nil, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			name := typed.Name.Local
			switch {
			case isHeadingTag(name):
				flush()
				content, err := p.parseInlines(inlineStyle{})
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, Heading{Level: headingLevel(name), Content: content})
			case name == "p":
				flush()
				content, err := p.parseInlines(inlineStyle{})
				if err != nil {
					return nil, err
				}
				if !inlineContentEmpty(content) {
					blocks = append(blocks, Paragraph{Content: content})
				}
			case name == "ul" || name == "ol":
				flush()
				list, err := p.parseList(name == "ol")
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, list)
			case name == "table":
				flush()
				table, err := p.parseTable()
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, table)
			case name == "structured-macro":
				flush()
				block, err := p.parseMacro(typed)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, block)
			case name == "pre":
				flush()
				text, err := p.collectText()
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, CodeBlock{Text: strings.TrimRight(text, "\n")})
			case name == "hr":
				flush()
				p.warn("hr", "horizontal rule degraded to a paragraph")
				blocks = append(blocks, Paragraph{Content: []Inline{Text{Text: "---"}}})
				if err := p.skipElement(); err != nil {
					return nil, err
				}
			case name == "blockquote" || name == "div":
				flush()
				if name == "blockquote" {
					p.warn(name, "blockquote degraded to plain paragraphs")
				}
				nested, err := p.parseBlocks()
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, nested...)
			case isInlineTag(name):
				// Loose inline markup at block level joins the pending
				// implicit paragraph.
				inline, err := p.parseInlineElement(typed, inlineStyle{})
				if err != nil {
					return nil, err
				}
				pending = append(pending, inline...)
			default:
				flush()
				p.warn(name, "unsupported element degraded to its inner content")
				nested, err := p.parseBlocks()
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, nested...)
			}
		case xml.CharData:
			text := string(typed)
			if strings.TrimSpace(text) != "" {
				pending = append(pending, Text{Text: collapseWhitespace(text)})
			}
		case xml.EndElement:
			flush()
			return blocks, nil
		}
	}
}

// parseInlines consumes the children of the just-opened element until its
// end tag, applying the accumulated style to every text run.
func (p *storageParser) parseInlines(style inlineStyle) ([]Inline, error) {
	var content []Inline
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return content, nil
		}
		if err != nil {
			return nil, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			inline, err := p.parseInlineElement(typed, style)
			if err != nil {
				return nil, err
			}
			content = append(content, inline...)
		case xml.CharData:
			text := string(typed)
			if text != "" {
				content = append(content, Text{
					Text:   collapseWhitespace(text),
					Bold:   style.bold,
					Italic: style.italic,
					Code:   style.code,
				})
			}
		case xml.EndElement:
			return content, nil
		}
	}
}

func (p *storageParser) parseInlineElement(start xml.StartElement, style inlineStyle) ([]Inline, error) {
	switch start.Name.Local {
	case "strong", "b":
		nested := style
		nested.bold = true
		return p.parseInlines(nested)
	case "em", "i":
		nested := style
		nested.italic = true
		return p.parseInlines(nested)
	case "code":
		nested := style
		nested.code = true
		return p.parseInlines(nested)
	case "a":
		href := attributeValue(start, "href")
		content, err := p.parseInlines(inlineStyle{})
		if err != nil {
			return nil, err
		}
		return []Inline{Link{Href: href, Content: content}}, nil
	case "br":
		if err := p.skipElement(); err != nil {
			return nil, err
		}
		return []Inline{Text{Text: " ", Bold: style.bold, Italic: style.italic, Code: style.code}}, nil
	case "img":
		p.warn("img", "image degraded to a link")
		src := attributeValue(start, "src")
		alt := attributeValue(start, "alt")
		if alt == "" {
			alt = src
		}
		if err := p.skipElement(); err != nil {
			return nil, err
		}
		return []Inline{Link{Href: src, Content: []Inline{Text{Text: alt}}}}, nil
	case "link":
		// Confluence internal page link; keep the visible text only.
		p.warn("ac:link", "internal page link degraded to plain text")
		text, err := p.collectText()
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []Inline{Text{Text: collapseWhitespace(text)}}, nil
	default:
		p.warn(start.Name.Local, "unsupported inline element degraded to its inner content")
		return p.parseInlines(style)
	}
}

func (p *storageParser) parseList(ordered bool) (List, error) {
	list := List{Ordered: ordered}
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return list, nil
		}
		if err != nil {
			return List{}, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			if typed.Name.Local == "li" {
				item, err := p.parseListItem()
				if err != nil {
					return List{}, err
				}
				list.Items = append(list.Items, item)
				continue
			}
			if err := p.skipElement(); err != nil {
				return List{}, err
			}
		case xml.EndElement:
			return list, nil
		}
	}
}

func (p *storageParser) parseListItem() (ListItem, error) {
	item := ListItem{}
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return item, nil
		}
		if err != nil {
			return ListItem{}, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			switch typed.Name.Local {
			case "ul", "ol":
				nested, err := p.parseList(typed.Name.Local == "ol")
				if err != nil {
					return ListItem{}, err
				}
				item.Blocks = append(item.Blocks, nested)
			case "p":
				content, err := p.parseInlines(inlineStyle{})
				if err != nil {
					return ListItem{}, err
				}
				if len(item.Content) == 0 && len(item.Blocks) == 0 {
					item.Content = content
				} else {
					item.Blocks = append(item.Blocks, Paragraph{Content: content})
				}
			case "structured-macro":
				block, err := p.parseMacro(typed)
				if err != nil {
					return ListItem{}, err
				}
				item.Blocks = append(item.Blocks, block)
			default:
				inline, err := p.parseInlineElement(typed, inlineStyle{})
				if err != nil {
					return ListItem{}, err
				}
				item.Content = append(item.Content, inline...)
			}
		case xml.CharData:
			text := string(typed)
			if strings.TrimSpace(text) != "" {
				item.Content = append(item.Content, Text{Text: collapseWhitespace(text)})
			}
		case xml.EndElement:
			return item, nil
		}
	}
}

func (p *storageParser) parseTable() (Table, error) {
	table := Table{}
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return table, nil
		}
		if err != nil {
			return Table{}, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			switch typed.Name.Local {
			case "thead", "tbody":
				// Transparent: rows are handled uniformly below.
			case "tr":
				row, header, err := p.parseTableRow()
				if err != nil {
					return Table{}, err
				}
				if header && len(table.Rows) == 0 {
					table.HasHeader = true
				}
				table.Rows = append(table.Rows, row)
			default:
				if err := p.skipElement(); err != nil {
					return Table{}, err
				}
			}
		case xml.EndElement:
			if typed.Name.Local == "table" {
				return table, nil
			}
		}
	}
}

func (p *storageParser) parseTableRow() (TableRow, bool, error) {
	row := TableRow{}
	header := false
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return row, header, nil
		}
		if err != nil {
			return TableRow{}, false, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			switch typed.Name.Local {
			case "th", "td":
				if typed.Name.Local == "th" {
					header = true
				}
				content, err := p.parseInlines(inlineStyle{})
				if err != nil {
					return TableRow{}, false, err
				}
				row.Cells = append(row.Cells, content)
			default:
				if err := p.skipElement(); err != nil {
					return TableRow{}, false, err
				}
			}
		case xml.EndElement:
			return row, header, nil
		}
	}
}

// parseMacro handles ac:structured-macro elements. The code macro maps to a
// CodeBlock; any other macro is captured as an opaque Raw node.
func (p *storageParser) parseMacro(start xml.StartElement) (Block, error) {
	macroName := attributeValue(start, "name")
	if macroName == "code" {
		return p.parseCodeMacro()
	}

	p.warn("ac:structured-macro", "unsupported macro "+macroName+" carried as opaque content")
	raw, err := p.reconstructElement(start)
	if err != nil {
		return nil, err
	}
	return Raw{Format: RawFormatStorage, Text: raw}, nil
}

func (p *storageParser) parseCodeMacro() (Block, error) {
	block := CodeBlock{}
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return block, nil
		}
		if err != nil {
			return nil, p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			switch typed.Name.Local {
			case "parameter":
				parameter := attributeValue(typed, "name")
				value, err := p.collectText()
				if err != nil {
					return nil, err
				}
				if parameter == "language" {
					block.Language = strings.TrimSpace(value)
				}
			case "plain-text-body":
				value, err := p.collectText()
				if err != nil {
					return nil, err
				}
				block.Text = strings.TrimRight(value, "\n")
			default:
				if err := p.skipElement(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			if block.Language == "text" {
				block.Language = ""
			}
			return block, nil
		}
	}
}

// collectText consumes the just-opened element and returns its concatenated
// character data, including nested elements' text.
func (p *storageParser) collectText() (string, error) {
	var builder strings.Builder
	depth := 0
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return builder.String(), nil
		}
		if err != nil {
			return "", p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			depth++
		case xml.CharData:
			builder.Write([]byte(typed))
		case xml.EndElement:
			if depth == 0 {
				return builder.String(), nil
			}
			depth--
		}
	}
}

// skipElement consumes the just-opened element entirely.
func (p *storageParser) skipElement() error {
	depth := 0
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return p.malformed(err)
		}

		switch token.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

// reconstructElement rebuilds an approximate textual form of the
// just-opened element, used to carry unknown macros opaquely.
func (p *storageParser) reconstructElement(start xml.StartElement) (string, error) {
	var builder strings.Builder
	writeStartTag(&builder, start)

	depth := 0
	for {
		token, err := p.decoder.Token()
		if err == io.EOF {
			return builder.String(), nil
		}
		if err != nil {
			return "", p.malformed(err)
		}

		switch typed := token.(type) {
		case xml.StartElement:
			writeStartTag(&builder, typed)
			depth++
		case xml.CharData:
			builder.WriteString(escapeText(string(typed)))
		case xml.EndElement:
			if depth == 0 {
				builder.WriteString("</" + qualifiedName(typed.Name) + ">")
				return builder.String(), nil
			}
			builder.WriteString("</" + qualifiedName(typed.Name) + ">")
			depth--
		}
	}
}

func writeStartTag(builder *strings.Builder, start xml.StartElement) {
	builder.WriteString("<" + qualifiedName(start.Name))
	for _, attr := range start.Attr {
		builder.WriteString(" " + qualifiedName(attr.Name) + `="` + escapeAttribute(attr.Value) + `"`)
	}
	builder.WriteString(">")
}

func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func attributeValue(start xml.StartElement, local string) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == local {
			return strings.TrimSpace(attr.Value)
		}
	}
	return ""
}

func isHeadingTag(name string) bool {
	return len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6'
}

func headingLevel(name string) int {
	return int(name[1] - '0')
}

func isInlineTag(name string) bool {
	switch name {
	case "strong", "b", "em", "i", "code", "a", "br", "img", "span", "link":
		return true
	}
	return false
}

func inlineContentEmpty(content []Inline) bool {
	for _, node := range content {
		switch typed := node.(type) {
		case Text:
			if strings.TrimSpace(typed.Text) != "" {
				return false
			}
		case Link:
			return false
		}
	}
	return true
}

// collapseWhitespace folds newlines and tabs from pretty-printed markup into
// single spaces, matching HTML whitespace semantics.
func collapseWhitespace(text string) string {
	return normalizeSpace(text)
}
