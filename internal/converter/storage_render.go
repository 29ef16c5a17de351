package converter

import (
	"fmt"
	"net/url"
	"strings"
)

// allowedLinkSchemes mirrors the push-side link filter: anything else is
// rendered as plain text so a document cannot smuggle executable schemes
// into a page.
var allowedLinkSchemes = map[string]struct{}{
	"http":   {},
	"https":  {},
	"mailto": {},
}

// RenderStorage renders the document tree into Confluence storage-format
// markup. Rendering is total and deterministic; constructs the storage
// format cannot express are degraded and reported as warnings.
func RenderStorage(doc *Document) Result {
	renderer := &storageRenderer{}
	if doc != nil {
		for _, block := range doc.Blocks {
			renderer.writeBlock(block)
		}
	}
	return Result{Output: renderer.builder.String(), Warnings: renderer.warnings}
}

type storageRenderer struct {
	builder  strings.Builder
	warnings []Warning
}

func (r *storageRenderer) warn(location, message string) {
	r.warnings = append(r.warnings, Warning{Location: location, Message: message})
}

func (r *storageRenderer) writeBlock(block Block) {
	switch typed := block.(type) {
	case Heading:
		level := clampHeadingLevel(typed.Level)
		fmt.Fprintf(&r.builder, "<h%d>%s</h%d>\n", level, r.renderInlines(typed.Content), level)
	case Paragraph:
		r.builder.WriteString("<p>" + r.renderInlines(typed.Content) + "</p>\n")
	case List:
		r.writeList(typed)
	case CodeBlock:
		r.writeCodeMacro(typed.Language, typed.Text)
	case Table:
		r.writeTable(typed)
	case Raw:
		if typed.Format == RawFormatStorage {
			r.builder.WriteString(strings.TrimRight(typed.Text, "\n") + "\n")
			return
		}
		// Opaque content from the Markdown side has no storage-native
		// representation; carry it verbatim inside a code macro.
		r.warn("raw block", "opaque content rendered as a code macro")
		r.writeCodeMacro("text", typed.Text)
	}
}

func (r *storageRenderer) writeList(list List) {
	tag := "ul"
	if list.Ordered {
		tag = "ol"
	}
	r.builder.WriteString("<" + tag + ">")
	for _, item := range list.Items {
		r.builder.WriteString("<li>" + r.renderInlines(item.Content))
		if len(item.Blocks) > 0 {
			r.builder.WriteString("\n")
			for _, nested := range item.Blocks {
				r.writeBlock(nested)
			}
		}
		r.builder.WriteString("</li>")
	}
	r.builder.WriteString("</" + tag + ">\n")
}

// writeCodeMacro emits the Confluence structured code macro with the body
// wrapped in CDATA, preserving the text line for line.
func (r *storageRenderer) writeCodeMacro(language, text string) {
	if strings.TrimSpace(language) == "" {
		language = "text"
	}
	r.builder.WriteString(`<ac:structured-macro ac:name="code" ac:schema-version="1">`)
	r.builder.WriteString(`<ac:parameter ac:name="language">` + escapeText(language) + `</ac:parameter>`)
	r.builder.WriteString(`<ac:plain-text-body><![CDATA[` + escapeCDATA(text) + `]]></ac:plain-text-body>`)
	r.builder.WriteString("</ac:structured-macro>\n")
}

func (r *storageRenderer) writeTable(table Table) {
	r.builder.WriteString("<table><tbody>")
	for rowIndex, row := range table.Rows {
		cellTag := "td"
		if table.HasHeader && rowIndex == 0 {
			cellTag = "th"
		}
		r.builder.WriteString("<tr>")
		for _, cell := range row.Cells {
			r.builder.WriteString("<" + cellTag + ">" + r.renderInlines(cell) + "</" + cellTag + ">")
		}
		r.builder.WriteString("</tr>")
	}
	r.builder.WriteString("</tbody></table>\n")
}

func (r *storageRenderer) renderInlines(content []Inline) string {
	var builder strings.Builder
	for _, node := range content {
		switch typed := node.(type) {
		case Text:
			builder.WriteString(renderStyledText(typed))
		case Link:
			builder.WriteString(r.renderLink(typed))
		}
	}
	return builder.String()
}

func renderStyledText(run Text) string {
	rendered := escapeText(run.Text)
	if run.Code {
		rendered = "<code>" + rendered + "</code>"
	}
	if run.Italic {
		rendered = "<em>" + rendered + "</em>"
	}
	if run.Bold {
		rendered = "<strong>" + rendered + "</strong>"
	}
	return rendered
}

func (r *storageRenderer) renderLink(link Link) string {
	label := r.renderInlines(link.Content)
	href := strings.TrimSpace(link.Href)

	if !linkSchemeAllowed(href) {
		r.warn("link", "link with disallowed scheme degraded to text: "+href)
		return label
	}
	return `<a href="` + escapeAttribute(href) + `">` + label + `</a>`
}

func linkSchemeAllowed(href string) bool {
	if href == "" || strings.HasPrefix(href, "/") || strings.HasPrefix(href, "#") {
		return true
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return false
	}
	if parsed.Scheme == "" {
		return true
	}
	_, ok := allowedLinkSchemes[strings.ToLower(parsed.Scheme)]
	return ok
}

func escapeText(text string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	return replacer.Replace(text)
}

func escapeAttribute(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
	)
	return replacer.Replace(value)
}

// escapeCDATA splits any literal CDATA terminator so the body can never
// close the section early.
func escapeCDATA(text string) string {
	return strings.ReplaceAll(text, "]]>", "]]]]><![CDATA[>")
}
