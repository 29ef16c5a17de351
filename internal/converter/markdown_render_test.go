package converter

import (
	"strings"
	"testing"
)

func TestRenderMarkdownBlocks(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Heading{Level: 2, Content: []Inline{Text{Text: "Title"}}},
		Paragraph{Content: []Inline{
			Text{Text: "plain "},
			Text{Text: "bold", Bold: true},
			Text{Text: " and "},
			Text{Text: "code", Code: true},
		}},
		List{Items: []ListItem{
			{Content: []Inline{Text{Text: "one"}}},
			{Content: []Inline{Text{Text: "two"}}},
		}},
	}}

	output := RenderMarkdown(doc).Output
	want := "## Title\n\nplain **bold** and `code`\n\n- one\n- two\n"
	if output != want {
		t.Fatalf("output = %q, want %q", output, want)
	}
}

func TestRenderMarkdownKeepsSpacingInsideCodeSpans(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Paragraph{Content: []Inline{
			Text{Text: "run  "},
			Text{Text: "a  b", Code: true},
			Text{Text: "  to\tsee"},
		}},
	}}

	output := RenderMarkdown(doc).Output
	want := "run `a  b` to see\n"
	if output != want {
		t.Fatalf("output = %q, want %q", output, want)
	}

	parsed, _, err := ParseMarkdown([]byte(output))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	paragraph, ok := parsed.Blocks[0].(Paragraph)
	if !ok {
		t.Fatalf("expected a paragraph, got %#v", parsed.Blocks[0])
	}
	found := false
	for _, node := range paragraph.Content {
		if run, ok := node.(Text); ok && run.Code {
			found = true
			if run.Text != "a  b" {
				t.Fatalf("code span spacing not preserved: %q", run.Text)
			}
		}
	}
	if !found {
		t.Fatal("code span lost in round trip")
	}
}

func TestRenderMarkdownOrderedList(t *testing.T) {
	doc := &Document{Blocks: []Block{
		List{Ordered: true, Items: []ListItem{
			{Content: []Inline{Text{Text: "first"}}},
			{Content: []Inline{Text{Text: "second"}}},
		}},
	}}

	output := RenderMarkdown(doc).Output
	if !strings.Contains(output, "1. first") || !strings.Contains(output, "2. second") {
		t.Fatalf("ordered list not numbered: %q", output)
	}
}

func TestRenderMarkdownNestedList(t *testing.T) {
	doc := &Document{Blocks: []Block{
		List{Items: []ListItem{
			{
				Content: []Inline{Text{Text: "outer"}},
				Blocks: []Block{List{Items: []ListItem{
					{Content: []Inline{Text{Text: "inner"}}},
				}}},
			},
		}},
	}}

	output := RenderMarkdown(doc).Output
	if !strings.Contains(output, "- outer\n  - inner") {
		t.Fatalf("nested item not indented under its parent: %q", output)
	}
}

func TestRenderMarkdownCodeFencePicksLongerFence(t *testing.T) {
	doc := &Document{Blocks: []Block{
		CodeBlock{Text: "```\nnested fence\n```"},
	}}

	output := RenderMarkdown(doc).Output
	if !strings.HasPrefix(output, "````") {
		t.Fatalf("fence must outsize the body, got %q", output)
	}

	parsed, _, err := ParseMarkdown([]byte(output))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}
	code, ok := parsed.Blocks[0].(CodeBlock)
	if !ok || code.Text != "```\nnested fence\n```" {
		t.Fatalf("body not preserved: %#v", parsed.Blocks[0])
	}
}

func TestRenderMarkdownTableWithoutHeader(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Table{Rows: []TableRow{
			{Cells: [][]Inline{{Text{Text: "a"}}, {Text{Text: "b"}}}},
		}},
	}}

	result := RenderMarkdown(doc)
	if len(result.Warnings) == 0 {
		t.Fatal("headerless table must warn")
	}
	lines := strings.Split(strings.TrimSpace(result.Output), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected synthesized header, separator and one row, got %q", result.Output)
	}
	if !strings.Contains(lines[1], "---") {
		t.Fatalf("missing separator row: %q", result.Output)
	}
}

func TestRenderMarkdownEscapesTableCells(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Table{HasHeader: true, Rows: []TableRow{
			{Cells: [][]Inline{{Text{Text: "a|b"}}}},
			{Cells: [][]Inline{{Text{Text: "c"}}}},
		}},
	}}

	output := RenderMarkdown(doc).Output
	if !strings.Contains(output, `a\|b`) {
		t.Fatalf("pipe in cell not escaped: %q", output)
	}
}

func TestRenderMarkdownOpaqueStorageBlock(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Raw{Format: RawFormatStorage, Text: `<ac:structured-macro ac:name="toc"></ac:structured-macro>`},
	}}

	result := RenderMarkdown(doc)
	if !strings.HasPrefix(result.Output, "```") {
		t.Fatalf("opaque content must render as a fenced block, got %q", result.Output)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a degradation warning")
	}
}
