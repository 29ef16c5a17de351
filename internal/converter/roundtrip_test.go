package converter

import (
	"strings"
	"testing"
)

func TestRoundTripMarkdownStorageMarkdown(t *testing.T) {
	testCases := []struct {
		name     string
		markdown string
	}{
		{
			name:     "heading",
			markdown: "## Title\n",
		},
		{
			name:     "paragraph with emphasis",
			markdown: "Hello **world**, this is *fine* and `code`.\n",
		},
		{
			name:     "multiple blocks",
			markdown: "# One\n\nFirst paragraph.\n\n## Two\n\nSecond paragraph with a [link](https://example.com/page).\n",
		},
		{
			name:     "unordered list",
			markdown: "- alpha\n- beta\n- gamma\n",
		},
		{
			name:     "ordered list",
			markdown: "1. first\n2. second\n3. third\n",
		},
		{
			name:     "nested list",
			markdown: "- outer\n  - inner one\n  - inner two\n- next\n",
		},
		{
			name:     "fenced code block",
			markdown: "```go\nfunc main() {\n\tprintln(\"hi\")\n}\n```\n",
		},
		{
			name:     "code block without language",
			markdown: "```\nplain text body\n```\n",
		},
		{
			name:     "table",
			markdown: "| Name | Value |\n| --- | --- |\n| a | 1 |\n| b | 2 |\n",
		},
		{
			name:     "mixed document",
			markdown: "# Guide\n\nIntro with **bold** text.\n\n- step one\n- step two\n\n```sh\nmake build\n```\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			original, _, err := ParseMarkdown([]byte(tc.markdown))
			if err != nil {
				t.Fatalf("ParseMarkdown: %v", err)
			}

			storage := RenderStorage(original)
			if len(storage.Warnings) != 0 {
				t.Fatalf("unexpected storage warnings: %v", storage.Warnings)
			}

			parsed, warnings, err := ParseStorage([]byte(storage.Output))
			if err != nil {
				t.Fatalf("ParseStorage: %v", err)
			}
			if len(warnings) != 0 {
				t.Fatalf("unexpected parse warnings: %v", warnings)
			}

			if !Equivalent(original, parsed) {
				t.Fatalf("tree changed across storage round trip\nmarkdown: %q\nstorage: %q", tc.markdown, storage.Output)
			}

			rendered := RenderMarkdown(parsed)
			final, _, err := ParseMarkdown([]byte(rendered.Output))
			if err != nil {
				t.Fatalf("ParseMarkdown after round trip: %v", err)
			}
			if !Equivalent(original, final) {
				t.Fatalf("tree changed across full round trip\nstarted: %q\nended:   %q", tc.markdown, rendered.Output)
			}
		})
	}
}

func TestRoundTripHeadingExactText(t *testing.T) {
	doc, _, err := ParseMarkdown([]byte("## Title\n"))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}

	storage := RenderStorage(doc)
	if !strings.Contains(storage.Output, "<h2>Title</h2>") {
		t.Fatalf("expected <h2>Title</h2> in storage output, got %q", storage.Output)
	}

	parsed, _, err := ParseStorage([]byte(storage.Output))
	if err != nil {
		t.Fatalf("ParseStorage: %v", err)
	}

	markdown := RenderMarkdown(parsed)
	if strings.TrimSpace(markdown.Output) != "## Title" {
		t.Fatalf("expected %q back, got %q", "## Title", markdown.Output)
	}
}

func TestRoundTripStorageMarkdownStorage(t *testing.T) {
	storage := `<h1>Overview</h1>
<p>Some <strong>bold</strong> and <em>italic</em> and <code>inline</code> text.</p>
<ul><li>one</li><li>two</li></ul>
<ac:structured-macro ac:name="code" ac:schema-version="1"><ac:parameter ac:name="language">python</ac:parameter><ac:plain-text-body><![CDATA[print("hello")]]></ac:plain-text-body></ac:structured-macro>
`

	original, warnings, err := ParseStorage([]byte(storage))
	if err != nil {
		t.Fatalf("ParseStorage: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	markdown := RenderMarkdown(original)
	parsed, _, err := ParseMarkdown([]byte(markdown.Output))
	if err != nil {
		t.Fatalf("ParseMarkdown: %v", err)
	}

	if !Equivalent(original, parsed) {
		t.Fatalf("tree changed across markdown round trip\nstorage:  %q\nmarkdown: %q", storage, markdown.Output)
	}
}

func TestEquivalentIgnoresWhitespaceAndRunBoundaries(t *testing.T) {
	a := &Document{Blocks: []Block{
		Paragraph{Content: []Inline{Text{Text: "hello   world"}}},
	}}
	b := &Document{Blocks: []Block{
		Paragraph{Content: []Inline{Text{Text: "hello "}, Text{Text: "world"}}},
	}}
	if !Equivalent(a, b) {
		t.Fatal("expected whitespace-normalized trees to be equivalent")
	}

	c := &Document{Blocks: []Block{
		Paragraph{Content: []Inline{Text{Text: "hello world", Bold: true}}},
	}}
	if Equivalent(a, c) {
		t.Fatal("expected differently styled trees to differ")
	}
}
