// Package document loads local Markdown documents, splitting optional YAML
// front matter from the body and resolving the page title.
package document

import (
	"bytes"
	"path/filepath"
	"sort"
	"strings"

	"github.com/adrg/frontmatter"

	"github.com/fbain/confluence-markdown-sync/internal/fs"
)

// Overrides carries the per-document front matter fields. Every field is
// optional; unset fields fall back to workspace configuration.
type Overrides struct {
	Title        string   `yaml:"title"`
	SpaceKey     string   `yaml:"space"`
	ParentPageID string   `yaml:"parent"`
	Labels       []string `yaml:"labels"`
}

// Document is a loaded local Markdown file with its front matter stripped.
type Document struct {
	LocalPath string
	Title     string
	Overrides Overrides
	Body      []byte
}

// Load reads a Markdown file relative to the workspace root. The title is
// resolved in order: front matter, first level-one heading, file name stem.
func Load(workspace *fs.SafeFS, localPath string) (*Document, error) {
	raw, err := workspace.ReadFile(localPath)
	if err != nil {
		return nil, err
	}
	return Parse(localPath, raw)
}

// Parse splits front matter from source and resolves the title. It never
// fails on a missing front matter block; only malformed YAML is an error.
func Parse(localPath string, source []byte) (*Document, error) {
	var overrides Overrides
	body, err := frontmatter.Parse(bytes.NewReader(source), &overrides)
	if err != nil {
		return nil, err
	}

	normalizeOverrides(&overrides)

	title := overrides.Title
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = titleFromPath(localPath)
	}

	return &Document{
		LocalPath: localPath,
		Title:     title,
		Overrides: overrides,
		Body:      body,
	}, nil
}

func normalizeOverrides(overrides *Overrides) {
	overrides.Title = strings.TrimSpace(overrides.Title)
	overrides.SpaceKey = strings.TrimSpace(overrides.SpaceKey)
	overrides.ParentPageID = strings.TrimSpace(overrides.ParentPageID)

	seen := make(map[string]struct{}, len(overrides.Labels))
	labels := overrides.Labels[:0]
	for _, label := range overrides.Labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		labels = append(labels, trimmed)
	}
	sort.Strings(labels)
	overrides.Labels = labels
}

// firstHeading returns the text of the first level-one ATX heading outside
// fenced code blocks.
func firstHeading(body []byte) string {
	inFence := false
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}
	return ""
}

func titleFromPath(localPath string) string {
	base := filepath.Base(localPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.ReplaceAll(stem, "-", " ")
	stem = strings.ReplaceAll(stem, "_", " ")
	return strings.TrimSpace(stem)
}
