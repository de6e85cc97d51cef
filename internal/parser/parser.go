// Package parser reads notes that carry a YAML front matter block with a
// title and tags.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/contextual/internal/models"
)

// Note is the result of parsing a front-matter note.
type Note struct {
	Title string
	Tags  []models.Tag
	Body  string
}

type frontMatter struct {
	Title string   `yaml:"title"`
	Tags  []string `yaml:"tags"`
}

// Parse splits data into front matter and body. Tags from the front matter
// are manual tags with normalized names. Without front matter the whole
// input is the body and the title is its first non-blank line.
func Parse(data []byte) (*Note, error) {
	block, body, ok := splitFrontMatter(data)
	if !ok {
		return &Note{Title: firstLine(body), Body: body}, nil
	}

	var fm frontMatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, fmt.Errorf("parser: front matter: %w", err)
	}
	tags, err := models.ManualTags(fm.Tags)
	if err != nil {
		return nil, fmt.Errorf("parser: tags: %w", err)
	}

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = firstLine(body)
	}
	return &Note{Title: title, Tags: models.SortDedup(tags), Body: body}, nil
}

// splitFrontMatter separates YAML between leading --- delimiters from the
// body.
func splitFrontMatter(data []byte) ([]byte, string, bool) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), false
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), false
	}

	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")
	return rest[:idx], body, true
}

func firstLine(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
