// Package docs serves embedded documentation topics, rendered as rich
// markdown on capable terminals.
package docs

import (
	"embed"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/dotup-sh/dotup/pkg/errors"
)

//go:embed topics/*.md
var topicFiles embed.FS

// Topics returns the available topic names, sorted.
func Topics() []string {
	entries, err := topicFiles.ReadDir("topics")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".md"))
	}
	sort.Strings(names)
	return names
}

// Render returns the named topic rendered for the terminal. When rendering
// is not possible the raw markdown is returned instead.
func Render(name string) (string, error) {
	content, err := topicFiles.ReadFile("topics/" + name + ".md")
	if err != nil {
		return "", errors.Newf(errors.ErrNotFound,
			"unknown topic %q (available: %s)", name, strings.Join(Topics(), ", "))
	}

	options := []glamour.TermRendererOption{glamour.WithWordWrap(80)}
	if termenv.HasDarkBackground() {
		options = append(options, glamour.WithStandardStyle("dark"))
	} else {
		options = append(options, glamour.WithStandardStyle("light"))
	}

	renderer, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return string(content), nil
	}

	rendered, err := renderer.Render(string(content))
	if err != nil {
		return string(content), nil
	}
	return rendered, nil
}
