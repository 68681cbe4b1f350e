// Copyright 2026 The Roster Authors
// SPDX-License-Identifier: Apache-2.0

// Package render converts the assistant's Markdown replies into the
// HTML that Matrix clients display as formatted message bodies. The
// plain Markdown text always rides along as the fallback body, so
// clients that ignore formatting still show something readable.
package render

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdownInstance is initialized once and reused. The configuration
// never changes and the goldmark pipeline is safe to share; per-call
// state lives in the Convert buffers.
var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		)
	})
	return markdownInstance
}

// HTML renders Markdown to the HTML fragment carried in a formatted
// message body. Raw HTML in the input is dropped, not passed through:
// reply text incorporates sender-supplied strings (display names,
// argument echoes) and none of them may inject markup.
func HTML(input string) (string, error) {
	var buf bytes.Buffer
	if err := markdown().Convert([]byte(input), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
