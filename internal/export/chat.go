package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/PabloGalante/promptlab/internal/domain"
)

const (
	EmptyChatText = "No chat history to export."
	timeLayout    = "2006-01-02 15:04:05"
)

// ChatMarkdown writes the transcript as a Markdown document stamped with now.
func ChatMarkdown(history []domain.ChatMessage, now time.Time) string {
	if len(history) == 0 {
		return EmptyChatText
	}

	parts := make([]string, 0, len(history))
	for _, msg := range history {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s (%s):**\n", roleLabel(msg.Role), msg.Timestamp.Format(timeLayout))
		b.WriteString(strings.ReplaceAll(msg.Text, "\n", "\n\n"))
		b.WriteString("\n")
		if msg.Role == domain.RoleModel {
			b.WriteString(sourcesMarkdown(msg.Citations))
		}
		if msg.Error != "" {
			fmt.Fprintf(&b, "\n*[Error: %s]*\n", msg.Error)
		}
		parts = append(parts, b.String())
	}

	return fmt.Sprintf("# Chat Export - %s\n\n", now.Format(timeLayout)) + strings.Join(parts, "\n---\n\n")
}

func sourcesMarkdown(citations []domain.Citation) string {
	if len(citations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n**Sources:**\n")
	for _, c := range citations {
		src := c.Source()
		if src == nil || src.URI == "" {
			continue
		}
		title := src.Title
		if title == "" {
			title = src.URI
		}
		fmt.Fprintf(&b, "- [%s](%s)\n", title, src.URI)
	}
	return b.String()
}

// ChatJSON writes the history as indented JSON.
func ChatJSON(history []domain.ChatMessage) ([]byte, error) {
	if history == nil {
		history = []domain.ChatMessage{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal chat: %w", err)
	}
	return data, nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// ChatHTML renders each message as an HTML fragment. Message text is treated
// as Markdown; raw HTML in it is dropped.
func ChatHTML(history []domain.ChatMessage) (string, error) {
	var b bytes.Buffer
	b.WriteString(`<div class="chat">` + "\n")

	for _, msg := range history {
		fmt.Fprintf(&b, `<section class="message %s" id="msg-%s">`+"\n", msg.Role, html.EscapeString(string(msg.ID)))
		fmt.Fprintf(&b, `<header><span class="role">%s</span> <time datetime="%s">%s</time></header>`+"\n",
			roleLabel(msg.Role),
			msg.Timestamp.Format(time.RFC3339),
			msg.Timestamp.Format(timeLayout),
		)

		b.WriteString(`<div class="body">` + "\n")
		if err := markdown.Convert([]byte(msg.Text), &b); err != nil {
			return "", fmt.Errorf("render message %s: %w", msg.ID, err)
		}
		b.WriteString("</div>\n")

		if msg.Role == domain.RoleModel {
			writeSourcesHTML(&b, msg.Citations)
		}
		if msg.Error != "" {
			fmt.Fprintf(&b, `<p class="error">%s</p>`+"\n", html.EscapeString(msg.Error))
		}
		b.WriteString("</section>\n")
	}

	b.WriteString("</div>\n")
	return b.String(), nil
}

func writeSourcesHTML(b *bytes.Buffer, citations []domain.Citation) {
	var items []string
	for _, c := range citations {
		src := c.Source()
		if src == nil || src.URI == "" {
			continue
		}
		title := src.Title
		if title == "" {
			title = src.URI
		}
		items = append(items, fmt.Sprintf(`<li><a href="%s" target="_blank" rel="noopener noreferrer">%s</a></li>`,
			html.EscapeString(src.URI), html.EscapeString(title)))
	}
	if len(items) == 0 {
		return
	}
	b.WriteString(`<div class="sources"><p>Sources:</p><ul>` + "\n")
	b.WriteString(strings.Join(items, "\n"))
	b.WriteString("\n</ul></div>\n")
}

func roleLabel(r domain.Role) string {
	if r == domain.RoleUser {
		return "User"
	}
	return "Model"
}
