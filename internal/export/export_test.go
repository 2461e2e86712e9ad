package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/PabloGalante/promptlab/internal/domain"
)

var ts = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleHistory() []domain.ChatMessage {
	return []domain.ChatMessage{
		{ID: "m1", Role: domain.RoleUser, Text: "Explain gravity\nbriefly", Timestamp: ts},
		{
			ID:        "m2",
			Role:      domain.RoleModel,
			Text:      "Gravity is **attraction**.",
			Timestamp: ts.Add(time.Second),
			Citations: []domain.Citation{
				{Web: &domain.Source{URI: "https://a.example", Title: "A"}},
				{RetrievedContext: &domain.Source{URI: "https://b.example"}},
				{},
			},
		},
		{ID: "m3", Role: domain.RoleModel, Text: "Error: quota", Timestamp: ts.Add(2 * time.Second), Error: "quota"},
	}
}

func TestTemplateMarkdown(t *testing.T) {
	tmpl := domain.Template{
		BasePrompt: "Explain {{topic}}",
		Attributes: []domain.Attribute{{Name: "Tone", Value: "{{tone}}"}},
		Variables:  []domain.InputVariable{{Name: "topic", TestValue: "gravity"}},
	}
	want := "# Base Prompt (Template)\nExplain {{topic}}\n\n" +
		"## Attributes (Template)\n- **Tone**: {{tone}}\n\n" +
		"## Input Variables (Test Values)\n- **topic**: gravity\n"
	if got := TemplateMarkdown(tmpl); got != want {
		t.Fatalf("unexpected markdown:\n%s", got)
	}

	if got := TemplateMarkdown(domain.Template{}); got != "# Base Prompt (Template)\nNot specified.\n\n" {
		t.Fatalf("unexpected empty markdown %q", got)
	}
}

func TestTemplateJSON(t *testing.T) {
	data, err := TemplateJSON(domain.Template{
		BasePrompt: "Hi {{name}}",
		Attributes: []domain.Attribute{{ID: "a1", Name: "Tone", Value: "Warm", Description: "Voice"}},
		Variables:  []domain.InputVariable{{ID: "v1", Name: "name", TestValue: "Ada"}},
	})
	if err != nil {
		t.Fatalf("TemplateJSON failed: %v", err)
	}
	if strings.Contains(string(data), "a1") || strings.Contains(string(data), "v1") {
		t.Fatalf("ids must not be exported: %s", data)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got["basePrompt"] != "Hi {{name}}" {
		t.Fatalf("unexpected basePrompt %v", got["basePrompt"])
	}
	vars := got["inputVariables"].([]any)
	if vars[0].(map[string]any)["testValue"] != "Ada" {
		t.Fatalf("unexpected variables %v", vars)
	}
}

func TestChatMarkdown(t *testing.T) {
	if got := ChatMarkdown(nil, ts); got != EmptyChatText {
		t.Fatalf("unexpected empty export %q", got)
	}

	got := ChatMarkdown(sampleHistory(), ts)
	for _, want := range []string{
		"# Chat Export - 2025-03-14 09:26:53\n\n",
		"**User (2025-03-14 09:26:53):**\nExplain gravity\n\nbriefly\n",
		"**Model (2025-03-14 09:26:54):**\nGravity is **attraction**.\n",
		"\n**Sources:**\n- [A](https://a.example)\n- [https://b.example](https://b.example)\n",
		"\n*[Error: quota]*\n",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("export missing %q:\n%s", want, got)
		}
	}
	if n := strings.Count(got, "\n---\n\n"); n != 2 {
		t.Fatalf("expected 2 separators, got %d", n)
	}
}

func TestChatJSON(t *testing.T) {
	data, err := ChatJSON(nil)
	if err != nil || string(data) != "[]" {
		t.Fatalf("unexpected empty json %q %v", data, err)
	}

	data, err = ChatJSON(sampleHistory())
	if err != nil {
		t.Fatalf("ChatJSON failed: %v", err)
	}
	var msgs []domain.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(msgs) != 3 || msgs[1].Citations[0].Web.URI != "https://a.example" || msgs[2].Error != "quota" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if !strings.Contains(string(data), `"groundingChunks"`) {
		t.Fatalf("citations should be exported as groundingChunks")
	}
}

func TestChatHTML(t *testing.T) {
	history := sampleHistory()
	history = append(history, domain.ChatMessage{
		ID: "m4", Role: domain.RoleUser, Text: "see https://c.example <script>alert(1)</script>", Timestamp: ts,
	})

	out, err := ChatHTML(history)
	if err != nil {
		t.Fatalf("ChatHTML failed: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	if err != nil {
		t.Fatalf("invalid html: %v", err)
	}

	if n := doc.Find("section.message").Length(); n != 4 {
		t.Fatalf("expected 4 messages, got %d", n)
	}
	if n := doc.Find("section.user").Length(); n != 2 {
		t.Fatalf("expected 2 user messages, got %d", n)
	}
	if got := doc.Find("#msg-m2 .body strong").Text(); got != "attraction" {
		t.Fatalf("markdown not rendered, got %q", got)
	}
	if n := doc.Find("#msg-m1 .body br").Length(); n != 1 {
		t.Fatalf("expected hard wrap, got %d line breaks", n)
	}

	links := doc.Find("#msg-m2 .sources a")
	if links.Length() != 2 {
		t.Fatalf("expected 2 source links, got %d", links.Length())
	}
	if href, _ := links.First().Attr("href"); href != "https://a.example" {
		t.Fatalf("unexpected href %q", href)
	}
	if got := links.Last().Text(); got != "https://b.example" {
		t.Fatalf("title should fall back to uri, got %q", got)
	}

	if got := doc.Find("#msg-m3 .error").Text(); got != "quota" {
		t.Fatalf("unexpected error text %q", got)
	}
	if doc.Find("script").Length() != 0 {
		t.Fatalf("raw html must not be rendered")
	}
	if href, ok := doc.Find("#msg-m4 .body a").Attr("href"); !ok || href != "https://c.example" {
		t.Fatalf("bare urls should be linkified, got %q", href)
	}
}
