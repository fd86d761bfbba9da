package extract

import (
	"strings"
	"testing"

	"github.com/bull/cpt-extract/internal/epub"
)

func TestBuildPrompt_HierarchyContext(t *testing.T) {
	p := BuildPrompt(PromptInput{
		Text: "some page text",
		Hierarchy: epub.HierarchyContext{
			Section:    "Surgery",
			Subsection: "Musculoskeletal System",
		},
	})

	if !strings.Contains(p.Text, "Current Section: Surgery") {
		t.Error("section missing from prompt")
	}
	if !strings.Contains(p.Text, "Current Subsection: Musculoskeletal System") {
		t.Error("subsection missing from prompt")
	}
	if !strings.Contains(p.Text, "Current Subheading: Unknown") {
		t.Error("unresolved level should render as Unknown")
	}
	if !strings.Contains(p.Text, "some page text") {
		t.Error("chunk text missing from prompt")
	}
}

func TestBuildPrompt_PreviousRecordContext(t *testing.T) {
	last := &CodeRecord{Code: "29800", CodeDescription: "Arthroscopy, temporomandibular joint; diagnostic"}

	p := BuildPrompt(PromptInput{Text: "text", LastRecord: last})
	if !strings.Contains(p.Text, "Previous Code Context") {
		t.Error("previous code context section missing")
	}
	if !strings.Contains(p.Text, "29800") {
		t.Error("previous code missing from prompt")
	}
}

func TestBuildPrompt_FirstChunkOmitsPreviousContext(t *testing.T) {
	p := BuildPrompt(PromptInput{Text: "text"})
	if strings.Contains(p.Text, "Previous Code Context") {
		t.Error("first chunk must not carry previous code context")
	}
}

func TestBuildPrompt_SimpleSchema(t *testing.T) {
	p := BuildPrompt(PromptInput{Text: "text", SimpleSchema: true})
	if !strings.Contains(p.Text, "Do NOT include any other fields") {
		t.Error("simple schema instruction missing")
	}
	if strings.Contains(p.Text, `"section_text": "string"`) {
		t.Error("full schema leaked into simple-schema prompt")
	}
}

func TestBuildPrompt_Truncation(t *testing.T) {
	long := strings.Repeat("a", 500)

	p := BuildPrompt(PromptInput{Text: long, MaxChars: 100})
	if !p.Truncated {
		t.Error("expected truncation flag")
	}
	if strings.Contains(p.Text, strings.Repeat("a", 101)) {
		t.Error("text not clipped to budget")
	}

	p = BuildPrompt(PromptInput{Text: "short", MaxChars: 100})
	if p.Truncated {
		t.Error("short text must not be flagged as truncated")
	}
}
