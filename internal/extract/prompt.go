package extract

import (
	"encoding/json"
	"fmt"

	"github.com/bull/cpt-extract/internal/epub"
)

// DefaultMaxPromptChars caps the raw text embedded in one prompt. Dense
// chunks are cut silently at this budget; the Truncated flag makes the cut
// observable to the caller.
const DefaultMaxPromptChars = 300_000

// PromptInput collects everything one chunk's prompt is built from.
type PromptInput struct {
	Text         string
	Hierarchy    epub.HierarchyContext
	LastRecord   *CodeRecord // parent-stitching context; nil on the first chunk
	SimpleSchema bool
	MaxChars     int // 0 means DefaultMaxPromptChars
}

// Prompt is a fully rendered generation request.
type Prompt struct {
	Text      string
	Truncated bool
}

const fullSchemaInstruction = `4. **Output Format**:
   Return the data as **JSON Lines** (ndjson).
   - Each line must be a valid, independent JSON object.
   - Do NOT wrap the output in a list ` + "`[...]`" + `.
   - Do NOT use commas between lines.
   - Schema for each object:
   {
    "code": "string",
    "code_description": "string (resolved full description)",
    "code_type": "CPT",
    "section": "string",
    "section_text": "string",
    "subsection": "string",
    "subsection_text": "string",
    "subheading": "string",
    "subheading_text": "string",
    "topic": "string",
    "topic_text": "string",
    "code_version": "CPT 2024 AMA"
   }`

const simpleSchemaInstruction = `4. **Output Format**:
   Return the data as **JSON Lines** (ndjson).
   - Each line must be a valid, independent JSON object.
   - Do NOT wrap the output in a list ` + "`[...]`" + `.
   - Do NOT use commas between lines.
   - Schema for each object:
   {
    "code": "string",
    "code_description": "string (resolved full description)"
   }
   Do NOT include any other fields like section, subsection, etc.`

// BuildPrompt renders the extraction prompt for one chunk: the hierarchy
// context, the previous chunk's last record as parent context, the
// semicolon continuation rule, and the chunk text clipped to the character
// budget.
func BuildPrompt(in PromptInput) Prompt {
	maxChars := in.MaxChars
	if maxChars <= 0 {
		maxChars = DefaultMaxPromptChars
	}

	text := in.Text
	truncated := false
	if len(text) > maxChars {
		text = text[:maxChars]
		truncated = true
	}

	prevContext := ""
	if in.LastRecord != nil {
		prevJSON, err := json.MarshalIndent(in.LastRecord, "", "  ")
		if err == nil {
			prevContext = fmt.Sprintf(`
**Previous Code Context**:
The last CPT code extracted from the previous page range was:
%s
If the FIRST code in the current text is a child code (starts with a semicolon or is indented), use the description from this previous code as the PARENT.
`, prevJSON)
		}
	}

	schema := fullSchemaInstruction
	if in.SimpleSchema {
		schema = simpleSchemaInstruction
	}

	body := fmt.Sprintf(`You are an expert Medical Coder and Data Analyst.
Your task is to extract CPT codes from the provided text and format them into structured JSON.

**Context (Hierarchy from previous pages)**:
- Current Section: %s
- Current Subsection: %s
- Current Subheading: %s
- Current Topic: %s
%s
**Rules**:
1. **Semicolon Rule**: This is CRITICAL. CPT codes often use a parent-child relationship.
   - If a code description starts with a semicolon (e.g., "; surgical") or is indented and lowercase, it is a CHILD code.
   - You must find the immediately preceding PARENT code (which usually ends with a semicolon).
   - The full description for the child is: [Parent Description up to semicolon] + [Child Description].
   - Example:
     - Parent: "29800 Arthroscopy, temporomandibular joint; diagnostic, with or without synovial biopsy (separate procedure)"
     - Child: "29804 ; surgical"
     - Result for 29804: "Arthroscopy, temporomandibular joint, surgical"
2. **Hierarchy Inheritance**:
   - For every code extracted, fill in the "section", "subsection", "subheading", and "topic" fields.
   - If the text explicitly introduces a new header (e.g., "Respiratory System"), update the context for subsequent codes.
   - If no new header is found, use the **Context** provided above.
3. **Text Extraction**:
   - "section_text", "subsection_text", etc. should contain the introductory text paragraphs that appear under those headers.
   - If the text is not present in this chunk, use "See previous pages" or leave empty. Do not hallucinate.
%s

**Input Text**:
%s
(Note: Text truncated to fit context window if necessary)
`,
		orUnknown(in.Hierarchy.Section),
		orUnknown(in.Hierarchy.Subsection),
		orUnknown(in.Hierarchy.Subheading),
		orUnknown(in.Hierarchy.Topic),
		prevContext,
		schema,
		text,
	)

	return Prompt{Text: body, Truncated: truncated}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
