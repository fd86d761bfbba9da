// Package extract drives the chunked code-extraction pipeline: it plans page
// chunks, prompts the generation service per chunk, parses the loosely
// structured responses, and carries hierarchy and parent-code state across
// chunk boundaries.
package extract

import "encoding/json"

// CodeRecord is one extracted procedure code. Only Code and CodeDescription
// are expected to be present; the hierarchy fields are filled when the model
// resolves them.
type CodeRecord struct {
	Code            string `json:"code"`
	CodeDescription string `json:"code_description,omitempty"`
	CodeType        string `json:"code_type,omitempty"`
	Section         string `json:"section,omitempty"`
	SectionText     string `json:"section_text,omitempty"`
	Subsection      string `json:"subsection,omitempty"`
	SubsectionText  string `json:"subsection_text,omitempty"`
	Subheading      string `json:"subheading,omitempty"`
	SubheadingText  string `json:"subheading_text,omitempty"`
	Topic           string `json:"topic,omitempty"`
	TopicText       string `json:"topic_text,omitempty"`
	CodeVersion     string `json:"code_version,omitempty"`
}

// UnmarshalJSON accepts "code_desc" as an alias for "code_description",
// which some model outputs use.
func (r *CodeRecord) UnmarshalJSON(data []byte) error {
	type plain CodeRecord
	aux := struct {
		*plain
		CodeDesc string `json:"code_desc"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.CodeDescription == "" && aux.CodeDesc != "" {
		r.CodeDescription = aux.CodeDesc
	}
	return nil
}
