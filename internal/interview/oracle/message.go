package oracle

import (
	"encoding/json"
	"strings"

	id "visaflow/pkg/domain"
)

// Kind classifies an oracle response after normalization.
type Kind string

const (
	KindCandidateList             Kind = "candidate_list"
	KindCandidateListWithQuestion Kind = "candidate_list_with_question"
	KindQuestion                  Kind = "question"
	KindWorkflow                  Kind = "workflow"
	KindUnrecognized              Kind = "unrecognized"
)

// Message is the tagged union produced by Normalize. Downstream logic
// switches on Kind and never inspects raw oracle text itself.
type Message struct {
	Kind     Kind
	Codes    []id.VisaCode
	Question string
	// Raw is the original response text, kept for workflow payloads and
	// diagnostics.
	Raw string
}

// objectShape covers the field spellings the oracle has been observed to
// use for candidate lists. The response shape is not contractually fixed,
// so normalization is deliberately permissive.
type objectShape struct {
	VisaTypes  []string          `json:"visaTypes"`
	VisaTypes2 []string          `json:"visa_types"`
	Codes      []string          `json:"codes"`
	Question   string            `json:"question"`
	Steps      []json.RawMessage `json:"steps"`
}

// Normalize classifies a raw oracle response into one of the recognized
// message kinds. It is a pure function: malformed input degrades to
// KindUnrecognized, it never panics and never returns an error.
//
// Classification priority:
//  1. JSON array of strings           -> CandidateList
//  2. JSON object with a visa-type
//     array field (plus optional
//     question)                       -> CandidateList / CandidateListWithQuestion
//  3. JSON object with a steps array  -> Workflow
//  4. quoted text                     -> Question
//  5. anything else                   -> Unrecognized
func Normalize(raw string) Message {
	trimmed := strings.TrimSpace(raw)

	var codes []string
	if err := json.Unmarshal([]byte(trimmed), &codes); err == nil {
		return Message{Kind: KindCandidateList, Codes: toVisaCodes(codes), Raw: raw}
	}

	var obj objectShape
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && strings.HasPrefix(trimmed, "{") {
		listed := obj.VisaTypes
		if len(listed) == 0 {
			listed = obj.VisaTypes2
		}
		if len(listed) == 0 {
			listed = obj.Codes
		}
		switch {
		case len(listed) > 0 && strings.TrimSpace(obj.Question) != "":
			return Message{
				Kind:     KindCandidateListWithQuestion,
				Codes:    toVisaCodes(listed),
				Question: strings.TrimSpace(obj.Question),
				Raw:      raw,
			}
		case len(listed) > 0:
			return Message{Kind: KindCandidateList, Codes: toVisaCodes(listed), Raw: raw}
		case obj.Steps != nil:
			return Message{Kind: KindWorkflow, Raw: raw}
		case strings.TrimSpace(obj.Question) != "":
			// Bare question wrapped in an object; seen in the wild.
			return Message{Kind: KindQuestion, Question: strings.TrimSpace(obj.Question), Raw: raw}
		}
	}

	if question, ok := unquote(trimmed); ok {
		return Message{Kind: KindQuestion, Question: question, Raw: raw}
	}

	return Message{Kind: KindUnrecognized, Raw: raw}
}

func toVisaCodes(codes []string) []id.VisaCode {
	out := make([]id.VisaCode, 0, len(codes))
	for _, c := range codes {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" {
			continue
		}
		out = append(out, id.VisaCode(trimmed))
	}
	return out
}

// unquote extracts the text of a quoted response. JSON string decoding is
// tried first so escapes survive; a plain trim handles oracles that quote
// without escaping.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	first, last := s[0], s[len(s)-1]
	if first != last || (first != '"' && first != '\'') {
		return "", false
	}
	if first == '"' {
		var decoded string
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			return strings.TrimSpace(decoded), true
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}
