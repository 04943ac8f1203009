package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	id "visaflow/pkg/domain"
)

// MockClient is a deterministic oracle used in development mode and tests.
// It narrows by matching answer text against code descriptions and always
// converges, which makes local runs reproducible.
type MockClient struct {
	// Latency mimics a real network call.
	Latency time.Duration
}

var mockCategorySets = map[string][]string{
	"visit":  {"B-1", "B-2", "ESTA"},
	"work":   {"H-1B", "L-1", "O-1", "TN"},
	"study":  {"F-1", "M-1", "J-1"},
	"invest": {"E-2", "EB-5"},
	"family": {"IR-1", "K-1", "F2A"},
}

var mockCodeHints = map[string][]string{
	"B-1":  {"business", "meeting", "conference"},
	"B-2":  {"tourism", "tourist", "leisure", "vacation", "holiday"},
	"ESTA": {"tourism", "short", "waiver"},
	"H-1B": {"work", "job", "employer", "specialty"},
	"L-1":  {"transfer", "intracompany", "manager"},
	"O-1":  {"extraordinary", "artist", "award"},
	"TN":   {"canada", "mexico", "nafta"},
	"F-1":  {"study", "university", "academic"},
	"M-1":  {"vocational", "technical"},
	"J-1":  {"exchange", "scholar", "au pair"},
	"E-2":  {"invest", "treaty", "business"},
	"EB-5": {"invest", "investment", "capital", "fund"},
	"IR-1": {"spouse", "married"},
	"K-1":  {"fiance", "engaged"},
	"F2A":  {"spouse", "child", "resident"},
}

func (c MockClient) Handshake(_ context.Context, category, _ string) (string, error) {
	time.Sleep(c.Latency)
	codes, ok := mockCategorySets[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		codes = []string{"B-2", "H-1B", "F-1", "EB-5"}
	}
	encoded, _ := json.Marshal(codes)
	return string(encoded), nil
}

func (c MockClient) QuestionFor(_ context.Context, codes []string) (string, error) {
	time.Sleep(c.Latency)
	question := fmt.Sprintf("What is the main purpose of your stay? I am deciding between %s.",
		strings.Join(codes, ", "))
	encoded, _ := json.Marshal(question)
	return string(encoded), nil
}

func (c MockClient) Filter(_ context.Context, codes []string, answer string) (string, error) {
	time.Sleep(c.Latency)

	lowered := strings.ToLower(answer)
	var kept []string
	for _, code := range codes {
		for _, hint := range mockCodeHints[code] {
			if strings.Contains(lowered, hint) {
				kept = append(kept, code)
				break
			}
		}
	}
	// No hint matched: drop the last candidate so progress is always made.
	if len(kept) == 0 {
		kept = codes[:max(len(codes)-1, 1)]
	}

	if len(kept) == 1 {
		encoded, _ := json.Marshal(map[string]any{"visaTypes": kept})
		return string(encoded), nil
	}
	encoded, _ := json.Marshal(map[string]any{
		"visaTypes": kept,
		"question":  fmt.Sprintf("Can you tell me more? I still have %d options.", len(kept)),
	})
	return string(encoded), nil
}

func (c MockClient) WorkflowFor(_ context.Context, code id.VisaCode) (string, error) {
	time.Sleep(c.Latency)
	doc := map[string]any{
		"steps": []map[string]any{
			{
				"name":              "Prepare petition",
				"description":       fmt.Sprintf("Collect supporting evidence for the %s application.", code),
				"estimatedCost":     250,
				"estimatedTimeDays": 14,
				"documents":         []string{"passport", "photographs"},
			},
			{
				"name":              "File application",
				"description":       "Submit the application and pay government fees.",
				"estimatedCost":     500,
				"estimatedTimeDays": 60,
				"documents":         []string{"application form", "fee receipt"},
			},
		},
		"estimatedTotalCost":     750,
		"estimatedTotalTimeDays": 74,
	}
	encoded, _ := json.Marshal(doc)
	return string(encoded), nil
}
