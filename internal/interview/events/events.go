// Package events defines the completion event handed to the workflow
// materializer when an interview finishes.
package events

import "time"

// Topic is the Kafka topic completion events are published to.
const Topic = "interview.completed"

// CompletedEvent is emitted once per completed interview. The raw workflow
// document travels with the event so the materializer needs no read-back
// from the interview store.
type CompletedEvent struct {
	EventID          string    `json:"eventId"`
	UserID           string    `json:"userId"`
	VisaCode         string    `json:"visaCode"`
	WorkflowDocument string    `json:"workflowDocument"`
	CompletedAt      time.Time `json:"completedAt"`
}
