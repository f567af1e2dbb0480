package api

import (
	"blockrand/app"
)

// SSEEventBroadcaster adapts the SSEHub to app.EnrollmentListener
type SSEEventBroadcaster struct {
	sseHub *SSEHub
}

// NewSSEEventBroadcaster creates a new SSE event broadcaster
func NewSSEEventBroadcaster(sseHub *SSEHub) *SSEEventBroadcaster {
	return &SSEEventBroadcaster{sseHub: sseHub}
}

// Enrolled broadcasts one completed enrollment
func (seb *SSEEventBroadcaster) Enrolled(result app.EnrollmentResult) {
	r := result.Record
	seb.sseHub.Broadcast(AssignmentEvent{
		EventType: "assignment",
		SubjectID: r.SubjectID.String(),
		Strata:    r.Key.String(),
		Group:     r.Group.String(),
		Data: map[string]interface{}{
			"record_id":   r.ID.String(),
			"bias_reason": string(result.Decision.Reason),
			"priority":    string(result.Decision.Priority),
		},
		Timestamp: r.AssignedAt.Time(),
	})
}
