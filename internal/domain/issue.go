package domain

type IssuePriority string

const (
	PriorityLow      IssuePriority = "low"
	PriorityMedium   IssuePriority = "medium"
	PriorityHigh     IssuePriority = "high"
	PriorityCritical IssuePriority = "critical"
)

// Issue is the work item under estimation. Mutated only by the moderator.
type Issue struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	AcceptanceCriteria []string      `json:"acceptanceCriteria,omitempty"`
	Priority           IssuePriority `json:"priority"`
	Labels             []string      `json:"labels,omitempty"`
}
