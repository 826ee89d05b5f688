package domain

// InsightPriority is the five-bucket ranking applied to generated insights.
type InsightPriority string

const (
	PriorityAlert       InsightPriority = "alert"
	PriorityWarning     InsightPriority = "warning"
	PriorityWatch       InsightPriority = "watch"
	PriorityObservation InsightPriority = "observation"
	PriorityAffirmation InsightPriority = "affirmation"
)

// Insight is one archived observation produced by the insight agent, together
// with the data snapshot it was generated from.
type Insight struct {
	UserID    string          `json:"userId"`
	Content   string          `json:"content"`
	Priority  InsightPriority `json:"priority"`
	Snapshot  string          `json:"snapshot"` // JSON of the prefetched data bundle
	CreatedAt string          `json:"createdAt"`
}
