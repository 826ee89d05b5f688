package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hearthledger/internal/domain"
	"hearthledger/internal/txquery"
)

const insightWindowDays = 14

// InsightAgent produces one prioritized observation per invocation. All data
// is prefetched; the model call takes no tools.
type InsightAgent struct {
	llm      LLMClient
	query    QueryService
	contexts ContextStore
	insights InsightStore
	now      func() time.Time
	log      zerolog.Logger
}

// NewInsightAgent wires an insight agent.
func NewInsightAgent(llm LLMClient, query QueryService, contexts ContextStore, insights InsightStore, log zerolog.Logger) (*InsightAgent, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if query == nil {
		return nil, errors.New("usecase: query service must not be nil")
	}
	if contexts == nil {
		return nil, errors.New("usecase: context store must not be nil")
	}
	if insights == nil {
		return nil, errors.New("usecase: insight store must not be nil")
	}
	return &InsightAgent{
		llm:      llm,
		query:    query,
		contexts: contexts,
		insights: insights,
		now:      time.Now,
		log:      log,
	}, nil
}

// insightBundle is the prefetched data handed to the model and archived as
// the insight's snapshot.
type insightBundle struct {
	CurrentMonth        txquery.Summary          `json:"currentMonth"`
	PreviousMonth       txquery.Summary          `json:"previousMonth"`
	RecentActivity      txquery.Activity         `json:"recentActivity"`
	PercentMonthElapsed float64                  `json:"percentMonthElapsed"`
	ActiveSeasonal      []domain.SeasonalPattern `json:"activeSeasonalPatterns"`
}

// Generate assembles the data bundle, asks for exactly one observation, and
// archives it. A failed model call stores nothing.
func (a *InsightAgent) Generate(ctx context.Context, model, userID string) (domain.Insight, error) {
	uc, _, err := a.contexts.GetUserContext(ctx, userID)
	if err != nil {
		return domain.Insight{}, newError(ErrorInternal, "context_read_error", err)
	}

	today := a.now().UTC()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevMonthEnd := monthStart.AddDate(0, 0, -1)
	prevMonthStart := time.Date(prevMonthEnd.Year(), prevMonthEnd.Month(), 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := monthStart.AddDate(0, 1, -1).Day()

	bundle := insightBundle{
		PercentMonthElapsed: float64(today.Day()) / float64(daysInMonth) * 100,
		ActiveSeasonal:      activeSeasonalPatterns(uc.SeasonalPatterns, int(today.Month())),
	}
	bundle.CurrentMonth, err = a.query.SpendingSummary(ctx, userID, monthStart.Format("2006-01-02"), today.Format("2006-01-02"), txquery.GroupByCategory)
	if err != nil {
		return domain.Insight{}, newError(ErrorInternal, "summary_query_error", err)
	}
	bundle.PreviousMonth, err = a.query.SpendingSummary(ctx, userID, prevMonthStart.Format("2006-01-02"), prevMonthEnd.Format("2006-01-02"), txquery.GroupByCategory)
	if err != nil {
		return domain.Insight{}, newError(ErrorInternal, "summary_query_error", err)
	}
	bundle.RecentActivity, err = a.query.RecentActivity(ctx, userID, insightWindowDays)
	if err != nil {
		return domain.Insight{}, newError(ErrorInternal, "activity_query_error", err)
	}

	snapshot, err := json.Marshal(bundle)
	if err != nil {
		return domain.Insight{}, newError(ErrorInternal, "snapshot_marshal_error", err)
	}

	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: insightSystemPrompt(uc, string(snapshot))},
		{Role: domain.RoleUser, Content: "Generate today's single most useful insight."},
	}
	reply, err := a.llm.Chat(ctx, model, messages, nil)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return domain.Insight{}, newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return domain.Insight{}, newError(ErrorUpstream, "openai_error", err)
	}
	content := strings.TrimSpace(reply.Content)
	if content == "" {
		return domain.Insight{}, newError(ErrorUpstream, "openai_empty_insight", nil)
	}

	insight := domain.Insight{
		UserID:    userID,
		Content:   content,
		Priority:  classifyInsightPriority(content),
		Snapshot:  string(snapshot),
		CreatedAt: today.Format(time.RFC3339Nano),
	}
	if err := a.insights.PutInsight(ctx, insight); err != nil {
		return domain.Insight{}, newError(ErrorInternal, "insight_write_error", err)
	}

	a.log.Info().Str("userId", userID).Str("priority", string(insight.Priority)).Msg("insight archived")
	return insight, nil
}

// History returns the most recent archived insights.
func (a *InsightAgent) History(ctx context.Context, userID string, limit int) ([]domain.Insight, error) {
	insights, err := a.insights.ListInsights(ctx, userID, limit)
	if err != nil {
		return nil, newError(ErrorInternal, "insight_read_error", err)
	}
	return insights, nil
}

func insightSystemPrompt(uc domain.UserContext, snapshot string) string {
	sections := []string{
		"Role:",
		"You are the household's personal-finance assistant generating one proactive daily insight.",
		"",
		"Task:",
		"Pick exactly ONE insight from the data snapshot, the most useful one, chosen by priority:",
		"alert (something needs attention now) > warning (trending toward a problem) > watch pattern triggered > observation (neutral, notable) > affirmation (genuinely on track).",
		"",
		"Hard Rules:",
		"1) Deliberate trade-offs and non-negotiables must never be the basis of a negative flag.",
		"2) Use concrete numbers from the snapshot.",
		"3) Adjust month-to-date comparisons for how much of the month has elapsed.",
		"4) Two to four sentences, plain language, no preamble.",
		"",
		"Data Snapshot:",
		snapshot,
	}
	if uc.ContextNarrative != "" {
		sections = append(sections, "", "Household Narrative:", uc.ContextNarrative)
	}
	if len(uc.DeliberateTradeoffs) > 0 {
		sections = append(sections, "", "Deliberate Trade-offs (never flag):")
		for _, t := range uc.DeliberateTradeoffs {
			sections = append(sections, fmt.Sprintf("- %s: %s", t.Item, t.Reasoning))
		}
	}
	if len(uc.NonNegotiables) > 0 {
		sections = append(sections, "", "Non-negotiables (never flag):")
		for _, n := range uc.NonNegotiables {
			sections = append(sections, fmt.Sprintf("- %s: %s", n.Item, n.Reason))
		}
	}
	if len(uc.WatchPatterns) > 0 {
		sections = append(sections, "", "Watch Patterns:")
		for _, w := range uc.WatchPatterns {
			sections = append(sections, fmt.Sprintf("- %s: %s", w.Pattern, w.Meaning))
		}
	}
	return strings.Join(sections, "\n")
}

func activeSeasonalPatterns(patterns []domain.SeasonalPattern, month int) []domain.SeasonalPattern {
	active := []domain.SeasonalPattern{}
	for _, p := range patterns {
		for _, m := range p.Months {
			if m == month {
				active = append(active, p)
				break
			}
		}
	}
	return active
}

// priorityKeywords maps generated text to a priority bucket. Ordered: the
// first bucket with a match wins, and unmatched text defaults to observation.
// Brittle by nature; kept behind this one pure function so a structured
// output contract can replace it without touching callers.
var priorityKeywords = []struct {
	priority domain.InsightPriority
	keywords []string
}{
	{domain.PriorityAlert, []string{"alert", "urgent", "immediately", "over budget", "exceeded"}},
	{domain.PriorityWarning, []string{"warning", "caution", "on pace to", "trending over", "careful"}},
	{domain.PriorityWatch, []string{"watch pattern", "keep an eye", "worth watching", "pattern you asked"}},
	{domain.PriorityObservation, []string{"observation", "noticed", "interesting"}},
	{domain.PriorityAffirmation, []string{"great job", "well done", "on track", "nice work", "keep it up"}},
}

// classifyInsightPriority tags generated text with one of the five priority
// buckets via ordered case-insensitive keyword matching.
func classifyInsightPriority(content string) domain.InsightPriority {
	lowered := strings.ToLower(content)
	for _, bucket := range priorityKeywords {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				return bucket.priority
			}
		}
	}
	return domain.PriorityObservation
}
