package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"hearthledger/internal/domain"
)

// phaseFocus is what the interviewer digs into during each phase.
var phaseFocus = map[domain.OnboardingPhase]string{
	domain.PhaseIntro:         "Welcome the user, explain that a short interview will teach the assistant how their household spends, and ask how they'd describe their overall money situation.",
	domain.PhaseHousehold:     "Who is in the household, who spends on what, and each person's tendencies.",
	domain.PhaseGroceries:     "Grocery habits: where they shop, roughly how much, and whether food spending feels deliberate.",
	domain.PhaseTransport:     "Commute and transport: fuel, transit, rideshare, vehicle costs.",
	domain.PhaseSubscriptions: "Recurring subscriptions and memberships, which are valued and which are inertia.",
	domain.PhaseBNPL:          "Buy-now-pay-later and installment plans: providers, balances, how they feel about them.",
	domain.PhaseLifestyle:     "Dining out, hobbies, travel, and any deliberate splurges the assistant should never flag.",
	domain.PhaseSynthesis:     "Play back everything gathered, confirm trade-offs, non-negotiables, watch patterns and targets, then finalize.",
}

func onboardingSystemPrompt(state domain.OnboardingState) string {
	gathered, _ := json.Marshal(state.GatheredContext)
	asked := "(none yet)"
	if len(state.QuestionsAsked) > 0 {
		asked = "- " + strings.Join(state.QuestionsAsked, "\n- ")
	}

	return strings.Join([]string{
		"Role:",
		"You are a warm, practical personal-finance interviewer building a household spending profile.",
		"",
		"Interview Contract:",
		"1) Cover the phases in order: intro, household, groceries, transport, subscriptions, bnpl, lifestyle, synthesis.",
		"2) Ask one focused question at a time; ground questions in real transaction data when it helps.",
		"3) When a phase is sufficiently covered, call transition_phase with what you learned.",
		"4) Never repeat a question from the already-asked list.",
		"5) Only after synthesis, call complete_onboarding with the full context.",
		"6) Never judge spending; record trade-offs as deliberate choices, not problems.",
		"",
		"Current Phase: " + string(state.Phase),
		"Phase Focus: " + phaseFocus[state.Phase],
		"",
		"Context Gathered So Far:",
		string(gathered),
		"",
		"Questions Already Asked:",
		asked,
	}, "\n")
}

func chatSystemPrompt(uc domain.UserContext) string {
	sections := []string{
		"Role:",
		"You are the household's personal-finance assistant. Answer from real transaction data, fetched with tools, and from the saved context below.",
		"",
		"Behavior Rules:",
		"1) Deliberate trade-offs are intentional; never flag them as problems.",
		"2) Non-negotiables are off-limits; never suggest cutting them.",
		"3) Flag watch patterns when the data shows them triggered, without judgment.",
		"4) Keep answers concise and concrete, with real numbers from tools.",
		"5) When the user shares new lasting facts about their situation, record them with update_user_context.",
		"6) If a tool fails, tell the user plainly what you could not fetch.",
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
		sections = append(sections, "", "Non-negotiables (never suggest cutting):")
		for _, n := range uc.NonNegotiables {
			sections = append(sections, fmt.Sprintf("- %s: %s", n.Item, n.Reason))
		}
	}
	if len(uc.WatchPatterns) > 0 {
		sections = append(sections, "", "Watch Patterns (flag when triggered):")
		for _, w := range uc.WatchPatterns {
			sections = append(sections, fmt.Sprintf("- %s: %s", w.Pattern, w.Meaning))
		}
	}
	sections = append(sections, "", fmt.Sprintf("Spending Target: keep discretionary spending near %.0f%% of total.", uc.SpendingTargets.DiscretionaryPercent))
	for category, target := range uc.SpendingTargets.CategoryTargets {
		sections = append(sections, fmt.Sprintf("- %s target: %.2f", category, target))
	}
	return strings.Join(sections, "\n")
}

// historyToPromptMessages replays persisted turns for the model.
func historyToPromptMessages(history []domain.Message) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role != domain.RoleUser && m.Role != domain.RoleAssistant {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		out = append(out, domain.ChatMessage{Role: m.Role, Content: content})
	}
	return out
}
