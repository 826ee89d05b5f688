package domain

// OnboardingPhase is one discrete step of the guided interview.
type OnboardingPhase string

const (
	PhaseIntro         OnboardingPhase = "intro"
	PhaseHousehold     OnboardingPhase = "household"
	PhaseGroceries     OnboardingPhase = "groceries"
	PhaseTransport     OnboardingPhase = "transport"
	PhaseSubscriptions OnboardingPhase = "subscriptions"
	PhaseBNPL          OnboardingPhase = "bnpl"
	PhaseLifestyle     OnboardingPhase = "lifestyle"
	PhaseSynthesis     OnboardingPhase = "synthesis"
	PhaseComplete      OnboardingPhase = "complete"
)

// PhaseOrder is the fixed interview sequence. complete is terminal.
var PhaseOrder = []OnboardingPhase{
	PhaseIntro,
	PhaseHousehold,
	PhaseGroceries,
	PhaseTransport,
	PhaseSubscriptions,
	PhaseBNPL,
	PhaseLifestyle,
	PhaseSynthesis,
	PhaseComplete,
}

// PhaseIndex returns the position of p in the interview sequence, or -1 for
// an unknown phase.
func PhaseIndex(p OnboardingPhase) int {
	for i, candidate := range PhaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}

// OnboardingState tracks one user's interview progress across turns.
// GatheredContext accumulates partial findings; QuestionsAsked suppresses
// repeat questions between turns.
type OnboardingState struct {
	UserID          string          `json:"userId"`
	ConversationID  string          `json:"conversationId,omitempty"`
	Phase           OnboardingPhase `json:"phase"`
	GatheredContext map[string]any  `json:"gatheredContext"`
	QuestionsAsked  []string        `json:"questionsAsked"`
}

// NewOnboardingState returns a fresh interview at the intro phase.
func NewOnboardingState(userID string) OnboardingState {
	return OnboardingState{
		UserID:          userID,
		Phase:           PhaseIntro,
		GatheredContext: map[string]any{},
		QuestionsAsked:  []string{},
	}
}

// Active reports whether the interview has more phases to cover.
func (s OnboardingState) Active() bool {
	return s.Phase != PhaseComplete
}
