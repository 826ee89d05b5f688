package domain

// defaultDiscretionaryPercent is the spending target assumed for users who
// have not set one during onboarding.
const defaultDiscretionaryPercent = 35.0

// HouseholdMember is one person in the household and their spending tendencies.
type HouseholdMember struct {
	Name       string `json:"name"`
	Role       string `json:"role"`
	Tendencies string `json:"tendencies,omitempty"`
}

// Tradeoff is a user-declared intentional overspend that must never be
// flagged as a problem.
type Tradeoff struct {
	Item        string `json:"item"`
	Reasoning   string `json:"reasoning,omitempty"`
	DoNotFlag   bool   `json:"doNotFlag"`
	AmountRange string `json:"amountRange,omitempty"`
}

// NonNegotiable is a spending item the user has declared off-limits for
// suggested cuts.
type NonNegotiable struct {
	Item     string `json:"item"`
	Reason   string `json:"reason,omitempty"`
	Category string `json:"category,omitempty"`
}

// WatchPattern is a recurring spending signature the user wants surfaced
// (not judged) when detected.
type WatchPattern struct {
	Pattern         string `json:"pattern"`
	Description     string `json:"description,omitempty"`
	Meaning         string `json:"meaning,omitempty"`
	SuggestedAction string `json:"suggestedAction,omitempty"`
	Threshold       string `json:"threshold,omitempty"`
}

// SeasonalPattern notes months in which certain categories are expected to
// run hot or cold.
type SeasonalPattern struct {
	Months     []int    `json:"months"` // 1-12
	Categories []string `json:"categories"`
	Note       string   `json:"note,omitempty"`
}

// SpendingTargets holds the discretionary percentage target plus optional
// per-category numeric targets.
type SpendingTargets struct {
	DiscretionaryPercent float64            `json:"discretionaryPercent"`
	CategoryTargets      map[string]float64 `json:"categoryTargets,omitempty"`
}

// UserContext is the structured record of a user's financial situation,
// assembled during onboarding and refined by the chat agent afterwards.
type UserContext struct {
	HouseholdMembers    []HouseholdMember `json:"household_members"`
	DeliberateTradeoffs []Tradeoff        `json:"deliberate_tradeoffs"`
	NonNegotiables      []NonNegotiable   `json:"non_negotiables"`
	WatchPatterns       []WatchPattern    `json:"watch_patterns"`
	SeasonalPatterns    []SeasonalPattern `json:"seasonal_patterns"`
	SpendingTargets     SpendingTargets   `json:"spending_targets"`
	ContextNarrative    string            `json:"context_narrative"`
}

// DefaultUserContext is the documented stand-in for a user with no stored
// record: empty lists, a 35% discretionary target, empty narrative.
func DefaultUserContext() UserContext {
	return UserContext{
		HouseholdMembers:    []HouseholdMember{},
		DeliberateTradeoffs: []Tradeoff{},
		NonNegotiables:      []NonNegotiable{},
		WatchPatterns:       []WatchPattern{},
		SeasonalPatterns:    []SeasonalPattern{},
		SpendingTargets:     SpendingTargets{DiscretionaryPercent: defaultDiscretionaryPercent},
	}
}
