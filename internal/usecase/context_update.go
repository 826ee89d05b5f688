package usecase

import (
	"encoding/json"
	"fmt"

	"hearthledger/internal/domain"
)

// Context field names accepted by update_user_context.
const (
	FieldHouseholdMembers    = "household_members"
	FieldDeliberateTradeoffs = "deliberate_tradeoffs"
	FieldNonNegotiables      = "non_negotiables"
	FieldWatchPatterns       = "watch_patterns"
	FieldSeasonalPatterns    = "seasonal_patterns"
	FieldSpendingTargets     = "spending_targets"
	FieldContextNarrative    = "context_narrative"
)

// Update actions.
const (
	ActionSet    = "set"
	ActionAppend = "append"
	ActionRemove = "remove"
)

// ContextUpdate is one requested mutation of a single context field.
type ContextUpdate struct {
	Field  string          `json:"field"`
	Action string          `json:"action"`
	Value  json.RawMessage `json:"value"`
}

// ApplyContextUpdate mutates one field of uc in place. The field set is
// closed, so an unknown field or an action that does not fit the field's
// shape is rejected rather than silently ignored. List removal accepts a
// numeric index or an object whose "item" key exactly matches the element's
// identifying name.
func ApplyContextUpdate(uc *domain.UserContext, upd ContextUpdate) error {
	switch upd.Field {
	case FieldHouseholdMembers:
		return applyListUpdate(&uc.HouseholdMembers, upd, func(m domain.HouseholdMember) string { return m.Name })
	case FieldDeliberateTradeoffs:
		return applyListUpdate(&uc.DeliberateTradeoffs, upd, func(t domain.Tradeoff) string { return t.Item })
	case FieldNonNegotiables:
		return applyListUpdate(&uc.NonNegotiables, upd, func(n domain.NonNegotiable) string { return n.Item })
	case FieldWatchPatterns:
		return applyListUpdate(&uc.WatchPatterns, upd, func(w domain.WatchPattern) string { return w.Pattern })
	case FieldSeasonalPatterns:
		return applyListUpdate(&uc.SeasonalPatterns, upd, func(p domain.SeasonalPattern) string { return p.Note })
	case FieldSpendingTargets:
		if upd.Action != ActionSet {
			return fmt.Errorf("usecase: action %q not valid for scalar field %q", upd.Action, upd.Field)
		}
		var targets domain.SpendingTargets
		if err := json.Unmarshal(upd.Value, &targets); err != nil {
			return fmt.Errorf("usecase: decode %s: %w", upd.Field, err)
		}
		uc.SpendingTargets = targets
		return nil
	case FieldContextNarrative:
		if upd.Action != ActionSet {
			return fmt.Errorf("usecase: action %q not valid for scalar field %q", upd.Action, upd.Field)
		}
		var narrative string
		if err := json.Unmarshal(upd.Value, &narrative); err != nil {
			return fmt.Errorf("usecase: decode %s: %w", upd.Field, err)
		}
		uc.ContextNarrative = narrative
		return nil
	default:
		return fmt.Errorf("usecase: unknown context field %q", upd.Field)
	}
}

// removeSelector is the accepted shape for remove-by-match values.
type removeSelector struct {
	Item string `json:"item"`
}

func applyListUpdate[T any](list *[]T, upd ContextUpdate, key func(T) string) error {
	switch upd.Action {
	case ActionSet:
		var replacement []T
		if err := json.Unmarshal(upd.Value, &replacement); err != nil {
			return fmt.Errorf("usecase: decode %s: %w", upd.Field, err)
		}
		*list = replacement
		return nil
	case ActionAppend:
		var element T
		if err := json.Unmarshal(upd.Value, &element); err != nil {
			return fmt.Errorf("usecase: decode %s element: %w", upd.Field, err)
		}
		*list = append(*list, element)
		return nil
	case ActionRemove:
		var index int
		if err := json.Unmarshal(upd.Value, &index); err == nil {
			if index < 0 || index >= len(*list) {
				return fmt.Errorf("usecase: remove index %d out of range for %s", index, upd.Field)
			}
			*list = append((*list)[:index], (*list)[index+1:]...)
			return nil
		}
		var sel removeSelector
		if err := json.Unmarshal(upd.Value, &sel); err != nil || sel.Item == "" {
			return fmt.Errorf("usecase: remove value for %s must be an index or an object with an item key", upd.Field)
		}
		kept := (*list)[:0]
		for _, element := range *list {
			if key(element) != sel.Item {
				kept = append(kept, element)
			}
		}
		*list = kept
		return nil
	default:
		return fmt.Errorf("usecase: unknown action %q", upd.Action)
	}
}
