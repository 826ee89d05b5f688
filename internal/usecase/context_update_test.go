package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"hearthledger/internal/domain"
)

func baseContext() domain.UserContext {
	uc := domain.DefaultUserContext()
	uc.DeliberateTradeoffs = []domain.Tradeoff{
		{Item: "A", Reasoning: "family time", DoNotFlag: true},
		{Item: "B", Reasoning: "commute sanity", DoNotFlag: true},
	}
	uc.ContextNarrative = "original narrative"
	return uc
}

func TestApplyContextUpdateRemoveByItem(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldDeliberateTradeoffs,
		Action: ActionRemove,
		Value:  json.RawMessage(`{"item": "A"}`),
	})

	require.NoError(t, err)
	require.Len(t, uc.DeliberateTradeoffs, 1)
	require.Equal(t, "B", uc.DeliberateTradeoffs[0].Item)
}

func TestApplyContextUpdateRemoveByIndex(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldDeliberateTradeoffs,
		Action: ActionRemove,
		Value:  json.RawMessage(`1`),
	})

	require.NoError(t, err)
	require.Len(t, uc.DeliberateTradeoffs, 1)
	require.Equal(t, "A", uc.DeliberateTradeoffs[0].Item)
}

func TestApplyContextUpdateRemoveIndexOutOfRange(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldDeliberateTradeoffs,
		Action: ActionRemove,
		Value:  json.RawMessage(`7`),
	})

	require.Error(t, err)
	require.Len(t, uc.DeliberateTradeoffs, 2)
}

func TestApplyContextUpdateAppendPreservesOrder(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldDeliberateTradeoffs,
		Action: ActionAppend,
		Value:  json.RawMessage(`{"item": "C", "reasoning": "hobby", "doNotFlag": true}`),
	})

	require.NoError(t, err)
	require.Len(t, uc.DeliberateTradeoffs, 3)
	require.Equal(t, "A", uc.DeliberateTradeoffs[0].Item)
	require.Equal(t, "B", uc.DeliberateTradeoffs[1].Item)
	require.Equal(t, "C", uc.DeliberateTradeoffs[2].Item)
}

func TestApplyContextUpdateSetReplacesList(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldWatchPatterns,
		Action: ActionSet,
		Value:  json.RawMessage(`[{"pattern": "late-night food delivery", "meaning": "stress spending"}]`),
	})

	require.NoError(t, err)
	require.Len(t, uc.WatchPatterns, 1)
	require.Equal(t, "late-night food delivery", uc.WatchPatterns[0].Pattern)
}

func TestApplyContextUpdateSetNarrative(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldContextNarrative,
		Action: ActionSet,
		Value:  json.RawMessage(`"rewritten narrative"`),
	})

	require.NoError(t, err)
	require.Equal(t, "rewritten narrative", uc.ContextNarrative)
}

func TestApplyContextUpdateScalarRejectsAppendAndRemove(t *testing.T) {
	for _, action := range []string{ActionAppend, ActionRemove} {
		t.Run(action, func(t *testing.T) {
			uc := baseContext()
			err := ApplyContextUpdate(&uc, ContextUpdate{
				Field:  FieldContextNarrative,
				Action: action,
				Value:  json.RawMessage(`"x"`),
			})
			require.Error(t, err)
			require.Equal(t, "original narrative", uc.ContextNarrative)

			err = ApplyContextUpdate(&uc, ContextUpdate{
				Field:  FieldSpendingTargets,
				Action: action,
				Value:  json.RawMessage(`{"discretionaryPercent": 20}`),
			})
			require.Error(t, err)
		})
	}
}

func TestApplyContextUpdateSetSpendingTargets(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldSpendingTargets,
		Action: ActionSet,
		Value:  json.RawMessage(`{"discretionaryPercent": 25, "categoryTargets": {"Groceries": 600}}`),
	})

	require.NoError(t, err)
	require.Equal(t, 25.0, uc.SpendingTargets.DiscretionaryPercent)
	require.Equal(t, 600.0, uc.SpendingTargets.CategoryTargets["Groceries"])
}

func TestApplyContextUpdateUnknownFieldAndAction(t *testing.T) {
	uc := baseContext()

	err := ApplyContextUpdate(&uc, ContextUpdate{Field: "favorite_color", Action: ActionSet, Value: json.RawMessage(`"blue"`)})
	require.Error(t, err)

	err = ApplyContextUpdate(&uc, ContextUpdate{Field: FieldWatchPatterns, Action: "toggle", Value: json.RawMessage(`{}`)})
	require.Error(t, err)
}

func TestApplyContextUpdateRemoveSelectorMatchesFieldKey(t *testing.T) {
	uc := baseContext()
	uc.HouseholdMembers = []domain.HouseholdMember{{Name: "Sam"}, {Name: "Alex"}}
	uc.WatchPatterns = []domain.WatchPattern{{Pattern: "weekend impulse buys"}}

	err := ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldHouseholdMembers,
		Action: ActionRemove,
		Value:  json.RawMessage(`{"item": "Sam"}`),
	})
	require.NoError(t, err)
	require.Len(t, uc.HouseholdMembers, 1)
	require.Equal(t, "Alex", uc.HouseholdMembers[0].Name)

	err = ApplyContextUpdate(&uc, ContextUpdate{
		Field:  FieldWatchPatterns,
		Action: ActionRemove,
		Value:  json.RawMessage(`{"item": "weekend impulse buys"}`),
	})
	require.NoError(t, err)
	require.Empty(t, uc.WatchPatterns)
}
