package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hearthledger/internal/domain"
)

// GetOnboardingState loads a user's interview state. The second return value
// reports whether a record exists; an unrecognized stored phase reads as a
// fresh interview rather than an error.
func (c *Client) GetOnboardingState(ctx context.Context, userID string) (domain.OnboardingState, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: skOnboarding},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.OnboardingState{}, false, fmt.Errorf("repository: GetOnboardingState: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.NewOnboardingState(userID), false, nil
	}

	phase, err := strAttr(out.Item, "phase")
	if err != nil || domain.PhaseIndex(domain.OnboardingPhase(phase)) < 0 {
		return domain.NewOnboardingState(userID), true, nil
	}

	state := domain.OnboardingState{
		UserID:          userID,
		Phase:           domain.OnboardingPhase(phase),
		GatheredContext: map[string]any{},
		QuestionsAsked:  []string{},
	}
	state.ConversationID, _ = strAttr(out.Item, "conversationId")
	if raw, err := strAttr(out.Item, "gathered"); err == nil {
		_ = json.Unmarshal([]byte(raw), &state.GatheredContext)
	}
	if raw, err := strAttr(out.Item, "questions"); err == nil {
		_ = json.Unmarshal([]byte(raw), &state.QuestionsAsked)
	}
	return state, true, nil
}

// PutOnboardingState upserts a user's interview state. Called on every phase
// transition so partial interview progress survives interrupted turns.
func (c *Client) PutOnboardingState(ctx context.Context, state domain.OnboardingState) error {
	if domain.PhaseIndex(state.Phase) < 0 {
		return fmt.Errorf("repository: PutOnboardingState: unknown phase %q", state.Phase)
	}
	gathered, err := json.Marshal(state.GatheredContext)
	if err != nil {
		return fmt.Errorf("repository: PutOnboardingState marshal gathered: %w", err)
	}
	questions, err := json.Marshal(state.QuestionsAsked)
	if err != nil {
		return fmt.Errorf("repository: PutOnboardingState marshal questions: %w", err)
	}

	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: userPK(state.UserID)},
			"SK":             &types.AttributeValueMemberS{Value: skOnboarding},
			"userId":         &types.AttributeValueMemberS{Value: state.UserID},
			"conversationId": &types.AttributeValueMemberS{Value: state.ConversationID},
			"phase":          &types.AttributeValueMemberS{Value: string(state.Phase)},
			"gathered":       &types.AttributeValueMemberS{Value: string(gathered)},
			"questions":      &types.AttributeValueMemberS{Value: string(questions)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutOnboardingState: %w", err)
	}
	return nil
}
