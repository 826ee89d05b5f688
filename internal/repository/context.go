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

// GetUserContext loads the context record for a user. A missing or malformed
// record reads as the documented default with onboarded=false; only transport
// failures surface as errors.
func (c *Client) GetUserContext(ctx context.Context, userID string) (domain.UserContext, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: skContext},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.UserContext{}, false, fmt.Errorf("repository: GetUserContext: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.DefaultUserContext(), false, nil
	}

	raw, err := strAttr(out.Item, "context")
	if err != nil {
		return domain.DefaultUserContext(), false, nil
	}
	var uc domain.UserContext
	if err := json.Unmarshal([]byte(raw), &uc); err != nil {
		return domain.DefaultUserContext(), false, nil
	}
	return uc, boolAttr(out.Item, "onboarded"), nil
}

// SaveUserContext upserts the full context record and marks onboarding
// complete. This is the designated finalize path; it is safe to call twice
// with the same payload.
func (c *Client) SaveUserContext(ctx context.Context, userID string, uc domain.UserContext) error {
	raw, err := json.Marshal(uc)
	if err != nil {
		return fmt.Errorf("repository: SaveUserContext marshal: %w", err)
	}
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK":        &types.AttributeValueMemberS{Value: skContext},
			"userId":    &types.AttributeValueMemberS{Value: userID},
			"context":   &types.AttributeValueMemberS{Value: string(raw)},
			"onboarded": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveUserContext: %w", err)
	}
	return nil
}
