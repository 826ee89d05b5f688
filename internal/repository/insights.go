package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hearthledger/internal/domain"
)

// PutInsight archives one generated insight. Insights are append-only.
func (c *Client) PutInsight(ctx context.Context, insight domain.Insight) error {
	createdAt := insight.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: userPK(insight.UserID)},
			"SK":        &types.AttributeValueMemberS{Value: skPrefixInsight + createdAt},
			"userId":    &types.AttributeValueMemberS{Value: insight.UserID},
			"content":   &types.AttributeValueMemberS{Value: insight.Content},
			"priority":  &types.AttributeValueMemberS{Value: string(insight.Priority)},
			"snapshot":  &types.AttributeValueMemberS{Value: insight.Snapshot},
			"createdAt": &types.AttributeValueMemberS{Value: createdAt},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: PutInsight: %w", err)
	}
	return nil
}

// ListInsights returns the most recent archived insights, newest first.
func (c *Client) ListInsights(ctx context.Context, userID string, limit int) ([]domain.Insight, error) {
	if limit <= 0 {
		limit = 10
	}
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixInsight},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListInsights query: %w", err)
	}

	insights := make([]domain.Insight, 0, len(out.Items))
	for _, item := range out.Items {
		content, err := strAttr(item, "content")
		if err != nil {
			return nil, fmt.Errorf("repository: ListInsights unmarshal: %w", err)
		}
		priority, _ := strAttr(item, "priority")
		snapshot, _ := strAttr(item, "snapshot")
		createdAt, _ := strAttr(item, "createdAt")
		insights = append(insights, domain.Insight{
			UserID:    userID,
			Content:   content,
			Priority:  domain.InsightPriority(priority),
			Snapshot:  snapshot,
			CreatedAt: createdAt,
		})
	}
	return insights, nil
}
