package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hearthledger/internal/domain"
)

// ErrConversationNotFound is returned when a conversation id has no META record.
var ErrConversationNotFound = errors.New("repository: conversation not found")

// CreateConversation writes the META record for a fresh conversation.
func (c *Client) CreateConversation(ctx context.Context, conversationID, userID string, agent domain.AgentType) error {
	meta := newConversationMeta(conversationID, userID, agent, 0)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                metaItem(meta),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: CreateConversation: %w", err)
	}
	return nil
}

// GetConversation loads the META record for a conversation.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (domain.ConversationMeta, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.ConversationMeta{}, fmt.Errorf("repository: GetConversation: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.ConversationMeta{}, ErrConversationNotFound
	}
	userID, err := strAttr(out.Item, "userId")
	if err != nil {
		return domain.ConversationMeta{}, fmt.Errorf("repository: GetConversation decode: %w", err)
	}
	agent, err := strAttr(out.Item, "agentType")
	if err != nil {
		return domain.ConversationMeta{}, fmt.Errorf("repository: GetConversation decode: %w", err)
	}
	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.ConversationMeta{}, fmt.Errorf("repository: GetConversation decode turns: %w", err)
	}
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		UserID:         userID,
		AgentType:      domain.AgentType(agent),
		Turns:          turns,
	}, nil
}

// GetHistory queries the most recent MSG# items for a conversation and
// returns them in chronological order.
func (c *Client) GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	// Reverse to chronological order before returning to prompt assembly.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// SaveTurn persists the user message, the assistant's final text and the
// updated conversation metadata in one transaction. Tool-call round-trips
// inside the agent loop are not persisted message-by-message.
func (c *Client) SaveTurn(ctx context.Context, conversationID, userID string, agent domain.AgentType, userText, assistantText string, turns int) error {
	now := time.Now().UTC()
	userMsg := newMessage(conversationID, domain.RoleUser, userText, now)
	// Nudge the assistant SK past the user SK so ordering survives
	// identical wall-clock reads.
	assistantMsg := newMessage(conversationID, domain.RoleAssistant, assistantText, now.Add(time.Millisecond))
	meta := newConversationMeta(conversationID, userID, agent, turns)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(userMsg),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                messageItem(assistantMsg),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item:      metaItem(meta),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

func newMessage(conversationID, role, content string, ts time.Time) domain.Message {
	return domain.Message{
		PK:             convPK(conversationID),
		SK:             msgSK(ts),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TTL:            conversationTTLValue(),
	}
}

func newConversationMeta(conversationID, userID string, agent domain.AgentType, turns int) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		UserID:         userID,
		AgentType:      agent,
		LastActivity:   time.Now().UTC().Format(time.RFC3339),
		Turns:          turns,
		TTL:            conversationTTLValue(),
	}
}

func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.Message{}, err
	}
	content, _ := strAttr(item, "content") // allow empty

	return domain.Message{
		PK:      pk,
		SK:      sk,
		Role:    role,
		Content: content,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: msg.PK},
		"SK":             &types.AttributeValueMemberS{Value: msg.SK},
		"conversationId": &types.AttributeValueMemberS{Value: msg.ConversationID},
		"role":           &types.AttributeValueMemberS{Value: msg.Role},
		"content":        &types.AttributeValueMemberS{Value: msg.Content},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", msg.TTL)},
	}
}

func metaItem(meta domain.ConversationMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: meta.PK},
		"SK":             &types.AttributeValueMemberS{Value: meta.SK},
		"conversationId": &types.AttributeValueMemberS{Value: meta.ConversationID},
		"userId":         &types.AttributeValueMemberS{Value: meta.UserID},
		"agentType":      &types.AttributeValueMemberS{Value: string(meta.AgentType)},
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.Turns)},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.TTL)},
	}
}
