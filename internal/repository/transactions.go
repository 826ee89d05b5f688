package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"hearthledger/internal/domain"
)

// ErrTransactionNotFound is returned by SetTransactionCategory when the id
// does not exist in the user's ledger.
var ErrTransactionNotFound = errors.New("repository: transaction not found")

const maxTransactionPage = 500

// ListTransactions queries a user's ledger rows, newest first. Empty date
// bounds widen to the full ledger. The sort key embeds date and time, so the
// range condition is the date filter.
func (c *Client) ListTransactions(ctx context.Context, userID, startDate, endDate string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > maxTransactionPage {
		limit = maxTransactionPage
	}
	lo := skPrefixTxn
	if startDate != "" {
		lo = skPrefixTxn + startDate
	}
	hi := skPrefixTxn + "9999"
	if endDate != "" {
		// Trailing tilde sorts after any same-date time suffix.
		hi = skPrefixTxn + endDate + "~"
	}

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND SK BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: userPK(userID)},
			":lo": &types.AttributeValueMemberS{Value: lo},
			":hi": &types.AttributeValueMemberS{Value: hi},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: ListTransactions query: %w", err)
	}

	txns := make([]domain.Transaction, 0, len(out.Items))
	for _, item := range out.Items {
		txn, err := itemToTransaction(item)
		if err != nil {
			return nil, fmt.Errorf("repository: ListTransactions unmarshal: %w", err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// SetTransactionCategory assigns category and classification to a transaction
// and clears its needs-review flag. The id is resolved within the user's
// partition, so one user cannot touch another's ledger.
func (c *Client) SetTransactionCategory(ctx context.Context, userID, transactionID, category string, classification domain.Classification) error {
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		FilterExpression:       aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTxn},
			":id":     &types.AttributeValueMemberS{Value: transactionID},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetTransactionCategory lookup: %w", err)
	}
	if len(out.Items) == 0 {
		return ErrTransactionNotFound
	}

	sk, err := strAttr(out.Items[0], "SK")
	if err != nil {
		return fmt.Errorf("repository: SetTransactionCategory decode: %w", err)
	}
	_, err = c.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression: aws.String("SET category = :cat, classification = :class, needsReview = :review"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cat":    &types.AttributeValueMemberS{Value: category},
			":class":  &types.AttributeValueMemberS{Value: string(classification)},
			":review": &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SetTransactionCategory update: %w", err)
	}
	return nil
}

// UpsertMerchantMapping stores a merchant-pattern to category rule for the
// external ingester to apply on future imports.
func (c *Client) UpsertMerchantMapping(ctx context.Context, userID string, mapping domain.MerchantMapping) error {
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":             &types.AttributeValueMemberS{Value: userPK(userID)},
			"SK":             &types.AttributeValueMemberS{Value: skPrefixMapping + mapping.Pattern},
			"userId":         &types.AttributeValueMemberS{Value: userID},
			"pattern":        &types.AttributeValueMemberS{Value: mapping.Pattern},
			"category":       &types.AttributeValueMemberS{Value: mapping.Category},
			"classification": &types.AttributeValueMemberS{Value: string(mapping.Classification)},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: UpsertMerchantMapping: %w", err)
	}
	return nil
}

func itemToTransaction(item map[string]types.AttributeValue) (domain.Transaction, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.Transaction{}, err
	}
	date, err := strAttr(item, "date")
	if err != nil {
		return domain.Transaction{}, err
	}
	rawAmount, err := numAttr(item, "amount")
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("repository: parse amount %q: %w", rawAmount, err)
	}

	txn := domain.Transaction{
		ID:          id,
		Date:        date,
		Amount:      amount,
		NeedsReview: boolAttr(item, "needsReview"),
	}
	txn.Time, _ = strAttr(item, "time")
	txn.Description, _ = strAttr(item, "description")
	txn.Category, _ = strAttr(item, "category")
	txn.Merchant, _ = strAttr(item, "merchant")
	if class, err := strAttr(item, "classification"); err == nil {
		txn.Classification = domain.Classification(class)
	}
	return txn, nil
}

// transactionItem renders a ledger row as DynamoDB attributes. The ingestion
// collaborator writes these; the repository keeps the shape so tests can seed
// realistic items.
func transactionItem(userID string, txn domain.Transaction) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: userPK(userID)},
		"SK":             &types.AttributeValueMemberS{Value: txnSK(txn.Date, txn.Time, txn.ID)},
		"id":             &types.AttributeValueMemberS{Value: txn.ID},
		"date":           &types.AttributeValueMemberS{Value: txn.Date},
		"time":           &types.AttributeValueMemberS{Value: txn.Time},
		"description":    &types.AttributeValueMemberS{Value: txn.Description},
		"amount":         &types.AttributeValueMemberN{Value: txn.Amount.String()},
		"category":       &types.AttributeValueMemberS{Value: txn.Category},
		"classification": &types.AttributeValueMemberS{Value: string(txn.Classification)},
		"merchant":       &types.AttributeValueMemberS{Value: txn.Merchant},
		"needsReview":    &types.AttributeValueMemberBOOL{Value: txn.NeedsReview},
	}
}

func numAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a number", key)
	}
	return n.Value, nil
}
