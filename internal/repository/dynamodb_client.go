package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"support-agent/internal/domain"
)

const (
	skPrefixMsg = "MSG#"
	skMeta      = "META#"
	ttlDuration = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ReadWriter defines the conversation state operations consumed by the turn
// pipeline.
type ReadWriter interface {
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	SaveCompletedTurn(ctx context.Context, conversationID, userInput, assistantOutput, lastIntent string, turns int) error
}

// Client wraps a DynamoDB table for conversation state.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// msgSK returns the sort key for a message. seq orders the two sides of one
// turn, which share a timestamp.
func msgSK(ts time.Time, seq int) string {
	return fmt.Sprintf("%s%s#%d", skPrefixMsg, ts.UTC().Format(time.RFC3339Nano), seq)
}

// ttlValue returns a Unix timestamp 30 days in the future.
func ttlValue() int64 {
	return time.Now().Add(ttlDuration).Unix()
}

// GetRecentMessages returns the trailing window of conversation messages
// ordered oldest to newest, ready for the memory indexer.
func (c *Client) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	pk := convPK(conversationID)

	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent context.
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetRecentMessages query: %w", err)
	}

	msgs := make([]domain.ChatMessage, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToChatMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetRecentMessages unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	// Reverse to chronological order before handing off to the indexer.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetConversationTurnCount returns the persisted completed turn count for a conversation.
func (c *Client) GetConversationTurnCount(ctx context.Context, conversationID string) (int, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: convPK(conversationID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return 0, nil
	}

	turns, err := intAttr(out.Item, "turns")
	if err != nil {
		return 0, fmt.Errorf("repository: GetConversationTurnCount decode turns: %w", err)
	}
	return turns, nil
}

// SaveCompletedTurn persists both sides of a completed turn plus the updated
// conversation metadata in one transaction.
func (c *Client) SaveCompletedTurn(ctx context.Context, conversationID, userInput, assistantOutput, lastIntent string, turns int) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: SaveCompletedTurn: conversation id is required")
	}

	now := time.Now().UTC()
	userMsg := newMessage(conversationID, domain.RoleUser, userInput, now, 0)
	assistantMsg := newMessage(conversationID, domain.RoleAssistant, assistantOutput, now, 1)
	meta := newConversationMeta(conversationID, lastIntent, turns)

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
		return fmt.Errorf("repository: SaveCompletedTurn: %w", err)
	}
	return nil
}

// newMessage constructs a Message with PK/SK/TTL set from conversationID and
// the turn timestamp.
func newMessage(conversationID, role, content string, ts time.Time, seq int) domain.Message {
	return domain.Message{
		PK:             convPK(conversationID),
		SK:             msgSK(ts, seq),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		TTL:            ttlValue(),
	}
}

// newConversationMeta constructs a ConversationMeta record.
func newConversationMeta(conversationID, lastIntent string, turns int) domain.ConversationMeta {
	return domain.ConversationMeta{
		PK:             convPK(conversationID),
		SK:             skMeta,
		ConversationID: conversationID,
		LastActivity:   time.Now().UTC().Format(time.RFC3339),
		LastIntent:     lastIntent,
		Turns:          turns,
		TTL:            ttlValue(),
	}
}

// itemToChatMessage converts a DynamoDB attribute map to the provider-agnostic
// chat message shape.
func itemToChatMessage(item map[string]types.AttributeValue) (domain.ChatMessage, error) {
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return domain.ChatMessage{Role: role, Content: content}, nil
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
		"lastActivity":   &types.AttributeValueMemberS{Value: meta.LastActivity},
		"lastIntent":     &types.AttributeValueMemberS{Value: meta.LastIntent},
		"turns":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.Turns)},
		"ttl":            &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", meta.TTL)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
