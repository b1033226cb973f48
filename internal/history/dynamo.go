package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DefaultTableName = "FusionadosHistory"
	// TypeCreatedAtIndex is the GSI with partition key "type" and sort key
	// "createdAt".
	TypeCreatedAtIndex = "TypeCreatedAtIndex"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements Store on a DynamoDB table keyed by id.
type DynamoStore struct {
	api   DynamoAPI
	table string
	index string
}

// NewDynamoStore wraps an existing client.
func NewDynamoStore(api DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultTableName
	}
	return &DynamoStore{api: api, table: table, index: TypeCreatedAtIndex}
}

// NewDynamoClient builds a DynamoDB client from the default AWS credential
// chain. endpoint, when set, overrides the service URL (DynamoDB Local).
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// dynamoItem is the stored shape. data keeps the payload as a native
// DynamoDB map or list rather than an encoded string.
type dynamoItem struct {
	ID        string `dynamodbav:"id"`
	Type      string `dynamodbav:"type"`
	CreatedAt string `dynamodbav:"createdAt"`
	Data      any    `dynamodbav:"data"`
}

func (s *DynamoStore) Put(ctx context.Context, rec Record) error {
	var data any
	if err := json.Unmarshal(rec.Payload, &data); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	av, err := attributevalue.MarshalMap(dynamoItem{
		ID:        rec.ID,
		Type:      string(rec.Kind),
		CreatedAt: rec.CreatedAt,
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("marshal item: %w", err)
	}
	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

func (s *DynamoStore) Query(ctx context.Context, q Query) (Page, error) {
	startKey, err := decodeCursor(q.Cursor, "id", "type", "createdAt")
	if err != nil {
		return Page{}, err
	}
	if startKey != nil && startKey["type"] != string(q.Kind) {
		return Page{}, fmt.Errorf("%w: cursor belongs to another kind", ErrInvalidCursor)
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		IndexName:              aws.String(s.index),
		KeyConditionExpression: aws.String("#type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#type": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":type": &types.AttributeValueMemberS{Value: string(q.Kind)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(q.Limit)),
	}
	if startKey != nil {
		in.ExclusiveStartKey = make(map[string]types.AttributeValue, len(startKey))
		for k, v := range startKey {
			in.ExclusiveStartKey[k] = &types.AttributeValueMemberS{Value: v}
		}
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return Page{}, fmt.Errorf("query: %w", err)
	}

	var items []dynamoItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return Page{}, fmt.Errorf("unmarshal items: %w", err)
	}
	page := Page{Items: make([]Record, 0, len(items))}
	for _, it := range items {
		payload, err := json.Marshal(it.Data)
		if err != nil {
			return Page{}, fmt.Errorf("encode payload of %s: %w", it.ID, err)
		}
		page.Items = append(page.Items, Record{
			ID:        it.ID,
			Kind:      Kind(it.Type),
			CreatedAt: it.CreatedAt,
			Payload:   payload,
		})
	}
	page.NextCursor = encodeCursor(stringKey(out.LastEvaluatedKey))
	return page, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *DynamoStore) Close() error { return nil }

// stringKey keeps the string attributes of a DynamoDB key. All key
// attributes of the table and index are strings.
func stringKey(key map[string]types.AttributeValue) map[string]string {
	if len(key) == 0 {
		return nil
	}
	out := make(map[string]string, len(key))
	for k, v := range key {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out[k] = s.Value
		}
	}
	return out
}
