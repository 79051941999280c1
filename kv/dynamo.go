package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// sortPlaceholder is the sort key used for keys with fewer than three segments
const sortPlaceholder = "#"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore maps keys onto a table with string partition key "pk" and
// sort key "sk". The first two key segments form the partition, the rest the
// sort key, so List prefixes must name at least two segments.
type DynamoStore struct {
	db    DynamoAPI
	table string
}

// dynamoItem is the stored row shape
type dynamoItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Value     string `dynamodbav:"value"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// NewDynamoStore creates a store over the given table
func NewDynamoStore(db DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{db: db, table: table}
}

// splitKey turns "a:b:c:d" into ("a:b", "c:d")
func splitKey(key string) (pk, sk string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return key, sortPlaceholder
	}
	return parts[0] + ":" + parts[1], parts[2]
}

func joinKey(pk, sk string) string {
	if sk == sortPlaceholder {
		return pk
	}
	return pk + ":" + sk
}

func keyAttrs(key string) map[string]types.AttributeValue {
	pk, sk := splitKey(key)
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

// Get retrieves a value by key
func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttrs(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, err
	}
	return []byte(item.Value), nil
}

func (s *DynamoStore) put(ctx context.Context, key string, value []byte, condition *string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	pk, sk := splitKey(key)
	item, err := attributevalue.MarshalMap(dynamoItem{
		PK:        pk,
		SK:        sk,
		Value:     string(value),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: condition,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return ErrExists
	}
	return err
}

// Put inserts or replaces a value
func (s *DynamoStore) Put(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, nil)
}

// PutIfAbsent inserts a value only when the key is free
func (s *DynamoStore) PutIfAbsent(ctx context.Context, key string, value []byte) error {
	return s.put(ctx, key, value, aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"))
}

// Delete removes a key
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       keyAttrs(key),
	})
	return err
}

// List queries one partition and filters by the remaining prefix
func (s *DynamoStore) List(ctx context.Context, prefix string) ([]Item, error) {
	if strings.Count(prefix, ":") < 2 {
		return nil, ErrInvalidKey
	}
	pk, skPrefix := splitKey(prefix)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
		ConsistentRead: aws.Bool(true),
	}
	if skPrefix != "" {
		input.KeyConditionExpression = aws.String("pk = :pk AND begins_with(sk, :sk)")
		input.ExpressionAttributeValues[":sk"] = &types.AttributeValueMemberS{Value: skPrefix}
	}

	var items []Item
	paginator := dynamodb.NewQueryPaginator(s.db, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var rows []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &rows); err != nil {
			return nil, err
		}
		for _, r := range rows {
			key := joinKey(r.PK, r.SK)
			if !strings.HasPrefix(key, prefix) {
				continue
			}
			items = append(items, Item{Key: key, Value: []byte(r.Value)})
		}
	}
	return items, nil
}

// Ping checks that the table is reachable
func (s *DynamoStore) Ping(ctx context.Context) error {
	_, err := s.db.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.table)})
	return err
}

func (s *DynamoStore) Close() error { return nil }
