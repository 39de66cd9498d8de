package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/LovationAdmin/astrodart-api/models"
)

const dynamoKey = "UserId"

// DynamoAPI is the part of the DynamoDB client the store calls.
type DynamoAPI interface {
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type DynamoStore struct {
	client DynamoAPI
	table  string
}

// NewDynamoStore loads AWS credentials from the default chain. A non-empty
// endpoint points the client at a local DynamoDB.
func NewDynamoStore(ctx context.Context, region, endpoint, table string) (*DynamoStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return NewDynamoStoreWithClient(client, table), nil
}

func NewDynamoStoreWithClient(client DynamoAPI, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) key(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKey: &types.AttributeValueMemberS{Value: userID},
	}
}

func (s *DynamoStore) Scan(ctx context.Context, startKey string, limit int) (*Page, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(s.table),
		Limit:     aws.Int32(int32(pageLimit(limit))),
	}
	if startKey != "" {
		input.ExclusiveStartKey = s.key(startKey)
	}

	out, err := s.client.Scan(ctx, input)
	if err != nil {
		return nil, err
	}

	page := &Page{Users: make([]models.User, 0, len(out.Items))}
	for _, item := range out.Items {
		var d document
		if err := attributevalue.UnmarshalMap(item, &d); err != nil {
			userID := ""
			if id, ok := item[dynamoKey].(*types.AttributeValueMemberS); ok {
				userID = id.Value
			}
			page.reject(userID, fmt.Errorf("decode user: %w", err))
			continue
		}
		page.Users = append(page.Users, fromDocument(d))
	}
	if next, ok := out.LastEvaluatedKey[dynamoKey].(*types.AttributeValueMemberS); ok {
		page.NextKey = next.Value
	}
	return page, nil
}

func (s *DynamoStore) Get(ctx context.Context, userID string) (*models.User, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var d document
	if err := attributevalue.UnmarshalMap(out.Item, &d); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	user := fromDocument(d)
	return &user, nil
}

func (s *DynamoStore) Put(ctx context.Context, user *models.User) error {
	item, err := attributevalue.MarshalMap(toDocument(user))
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	return err
}

func (s *DynamoStore) Update(ctx context.Context, userID string, field models.Field, value interface{}) error {
	encoded, err := encodeField(field, value)
	if err != nil {
		return err
	}
	av, err := attributevalue.Marshal(encoded)
	if err != nil {
		return fmt.Errorf("encode %s: %w", field, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       s.key(userID),
		UpdateExpression:          aws.String("SET #f = :x"),
		ConditionExpression:       aws.String("attribute_exists(" + dynamoKey + ")"),
		ExpressionAttributeNames:  map[string]string{"#f": string(field)},
		ExpressionAttributeValues: map[string]types.AttributeValue{":x": av},
	})

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return ErrNotFound
	}
	return err
}

func (s *DynamoStore) Delete(ctx context.Context, userID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       s.key(userID),
	})
	return err
}
