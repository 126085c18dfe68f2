package checkpoint

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

const checkpointSK = "CHECKPOINT"

// DDBAPI is the subset of the DynamoDB client used by DynamoDBStore.
type DDBAPI interface {
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBStore implements Store backed by a single DynamoDB table with a
// PK/SK key schema.
type DynamoDBStore struct {
	client    DDBAPI
	tableName string
}

// NewDynamoDBStore creates a DynamoDBStore.
func NewDynamoDBStore(cfg *types.DynamoDBConfig) (*DynamoDBStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: static credentials and a custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &DynamoDBStore{
		client:    dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName: cfg.TableName,
	}, nil
}

// NewDynamoDBStoreFromClient creates a DynamoDBStore from an existing client
// (useful for testing).
func NewDynamoDBStoreFromClient(client DDBAPI, tableName string) *DynamoDBStore {
	return &DynamoDBStore{client: client, tableName: tableName}
}

func scopePK(scope string) string {
	return "SCOPE#" + scope
}

// Load retrieves the checkpoint for a scope.
func (s *DynamoDBStore) Load(ctx context.Context, scope string) (*types.Checkpoint, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			"PK": &ddbtypes.AttributeValueMemberS{Value: scopePK(scope)},
			"SK": &ddbtypes.AttributeValueMemberS{Value: checkpointSK},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint for %s: %w", scope, err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var cp types.Checkpoint
	if err := attributevalue.UnmarshalMap(out.Item, &cp); err != nil {
		return nil, fmt.Errorf("decoding checkpoint for %s: %w", scope, err)
	}
	return &cp, nil
}

// Save overwrites the checkpoint for a scope.
func (s *DynamoDBStore) Save(ctx context.Context, scope string, cp types.Checkpoint) error {
	item, err := attributevalue.MarshalMap(cp)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	item["PK"] = &ddbtypes.AttributeValueMemberS{Value: scopePK(scope)}
	item["SK"] = &ddbtypes.AttributeValueMemberS{Value: checkpointSK}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("saving checkpoint for %s: %w", scope, err)
	}
	return nil
}

// Ping verifies the table is reachable.
func (s *DynamoDBStore) Ping(ctx context.Context) error {
	if _, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &s.tableName,
	}); err != nil {
		return fmt.Errorf("describe table %s: %w", s.tableName, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no long-lived connection state.
func (s *DynamoDBStore) Close(_ context.Context) error {
	return nil
}
