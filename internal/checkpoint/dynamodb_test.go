package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/decommigrate/pkg/types"
)

type fakeDDB struct {
	items   map[string]map[string]ddbtypes.AttributeValue
	getErr  error
	putErr  error
	descErr error
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]ddbtypes.AttributeValue)}
}

func itemKey(item map[string]ddbtypes.AttributeValue) string {
	pk := item["PK"].(*ddbtypes.AttributeValueMemberS).Value
	sk := item["SK"].(*ddbtypes.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDDB) GetItem(ctx context.Context, input *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.items[itemKey(input.Key)]}, nil
}

func (f *fakeDDB) PutItem(ctx context.Context, input *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items[itemKey(input.Item)] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) DescribeTable(ctx context.Context, input *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if f.descErr != nil {
		return nil, f.descErr
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func TestDynamoDBSaveLoadRoundTrip(t *testing.T) {
	store := NewDynamoDBStoreFromClient(newFakeDDB(), "checkpoints")
	ctx := context.Background()

	cp := types.Checkpoint{
		RunID:           "01JTEST",
		LastFile:        "DEFAULT/decom_logs/tlm/INST/file.bin",
		LastFileTime:    time.Date(2026, 1, 15, 10, 30, 45, 0, time.UTC),
		FilesProcessed:  12,
		PacketsIngested: 34000,
		ErrorsCount:     1,
		StartedAt:       time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC),
		UpdatedAt:       time.Date(2026, 1, 15, 10, 31, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, "DEFAULT", cp))

	got, err := store.Load(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, got.RunID)
	assert.Equal(t, cp.LastFile, got.LastFile)
	assert.True(t, cp.LastFileTime.Equal(got.LastFileTime))
	assert.Equal(t, cp.FilesProcessed, got.FilesProcessed)
	assert.Equal(t, cp.PacketsIngested, got.PacketsIngested)
	assert.Equal(t, cp.ErrorsCount, got.ErrorsCount)
}

func TestDynamoDBScopesAreIsolated(t *testing.T) {
	store := NewDynamoDBStoreFromClient(newFakeDDB(), "checkpoints")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "DEFAULT", types.Checkpoint{RunID: "a"}))
	require.NoError(t, store.Save(ctx, "OTHER", types.Checkpoint{RunID: "b"}))

	got, err := store.Load(ctx, "DEFAULT")
	require.NoError(t, err)
	assert.Equal(t, "a", got.RunID)
}

func TestDynamoDBLoadMissing(t *testing.T) {
	store := NewDynamoDBStoreFromClient(newFakeDDB(), "checkpoints")
	_, err := store.Load(context.Background(), "DEFAULT")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDynamoDBErrors(t *testing.T) {
	ddb := newFakeDDB()
	store := NewDynamoDBStoreFromClient(ddb, "checkpoints")
	ctx := context.Background()

	ddb.getErr = errors.New("throttled")
	_, err := store.Load(ctx, "DEFAULT")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	ddb.putErr = errors.New("throttled")
	assert.Error(t, store.Save(ctx, "DEFAULT", types.Checkpoint{}))

	ddb.descErr = errors.New("no such table")
	assert.Error(t, store.Ping(ctx))
	ddb.descErr = nil
	assert.NoError(t, store.Ping(ctx))
}

func TestNewRejectsMisconfiguration(t *testing.T) {
	_, err := New(types.CheckpointConfig{Provider: types.CheckpointRedis})
	assert.Error(t, err)

	_, err = New(types.CheckpointConfig{Provider: types.CheckpointDynamoDB})
	assert.Error(t, err)

	_, err = New(types.CheckpointConfig{Provider: "etcd"})
	assert.Error(t, err)
}

func TestRedisKeyNamespacing(t *testing.T) {
	s := NewRedisStoreFromClient(nil, "")
	assert.Equal(t, "decommigrate:DEFAULT:checkpoint", s.key("DEFAULT"))

	s = NewRedisStoreFromClient(nil, "custom:")
	assert.Equal(t, "custom:OTHER:checkpoint", s.key("OTHER"))
}
