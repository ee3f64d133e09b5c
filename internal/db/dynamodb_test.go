package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"github.com/spacesedan/agora/internal/db"
)

// fakeDynamo keeps items per table keyed by row_id.
type fakeDynamo struct {
	mu      sync.Mutex
	tables  map[string]map[string]map[string]types.AttributeValue
	created []string
	order   map[string][]string
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
		order:  make(map[string][]string),
	}
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tables[*in.TableName]; !ok {
		return nil, &types.ResourceNotFoundException{Message: in.TableName}
	}
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{TableName: in.TableName, TableStatus: types.TableStatusActive},
	}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.tables[*in.TableName] = make(map[string]map[string]types.AttributeValue)
	f.created = append(f.created, *in.TableName)
	return &dynamodb.CreateTableOutput{
		TableDescription: &types.TableDescription{TableName: in.TableName, TableStatus: types.TableStatusActive},
	}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table, ok := f.tables[*in.TableName]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: in.TableName}
	}
	id := in.Item["row_id"].(*types.AttributeValueMemberS).Value
	table[id] = in.Item
	f.order[*in.TableName] = append(f.order[*in.TableName], id)
	return &dynamodb.PutItemOutput{}, nil
}

// Scan returns items in reverse insertion order so the backend has to sort.
func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	table := f.tables[*in.TableName]
	ids := f.order[*in.TableName]
	items := make([]map[string]types.AttributeValue, 0, len(table))
	for i := len(ids) - 1; i >= 0; i-- {
		if item, ok := table[ids[i]]; ok {
			items = append(items, item)
		}
	}
	return &dynamodb.ScanOutput{Items: items}, nil
}

func (f *fakeDynamo) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for name, requests := range in.RequestItems {
		if len(requests) > 25 {
			return nil, fmt.Errorf("batch too large: %d", len(requests))
		}
		for _, req := range requests {
			id := req.DeleteRequest.Key["row_id"].(*types.AttributeValueMemberS).Value
			delete(f.tables[name], id)
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (f *fakeDynamo) count(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[table])
}

func TestDynamoBackend_EnsureTableCreatesOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	backend := db.NewDynamoBackend(fake, "agora-")

	require.NoError(t, backend.EnsureTable(ctx, db.RepliesTable))
	require.NoError(t, backend.EnsureTable(ctx, db.RepliesTable))
	require.Equal(t, []string{"agora-Replies"}, fake.created)
}

func TestDynamoBackend_AppendAndReadInOrder(t *testing.T) {
	ctx := context.Background()
	backend := db.NewDynamoBackend(newFakeDynamo(), "agora-")
	require.NoError(t, db.EnsureAll(ctx, backend))

	for i := 0; i < 5; i++ {
		require.NoError(t, backend.AppendRow(ctx, db.RepliesTable.Name,
			[]string{"r1", fmt.Sprintf("reply %d", i), "t"}))
	}

	records, err := backend.ReadAll(ctx, db.RepliesTable.Name)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		require.Equal(t, fmt.Sprintf("reply %d", i), rec.Get("reply"))
	}
}

func TestDynamoBackend_Errors(t *testing.T) {
	ctx := context.Background()
	backend := db.NewDynamoBackend(newFakeDynamo(), "")
	require.NoError(t, backend.EnsureTable(ctx, db.RepliesTable))

	require.ErrorIs(t, backend.AppendRow(ctx, "Nope", []string{"x"}), db.ErrUnknownTable)
	require.ErrorIs(t, backend.AppendRow(ctx, db.RepliesTable.Name, []string{"x"}), db.ErrRowShape)

	_, err := backend.ReadAll(ctx, "Nope")
	require.ErrorIs(t, err, db.ErrUnknownTable)
}

func TestDynamoBackend_TrimBatchesDeletes(t *testing.T) {
	ctx := context.Background()
	fake := newFakeDynamo()
	backend := db.NewDynamoBackend(fake, "agora-")
	require.NoError(t, backend.EnsureTable(ctx, db.FieldNamesTable))

	for i := 0; i < 60; i++ {
		require.NoError(t, backend.AppendRow(ctx, db.FieldNamesTable.Name,
			[]string{fmt.Sprintf("name-%02d", i), "t"}))
	}

	require.NoError(t, backend.Trim(ctx, db.FieldNamesTable.Name, 10))
	require.Equal(t, 10, fake.count("agora-FieldNames"))

	records, err := backend.ReadAll(ctx, db.FieldNamesTable.Name)
	require.NoError(t, err)
	require.Equal(t, "name-50", records[0].Get("field_name"))
	require.Equal(t, "name-59", records[9].Get("field_name"))
}
