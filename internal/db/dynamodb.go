package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	maxBatchSize      = 25
	maxBatchRetries   = 3
	tableActiveWait   = 2 * time.Minute
	rowIDAttribute    = "row_id"
	defaultBackoffDur = 500 * time.Millisecond
)

// DynamoDBAPI is the subset of the DynamoDB client the backend uses.
type DynamoDBAPI interface {
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// dynamoRow is the stored item shape: one DynamoDB table per logical table.
type dynamoRow struct {
	RowID string            `dynamodbav:"row_id"`
	Seq   int64             `dynamodbav:"seq"`
	Cells map[string]string `dynamodbav:"cells"`
}

type DynamoBackend struct {
	client  DynamoDBAPI
	prefix  string
	mu      sync.Mutex
	schemas map[string]Schema
	lastSeq int64
	now     func() time.Time
}

func NewDynamoBackend(client DynamoDBAPI, tablePrefix string) *DynamoBackend {
	return &DynamoBackend{
		client:  client,
		prefix:  tablePrefix,
		schemas: make(map[string]Schema),
		now:     time.Now,
	}
}

func (b *DynamoBackend) Close() error { return nil }

func (b *DynamoBackend) tableName(table string) string {
	return b.prefix + table
}

func (b *DynamoBackend) EnsureTable(ctx context.Context, schema Schema) error {
	name := b.tableName(schema.Name)

	_, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err == nil {
		b.register(schema)
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("[DynamoDB] describe table %s: %w", name, err)
	}

	slog.Info("[DynamoDB] Creating table", slog.String("table", name))
	out, err := b.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(rowIDAttribute), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(rowIDAttribute), KeyType: types.KeyTypeHash},
		},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] create table %s: %w", name, err)
	}

	if out.TableDescription == nil || out.TableDescription.TableStatus != types.TableStatusActive {
		waiter := dynamodb.NewTableExistsWaiter(b.client)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)}, tableActiveWait); err != nil {
			return fmt.Errorf("[DynamoDB] wait for table %s: %w", name, err)
		}
	}

	b.register(schema)
	return nil
}

func (b *DynamoBackend) register(schema Schema) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schemas[schema.Name] = schema
}

func (b *DynamoBackend) schema(table string) (Schema, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	schema, ok := b.schemas[table]
	if !ok {
		return Schema{}, fmt.Errorf("[DynamoDB] %w: %s", ErrUnknownTable, table)
	}
	return schema, nil
}

// nextSeq is strictly increasing within the process so append order survives
// equal clock readings.
func (b *DynamoBackend) nextSeq() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.now().UnixNano()
	if seq <= b.lastSeq {
		seq = b.lastSeq + 1
	}
	b.lastSeq = seq
	return seq
}

func (b *DynamoBackend) AppendRow(ctx context.Context, table string, row []string) error {
	schema, err := b.schema(table)
	if err != nil {
		return err
	}

	rec, err := recordFromRow(schema, row)
	if err != nil {
		return err
	}

	item, err := attributevalue.MarshalMap(dynamoRow{
		RowID: uuid.NewString(),
		Seq:   b.nextSeq(),
		Cells: rec,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] marshal row: %w", err)
	}

	_, err = b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName(table)),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] put row into %s: %w", table, err)
	}
	return nil
}

func (b *DynamoBackend) scanRows(ctx context.Context, table string) ([]dynamoRow, error) {
	if _, err := b.schema(table); err != nil {
		return nil, err
	}

	var rows []dynamoRow
	paginator := dynamodb.NewScanPaginator(b.client, &dynamodb.ScanInput{
		TableName: aws.String(b.tableName(table)),
	})

	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("[DynamoDB] scan %s failed: %w", table, err)
		}

		var page []dynamoRow
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			slog.Error("[DynamoDB] Unable to unmarshal page", slog.String("error", err.Error()))
			return nil, err
		}
		rows = append(rows, page...)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Seq != rows[j].Seq {
			return rows[i].Seq < rows[j].Seq
		}
		return rows[i].RowID < rows[j].RowID
	})
	return rows, nil
}

func (b *DynamoBackend) ReadAll(ctx context.Context, table string) ([]Record, error) {
	rows, err := b.scanRows(ctx, table)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec := Record(row.Cells)
		if rec == nil {
			rec = Record{}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (b *DynamoBackend) Trim(ctx context.Context, table string, maxRows int) error {
	if maxRows <= 0 {
		return nil
	}

	rows, err := b.scanRows(ctx, table)
	if err != nil {
		return err
	}
	if len(rows) <= maxRows {
		return nil
	}

	stale := rows[:len(rows)-maxRows]
	name := b.tableName(table)

	for i := 0; i < len(stale); i += maxBatchSize {
		select {
		case <-ctx.Done():
			slog.Warn("[DynamoDB] context canceled")
			return ctx.Err()
		default:
		}

		end := i + maxBatchSize
		if end > len(stale) {
			end = len(stale)
		}

		writeRequests := make([]types.WriteRequest, 0, maxBatchSize)
		for _, row := range stale[i:end] {
			writeRequests = append(writeRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						rowIDAttribute: &types.AttributeValueMemberS{Value: row.RowID},
					},
				},
			})
		}

		if err := b.batchWrite(ctx, name, writeRequests); err != nil {
			return err
		}
	}

	slog.Info("[DynamoDB] Trimmed table",
		slog.String("table", table),
		slog.Int("deleted", len(stale)))
	return nil
}

func (b *DynamoBackend) batchWrite(ctx context.Context, table string, requests []types.WriteRequest) error {
	out, err := b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{table: requests},
	})
	if err != nil {
		return fmt.Errorf("[DynamoDB] Failed to batch write: %w", err)
	}

	retryCount := 0
	backoff := defaultBackoffDur
	for len(out.UnprocessedItems) > 0 && retryCount < maxBatchRetries {
		time.Sleep(backoff)
		backoff *= 2

		slog.Warn("[DynamoDB] Retrying unprocessed items...",
			slog.Int("retry_attempt", retryCount+1),
			slog.Int("remaining_items", len(out.UnprocessedItems[table])))

		out, err = b.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: out.UnprocessedItems,
		})
		if err != nil {
			return fmt.Errorf("[DynamoDB] Failed to retry batch write: %w", err)
		}
		retryCount++
	}

	if len(out.UnprocessedItems) > 0 {
		slog.Error("[DynamoDB] Some items were not written even after retries",
			slog.Int("remaining_items", len(out.UnprocessedItems[table])))
	}
	return nil
}
