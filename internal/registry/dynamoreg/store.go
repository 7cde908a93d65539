// Package dynamoreg is the wide-column Registry backend backed by
// DynamoDB. Grounded in praetorian-inc-tabularium's pkg/registry/wrapper
// and model structs (the dynamodbav struct-tag convention,
// attributevalue.Marshal/Unmarshal round-tripping) — adapted here from a
// generic polymorphic-model wrapper to a single fixed Job schema.
package dynamoreg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/vizsched/vizsched/internal/job"
	"github.com/vizsched/vizsched/internal/registry"
)

// dynamoAPI is the subset of the DynamoDB SDK client this backend depends
// on, mirroring the ecsalloc.ecsAPI narrow-interface pattern for
// testability against a fake.
type dynamoAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// item is the DynamoDB-facing representation of a job.Job. Timestamps are
// stored as RFC3339 strings — DynamoDB has no native timestamp type, and
// string storage keeps ScanAll's comparisons and round-tripping exact.
type item struct {
	ID        string `dynamodbav:"id"`
	User      string `dynamodbav:"user_id"`
	StartTime string `dynamodbav:"start_time"`
	EndTime   string `dynamodbav:"end_time"`
	Host      string `dynamodbav:"hostname"`
}

func toItem(j job.Job) item {
	return item{
		ID:        j.ID,
		User:      j.User,
		StartTime: j.StartTime.UTC().Format(time.RFC3339Nano),
		EndTime:   j.EndTime.UTC().Format(time.RFC3339Nano),
		Host:      j.Host,
	}
}

func fromItem(it item) (job.Job, error) {
	start, err := time.Parse(time.RFC3339Nano, it.StartTime)
	if err != nil {
		return job.Job{}, fmt.Errorf("dynamoreg: parse start_time: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, it.EndTime)
	if err != nil {
		return job.Job{}, fmt.Errorf("dynamoreg: parse end_time: %w", err)
	}
	return job.Job{ID: it.ID, User: it.User, StartTime: start, EndTime: end, Host: it.Host}, nil
}

// Config holds the configuration required to open the registry table.
type Config struct {
	Table  string
	Region string
}

// Store is the DynamoDB-backed Registry implementation.
type Store struct {
	api   dynamoAPI
	table string
}

// New loads the default AWS config for region and constructs a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("dynamoreg: load aws config: %w", err)
	}
	return &Store{api: dynamodb.NewFromConfig(awsCfg), table: cfg.Table}, nil
}

// newWithAPI is used by tests to inject a fake dynamoAPI.
func newWithAPI(api dynamoAPI, table string) *Store {
	return &Store{api: api, table: table}
}

// EnsureSchema creates the table if it does not already exist, with "id" as
// the sole primary key — the DynamoDB equivalent of a relational PRIMARY
// KEY constraint (invariant 1).
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.api.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.table),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			return nil
		}
		return fmt.Errorf("dynamoreg: create table: %w", err)
	}
	return nil
}

// Insert durably persists a new job row using a conditional PutItem
// (attribute_not_exists(id)) to enforce invariant 1 the way a relational
// PRIMARY KEY does.
func (s *Store) Insert(ctx context.Context, j job.Job) error {
	av, err := attributevalue.MarshalMap(toItem(j))
	if err != nil {
		return fmt.Errorf("dynamoreg: marshal item: %w", err)
	}

	_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return registry.ErrConflict
		}
		return fmt.Errorf("dynamoreg: put item: %w", err)
	}
	return nil
}

// FetchByID retrieves a job by id. Returns registry.ErrNotFound if absent.
func (s *Store) FetchByID(ctx context.Context, id string) (job.Job, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
	})
	if err != nil {
		return job.Job{}, fmt.Errorf("dynamoreg: get item: %w", err)
	}
	if len(out.Item) == 0 {
		return job.Job{}, registry.ErrNotFound
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return job.Job{}, fmt.Errorf("dynamoreg: unmarshal item: %w", err)
	}
	return fromItem(it)
}

// ScanAll returns every row in the table, used only by the reaper. Uses the
// SDK's Scan paginator to walk every page.
func (s *Store) ScanAll(ctx context.Context) ([]job.Job, error) {
	paginator := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName: aws.String(s.table),
	})

	var jobs []job.Job
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("dynamoreg: scan: %w", err)
		}
		for _, rawItem := range page.Items {
			var it item
			if err := attributevalue.UnmarshalMap(rawItem, &it); err != nil {
				return nil, fmt.Errorf("dynamoreg: unmarshal scanned item: %w", err)
			}
			j, err := fromItem(it)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
	}
	return jobs, nil
}

// UpdateHost sets the hostname attribute for id. Idempotent by design —
// writing the same value twice is not an error (spec.md §5).
func (s *Store) UpdateHost(ctx context.Context, id, host string) error {
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		UpdateExpression:          aws.String("SET hostname = :h"),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": &types.AttributeValueMemberS{Value: host}},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return registry.ErrNotFound
		}
		return fmt.Errorf("dynamoreg: update item: %w", err)
	}
	return nil
}

// Delete removes the row for id. Returns registry.ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.table),
		Key:                 map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}},
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return registry.ErrNotFound
		}
		return fmt.Errorf("dynamoreg: delete item: %w", err)
	}
	return nil
}

// Close is a no-op: the underlying SDK client has no connection pool to
// release — it multiplexes over the shared http.Client from the AWS config.
func (s *Store) Close() error { return nil }

var _ registry.Registry = (*Store)(nil)
