package cloud

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aquatracking/aquatracking/internal/docstore"
)

// DynamoDBStore keeps every collection in its own table keyed by "id".
type DynamoDBStore struct {
	svc    *dynamodb.Client
	prefix string
}

var _ docstore.Store = (*DynamoDBStore)(nil)

// NewDynamoDBStore creates a new DynamoDB backed document store.
func NewDynamoDBStore(ctx context.Context, region, tablePrefix string) (*DynamoDBStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &DynamoDBStore{svc: dynamodb.NewFromConfig(cfg), prefix: tablePrefix}, nil
}

func (s *DynamoDBStore) table(collection string) *string {
	return aws.String(s.prefix + collection)
}

func useJSONTags(o *attributevalue.EncoderOptions)    { o.TagKey = "json" }
func decodeJSONTags(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func (s *DynamoDBStore) put(ctx context.Context, collection, id string, doc any, cond *string) error {
	item, err := attributevalue.MarshalMapWithOptions(doc, useJSONTags)
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", collection, id, err)
	}
	item["id"] = &types.AttributeValueMemberS{Value: id}

	_, err = s.svc.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           s.table(collection),
		Item:                item,
		ConditionExpression: cond,
	})
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoDBStore) Insert(ctx context.Context, collection, id string, doc any) error {
	err := s.put(ctx, collection, id, doc, aws.String("attribute_not_exists(id)"))
	if isConditionFailed(err) {
		return docstore.ErrDuplicate
	}
	return err
}

func (s *DynamoDBStore) Put(ctx context.Context, collection, id string, doc any) error {
	return s.put(ctx, collection, id, doc, nil)
}

func (s *DynamoDBStore) Replace(ctx context.Context, collection, id string, doc any) error {
	err := s.put(ctx, collection, id, doc, aws.String("attribute_exists(id)"))
	if isConditionFailed(err) {
		return docstore.ErrNotFound
	}
	return err
}

func (s *DynamoDBStore) Get(ctx context.Context, collection, id string, out any) error {
	res, err := s.svc.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      s.table(collection),
		Key:            idKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	if len(res.Item) == 0 {
		return docstore.ErrNotFound
	}
	if err := attributevalue.UnmarshalMapWithOptions(res.Item, out, decodeJSONTags); err != nil {
		return fmt.Errorf("failed to unmarshal %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoDBStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.svc.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           s.table(collection),
		Key:                 idKey(id),
		ConditionExpression: aws.String("attribute_exists(id)"),
	})
	if isConditionFailed(err) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DynamoDBStore) Find(ctx context.Context, collection string, filter docstore.Filter, out any) error {
	input, err := scanInput(s.table(collection), filter)
	if err != nil {
		return err
	}

	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewScanPaginator(s.svc, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		items = append(items, page.Items...)
	}

	if items == nil {
		items = []map[string]types.AttributeValue{}
	}
	if err := attributevalue.UnmarshalListOfMapsWithOptions(items, out, decodeJSONTags); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", collection, err)
	}
	return nil
}

func (s *DynamoDBStore) Count(ctx context.Context, collection string, filter docstore.Filter) (int64, error) {
	input, err := scanInput(s.table(collection), filter)
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	var total int64
	paginator := dynamodb.NewScanPaginator(s.svc, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count %s: %w", collection, err)
		}
		total += int64(page.Count)
	}
	return total, nil
}

// EnsureTables creates any missing collection table with on-demand billing.
func (s *DynamoDBStore) EnsureTables(ctx context.Context, collections ...string) error {
	for _, c := range collections {
		_, err := s.svc.CreateTable(ctx, &dynamodb.CreateTableInput{
			TableName:   s.table(c),
			BillingMode: types.BillingModePayPerRequest,
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String("id"), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String("id"), KeyType: types.KeyTypeHash},
			},
		})
		var inUse *types.ResourceInUseException
		if err != nil && !errors.As(err, &inUse) {
			return fmt.Errorf("failed to create table %s: %w", aws.ToString(s.table(c)), err)
		}
	}
	return nil
}

// scanInput turns an equality filter into a Scan FilterExpression. Keys are
// sorted so the expression is deterministic.
func scanInput(table *string, filter docstore.Filter) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{TableName: table, ConsistentRead: aws.Bool(true)}
	if len(filter) == 0 {
		return input, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := make(map[string]string, len(keys))
	values := make(map[string]types.AttributeValue, len(keys))
	expr := ""
	for i, k := range keys {
		av, err := attributevalue.MarshalWithOptions(filter[k], useJSONTags)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter %s: %w", k, err)
		}
		name, value := fmt.Sprintf("#f%d", i), fmt.Sprintf(":v%d", i)
		names[name] = k
		values[value] = av
		if i > 0 {
			expr += " AND "
		}
		expr += name + " = " + value
	}
	input.FilterExpression = aws.String(expr)
	input.ExpressionAttributeNames = names
	input.ExpressionAttributeValues = values
	return input, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return err != nil && errors.As(err, &ccf)
}
