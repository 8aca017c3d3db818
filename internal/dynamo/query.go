package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// SortKeyStrategy narrows a range query on the sort key.
type SortKeyStrategy func(skName string) expression.KeyConditionBuilder

// SortKeyEquals returns items where the sort key equals the provided value.
func SortKeyEquals(v string) SortKeyStrategy {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyEqual(expression.Key(skName), expression.Value(v))
	}
}

// SortKeyBeginsWith returns items where the sort key starts with the prefix.
func SortKeyBeginsWith(prefix string) SortKeyStrategy {
	return func(skName string) expression.KeyConditionBuilder {
		return expression.KeyBeginsWith(expression.Key(skName), prefix)
	}
}

// Query is a range query over one partition of the table or a GSI.
// Ascending sort-key order, which for order-encoded index keys is
// display order. Queries are eventually consistent; they serve listing
// paths where slight staleness is tolerable.
type Query struct {
	c         *Client
	index     string
	partition string
	sort      SortKeyStrategy
	limit     int32
}

// NewQuery starts a query for one partition key value on the base table.
func (c *Client) NewQuery(partitionValue string) *Query {
	return &Query{c: c, partition: partitionValue}
}

// Index targets a GSI instead of the base table.
func (q *Query) Index(name string) *Query {
	q.index = name
	return q
}

// SortKey narrows the query on the sort key.
func (q *Query) SortKey(s SortKeyStrategy) *Query {
	q.sort = s
	return q
}

// Limit caps the total number of items returned by All.
func (q *Query) Limit(n int32) *Query {
	q.limit = n
	return q
}

// All runs the query to exhaustion, following pagination.
func (q *Query) All(ctx context.Context) ([]Item, error) {
	pkName := q.c.table.PartitionKey
	skName := q.c.table.SortKey
	var indexName *string
	if q.index != "" {
		gsi, err := q.c.table.GSI(q.index)
		if err != nil {
			return nil, err
		}
		pkName, skName = gsi.PartitionKey, gsi.SortKey
		indexName = &q.index
	}

	cond := expression.KeyEqual(expression.Key(pkName), expression.Value(q.partition))
	if q.sort != nil {
		cond = cond.And(q.sort(skName))
	}
	e, err := expression.NewBuilder().WithKeyCondition(cond).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	var items []Item
	var startKey Item
	for {
		res, err := q.c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &q.c.table.Name,
			IndexName:                 indexName,
			KeyConditionExpression:    e.KeyCondition(),
			ExpressionAttributeNames:  e.Names(),
			ExpressionAttributeValues: e.Values(),
			ExclusiveStartKey:         startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		for _, item := range res.Items {
			items = append(items, item)
			if q.limit > 0 && int32(len(items)) >= q.limit {
				return items, nil
			}
		}
		if res.LastEvaluatedKey == nil {
			return items, nil
		}
		startKey = res.LastEvaluatedKey
	}
}
