// Package dynamo is a thin typed layer over the AWS DynamoDB client.
// It exposes conditional single-item writes, bounded multi-item
// transactions and batch writes, consistent-by-default point reads and
// GSI range queries. Conditions are the only concurrency primitive the
// service uses; there are no locks anywhere above this package.
package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// API is the subset of the DynamoDB client this service calls.
// *dynamodb.Client satisfies it, as does the in-memory store in dynamotest.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Client binds an API to a table definition.
type Client struct {
	api   API
	table TableDefinition
}

func New(api API, table TableDefinition) *Client {
	return &Client{api: api, table: table}
}

func (c *Client) Table() TableDefinition {
	return c.table
}

// NewTx creates a transaction. Add actions and commit.
func (c *Client) NewTx() *Tx {
	return newTx(c.api, c.table)
}

// NewBatch creates a write batch. Add puts/deletes and exec.
func (c *Client) NewBatch() *Batch {
	return newBatch(c.api, c.table)
}
