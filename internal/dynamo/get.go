package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a raw DynamoDB item. Callers unmarshal with attributevalue.UnmarshalMap.
type Item = map[string]types.AttributeValue

type GetOption func(*getOpts)

type getOpts struct {
	eventuallyConsistent bool
}

// EventuallyConsistent opts a point read out of strong consistency.
// Reads that gate writes (tenant status, settings, gift quantities) must
// not use this.
func EventuallyConsistent() GetOption {
	return func(o *getOpts) { o.eventuallyConsistent = true }
}

// GetItem fetches a single item by key. Strongly consistent by default.
// Returns nil with no error when the item does not exist.
func (c *Client) GetItem(ctx context.Context, key Key, opts ...GetOption) (Item, error) {
	var o getOpts
	for _, opt := range opts {
		opt(&o)
	}
	consistent := !o.eventuallyConsistent
	res, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &c.table.Name,
		Key:            c.table.AttributeValues(key),
		ConsistentRead: &consistent,
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if res.Item == nil {
		return nil, nil
	}
	return res.Item, nil
}
