package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Delete removes an item by key.
type Delete struct {
	key Key
	c   expression.ConditionBuilder
}

func NewDelete(key Key) *Delete {
	return &Delete{key: key}
}

// Condition adds a condition expression (ANDed with any existing one).
// A conditioned delete cannot be used in a batch write.
func (d *Delete) Condition(c expression.ConditionBuilder) *Delete {
	if d.c.IsSet() {
		d.c = d.c.And(c)
	} else {
		d.c = c
	}
	return d
}

// IfExists conditions the delete on the item being present at commit time.
func (d *Delete) IfExists(t TableDefinition) *Delete {
	return d.Condition(expression.AttributeExists(expression.Name(t.PartitionKey)))
}

func (d *Delete) build() (expression.Expression, error) {
	if !d.c.IsSet() {
		return expression.Expression{}, nil
	}
	e, err := expression.NewBuilder().WithCondition(d.c).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build condition: %w", err)
	}
	return e, nil
}

func (d *Delete) toDeleteItem(t TableDefinition) (*dynamodb.DeleteItemInput, error) {
	e, err := d.build()
	if err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemInput{
		TableName:                 &t.Name,
		Key:                       t.AttributeValues(d.key),
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
	}, nil
}

func (d *Delete) toTransactWriteItem(t TableDefinition) (types.TransactWriteItem, error) {
	e, err := d.build()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                 &t.Name,
			Key:                       t.AttributeValues(d.key),
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

// DeleteItem executes a single conditional delete.
// Returns ErrConditionFailed if the condition is rejected.
func (c *Client) DeleteItem(ctx context.Context, d *Delete) error {
	input, err := d.toDeleteItem(c.table)
	if err != nil {
		return err
	}
	if _, err := c.api.DeleteItem(ctx, input); err != nil {
		return fmt.Errorf("delete item: %w", asConditionFailure(err))
	}
	return nil
}
