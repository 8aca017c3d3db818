package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Update mutates individual fields of an existing item.
type Update struct {
	key  Key
	ops  []Op
	c    expression.ConditionBuilder
}

func NewUpdate(key Key) *Update {
	return &Update{key: key}
}

func (u *Update) Apply(ops ...Op) *Update {
	for _, op := range ops {
		for _, existing := range u.ops {
			if existing.Field() == op.Field() {
				panic(fmt.Sprintf("field %s already has an operation in this update", op.Field()))
			}
		}
		u.ops = append(u.ops, op)
	}
	return u
}

// Condition adds a condition expression (ANDed with any existing one).
func (u *Update) Condition(c expression.ConditionBuilder) *Update {
	if u.c.IsSet() {
		u.c = u.c.And(c)
	} else {
		u.c = c
	}
	return u
}

// IfExists conditions the update on the item being present at commit time.
func (u *Update) IfExists(t TableDefinition) *Update {
	return u.Condition(expression.AttributeExists(expression.Name(t.PartitionKey)))
}

func (u *Update) build() (expression.Expression, error) {
	if len(u.ops) == 0 {
		return expression.Expression{}, fmt.Errorf("update has no operations")
	}
	var ub expression.UpdateBuilder
	for _, op := range u.ops {
		ub = op.apply(ub)
	}
	b := expression.NewBuilder().WithUpdate(ub)
	if u.c.IsSet() {
		b = b.WithCondition(u.c)
	}
	e, err := b.Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("build update: %w", err)
	}
	return e, nil
}

func (u *Update) toUpdateItem(t TableDefinition) (*dynamodb.UpdateItemInput, error) {
	e, err := u.build()
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemInput{
		TableName:                 &t.Name,
		Key:                       t.AttributeValues(u.key),
		UpdateExpression:          e.Update(),
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
	}, nil
}

func (u *Update) toTransactWriteItem(t TableDefinition) (types.TransactWriteItem, error) {
	e, err := u.build()
	if err != nil {
		return types.TransactWriteItem{}, err
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:                 &t.Name,
			Key:                       t.AttributeValues(u.key),
			UpdateExpression:          e.Update(),
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

// UpdateItem executes a single conditional update.
// Returns ErrConditionFailed if the condition is rejected.
func (c *Client) UpdateItem(ctx context.Context, u *Update) error {
	input, err := u.toUpdateItem(c.table)
	if err != nil {
		return err
	}
	if _, err := c.api.UpdateItem(ctx, input); err != nil {
		return fmt.Errorf("update item: %w", asConditionFailure(err))
	}
	return nil
}
