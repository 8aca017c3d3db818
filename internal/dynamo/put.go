package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Put writes a full entity. The entity struct must carry its own key
// attributes (pk, sk, gsi*) via dynamodbav tags.
type Put struct {
	entity any
	c      expression.ConditionBuilder
}

func NewPut(entity any) *Put {
	return &Put{entity: entity}
}

// Condition adds a condition expression (ANDed with any existing one).
// A conditioned put cannot be used in a batch write.
func (p *Put) Condition(c expression.ConditionBuilder) *Put {
	if p.c.IsSet() {
		p.c = p.c.And(c)
	} else {
		p.c = c
	}
	return p
}

// IfNotExists conditions the put on no item existing at the same key.
func (p *Put) IfNotExists(t TableDefinition) *Put {
	return p.Condition(expression.AttributeNotExists(expression.Name(t.PartitionKey)))
}

func (p *Put) build(t TableDefinition) (expression.Expression, map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(p.entity)
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err)
	}
	if _, err := t.ExtractKey(item); err != nil {
		return expression.Expression{}, nil, fmt.Errorf("entity %T does not carry the table key: %w", p.entity, err)
	}
	if !p.c.IsSet() {
		return expression.Expression{}, item, nil
	}
	exp, err := expression.NewBuilder().WithCondition(p.c).Build()
	if err != nil {
		return expression.Expression{}, nil, fmt.Errorf("build condition: %w", err)
	}
	return exp, item, nil
}

func (p *Put) toPutItem(t TableDefinition) (*dynamodb.PutItemInput, error) {
	e, item, err := p.build(t)
	if err != nil {
		return nil, fmt.Errorf("failed to build put: %w", err)
	}
	return &dynamodb.PutItemInput{
		TableName:                 &t.Name,
		Item:                      item,
		ConditionExpression:       e.Condition(),
		ExpressionAttributeValues: e.Values(),
		ExpressionAttributeNames:  e.Names(),
	}, nil
}

func (p *Put) toTransactWriteItem(t TableDefinition) (types.TransactWriteItem, error) {
	e, item, err := p.build(t)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("failed to build put: %w", err)
	}
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 &t.Name,
			Item:                      item,
			ConditionExpression:       e.Condition(),
			ExpressionAttributeValues: e.Values(),
			ExpressionAttributeNames:  e.Names(),
		},
	}, nil
}

// PutItem executes a single conditional put.
// Returns ErrConditionFailed if the condition is rejected.
func (c *Client) PutItem(ctx context.Context, p *Put) error {
	input, err := p.toPutItem(c.table)
	if err != nil {
		return err
	}
	if _, err := c.api.PutItem(ctx, input); err != nil {
		return fmt.Errorf("put item: %w", asConditionFailure(err))
	}
	return nil
}
