package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// MaxTxItems is the DynamoDB cap on items per TransactWriteItems call.
const MaxTxItems = 100

// Action is a write that can participate in a transaction.
type Action interface {
	toTransactWriteItem(TableDefinition) (types.TransactWriteItem, error)
}

// Tx is an all-or-nothing multi-item write. Errors from Add are deferred
// and returned by Commit so call sites don't have to check each staging call.
type Tx struct {
	api   API
	table TableDefinition

	items   []types.TransactWriteItem
	actions []Action
	errs    []error
}

func newTx(api API, table TableDefinition) *Tx {
	return &Tx{api: api, table: table}
}

// Add stages an action for the commit.
func (tx *Tx) Add(actions ...Action) *Tx {
	for _, a := range actions {
		item, err := a.toTransactWriteItem(tx.table)
		if err != nil {
			tx.errs = append(tx.errs, err)
			continue
		}
		tx.items = append(tx.items, item)
		tx.actions = append(tx.actions, a)
	}
	return tx
}

func (tx *Tx) Len() int {
	return len(tx.items)
}

// Commit executes all staged actions atomically: every condition holds at
// commit time or nothing is written. Returns ErrConditionFailed (wrapped)
// when any item's condition is rejected.
//
// A single staged action is executed as a plain write to avoid the
// transactional overhead.
func (tx *Tx) Commit(ctx context.Context) error {
	if len(tx.errs) > 0 {
		return fmt.Errorf("staging transaction actions: %w", tx.errs[0])
	}
	switch len(tx.items) {
	case 0:
		return nil
	case 1:
		return tx.commitSingle(ctx)
	}
	if len(tx.items) > MaxTxItems {
		return fmt.Errorf("transaction limited to %d items, got %d", MaxTxItems, len(tx.items))
	}
	_, err := tx.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: tx.items,
	})
	if err != nil {
		return fmt.Errorf("transact write items: %w", asConditionFailure(err))
	}
	return nil
}

func (tx *Tx) commitSingle(ctx context.Context) error {
	switch a := tx.actions[0].(type) {
	case *Put:
		input, err := a.toPutItem(tx.table)
		if err != nil {
			return err
		}
		if _, err := tx.api.PutItem(ctx, input); err != nil {
			return fmt.Errorf("put item: %w", asConditionFailure(err))
		}
	case *Update:
		input, err := a.toUpdateItem(tx.table)
		if err != nil {
			return err
		}
		if _, err := tx.api.UpdateItem(ctx, input); err != nil {
			return fmt.Errorf("update item: %w", asConditionFailure(err))
		}
	case *Delete:
		input, err := a.toDeleteItem(tx.table)
		if err != nil {
			return err
		}
		if _, err := tx.api.DeleteItem(ctx, input); err != nil {
			return fmt.Errorf("delete item: %w", asConditionFailure(err))
		}
	default:
		return fmt.Errorf("unknown action type: %T", a)
	}
	return nil
}
