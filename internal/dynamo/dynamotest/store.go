// Package dynamotest is an in-memory DynamoDB stand-in used by package
// tests. It is backed by an in-memory badger DB and implements the same
// client interface the service runs against in production, including
// condition-expression rejection and atomic transactions, so the
// optimistic-concurrency paths are exercised for real.
package dynamotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dgraph-io/badger/v4"

	"github.com/vowsuite/vowsuite/internal/dynamo"
)

type Store struct {
	db    *badger.DB
	table dynamo.TableDefinition

	// Serializes writes so condition evaluation and the subsequent
	// mutation are atomic with respect to concurrent callers.
	mu sync.Mutex
}

var _ dynamo.API = (*Store)(nil)

func New(table dynamo.TableDefinition) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}
	return &Store{db: db, table: table}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NewClient returns a dynamo.Client bound to a fresh in-memory store,
// closed automatically when the test finishes.
func NewClient(tb testing.TB, table dynamo.TableDefinition) *dynamo.Client {
	tb.Helper()
	store, err := New(table)
	if err != nil {
		tb.Fatalf("dynamotest: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return dynamo.New(store, table)
}

func storageKey(key dynamo.Key) []byte {
	return []byte("i\x00" + key.Partition + "\x00" + key.Sort)
}

func (s *Store) keyFromAttrs(attrs map[string]types.AttributeValue) (dynamo.Key, error) {
	return s.table.ExtractKey(attrs)
}

func (s *Store) readItem(txn *badger.Txn, key dynamo.Key) (map[string]types.AttributeValue, error) {
	entry, err := txn.Get(storageKey(key))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	data, err := entry.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeItem(data)
}

func (s *Store) writeItem(txn *badger.Txn, item map[string]types.AttributeValue) error {
	key, err := s.keyFromAttrs(item)
	if err != nil {
		return err
	}
	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	return txn.Set(storageKey(key), data)
}

func condFailed() error {
	return &types.ConditionalCheckFailedException{
		Message: aws.String("The conditional request failed"),
	}
}

// checkCondition evaluates an optional condition expression against the
// item's current state (nil state evaluates as an empty item).
func checkCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current map[string]types.AttributeValue) (bool, error) {
	if expr == nil {
		return true, nil
	}
	if current == nil {
		current = map[string]types.AttributeValue{}
	}
	return evalCondition(*expr, &evalEnv{names: names, values: values, item: current})
}

func (s *Store) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	key, err := s.keyFromAttrs(params.Key)
	if err != nil {
		return nil, err
	}
	var item map[string]types.AttributeValue
	err = s.db.View(func(txn *badger.Txn) error {
		item, err = s.readItem(txn, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (s *Store) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.keyFromAttrs(params.Item)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		current, err := s.readItem(txn, key)
		if err != nil {
			return err
		}
		ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
		if err != nil {
			return err
		}
		if !ok {
			return condFailed()
		}
		return s.writeItem(txn, params.Item)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (s *Store) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.keyFromAttrs(params.Key)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return s.applyUpdateLocked(txn, key, params.Key, params.UpdateExpression, params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (s *Store) applyUpdateLocked(txn *badger.Txn, key dynamo.Key, keyAttrs map[string]types.AttributeValue, updateExpr, condExpr *string, names map[string]string, values map[string]types.AttributeValue) error {
	current, err := s.readItem(txn, key)
	if err != nil {
		return err
	}
	ok, err := checkCondition(condExpr, names, values, current)
	if err != nil {
		return err
	}
	if !ok {
		return condFailed()
	}
	// DynamoDB upserts on update: an absent item starts from its key attributes.
	base := current
	if base == nil {
		base = keyAttrs
	}
	if updateExpr == nil {
		return fmt.Errorf("update expression is required")
	}
	updated, err := applyUpdate(*updateExpr, &evalEnv{names: names, values: values, item: base})
	if err != nil {
		return err
	}
	return s.writeItem(txn, updated)
}

func (s *Store) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, err := s.keyFromAttrs(params.Key)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		current, err := s.readItem(txn, key)
		if err != nil {
			return err
		}
		ok, err := checkCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
		if err != nil {
			return err
		}
		if !ok {
			return condFailed()
		}
		return txn.Delete(storageKey(key))
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query evaluates the key condition as a predicate over every stored item
// and sorts matches by the queried index's sort attribute. Linear scans are
// fine at test scale and keep GSI semantics (sparse indexes included)
// faithful without maintaining index entries.
func (s *Store) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if params.KeyConditionExpression == nil {
		return nil, fmt.Errorf("key condition expression is required")
	}
	sortAttr := s.table.SortKey
	if params.IndexName != nil {
		gsi, err := s.table.GSI(*params.IndexName)
		if err != nil {
			return nil, err
		}
		sortAttr = gsi.SortKey
	}

	var matches []map[string]types.AttributeValue
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("i\x00")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			data, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := decodeItem(data)
			if err != nil {
				return err
			}
			ok, err := evalCondition(*params.KeyConditionExpression, &evalEnv{
				names:  params.ExpressionAttributeNames,
				values: params.ExpressionAttributeValues,
				item:   item,
			})
			if err != nil {
				return err
			}
			if ok {
				matches = append(matches, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return lessBySortAttr(matches[i], matches[j], sortAttr)
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	}
	return &dynamodb.QueryOutput{Items: matches, Count: int32(len(matches))}, nil
}

func lessBySortAttr(a, b map[string]types.AttributeValue, attr string) bool {
	av, _ := a[attr].(*types.AttributeValueMemberS)
	bv, _ := b[attr].(*types.AttributeValueMemberS)
	if av == nil || bv == nil {
		return av != nil
	}
	return av.Value < bv.Value
}

// TransactWriteItems checks every item's condition against the current
// state, then applies all mutations, all inside one badger transaction.
// Any condition failure cancels the whole batch.
func (s *Store) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		reasons := make([]types.CancellationReason, len(params.TransactItems))
		failed := false
		for i, item := range params.TransactItems {
			ok, err := s.checkTransactItem(txn, item)
			if err != nil {
				return err
			}
			if ok {
				reasons[i] = types.CancellationReason{Code: aws.String("None")}
			} else {
				reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
				failed = true
			}
		}
		if failed {
			return &types.TransactionCanceledException{
				Message:             aws.String("Transaction cancelled"),
				CancellationReasons: reasons,
			}
		}
		for _, item := range params.TransactItems {
			if err := s.applyTransactItem(txn, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (s *Store) checkTransactItem(txn *badger.Txn, item types.TransactWriteItem) (bool, error) {
	switch {
	case item.Put != nil:
		key, err := s.keyFromAttrs(item.Put.Item)
		if err != nil {
			return false, err
		}
		current, err := s.readItem(txn, key)
		if err != nil {
			return false, err
		}
		return checkCondition(item.Put.ConditionExpression, item.Put.ExpressionAttributeNames, item.Put.ExpressionAttributeValues, current)
	case item.Update != nil:
		key, err := s.keyFromAttrs(item.Update.Key)
		if err != nil {
			return false, err
		}
		current, err := s.readItem(txn, key)
		if err != nil {
			return false, err
		}
		return checkCondition(item.Update.ConditionExpression, item.Update.ExpressionAttributeNames, item.Update.ExpressionAttributeValues, current)
	case item.Delete != nil:
		key, err := s.keyFromAttrs(item.Delete.Key)
		if err != nil {
			return false, err
		}
		current, err := s.readItem(txn, key)
		if err != nil {
			return false, err
		}
		return checkCondition(item.Delete.ConditionExpression, item.Delete.ExpressionAttributeNames, item.Delete.ExpressionAttributeValues, current)
	default:
		return false, fmt.Errorf("unsupported transact item")
	}
}

func (s *Store) applyTransactItem(txn *badger.Txn, item types.TransactWriteItem) error {
	switch {
	case item.Put != nil:
		return s.writeItem(txn, item.Put.Item)
	case item.Update != nil:
		key, err := s.keyFromAttrs(item.Update.Key)
		if err != nil {
			return err
		}
		return s.applyUpdateLocked(txn, key, item.Update.Key, item.Update.UpdateExpression, nil, item.Update.ExpressionAttributeNames, item.Update.ExpressionAttributeValues)
	case item.Delete != nil:
		key, err := s.keyFromAttrs(item.Delete.Key)
		if err != nil {
			return err
		}
		return txn.Delete(storageKey(key))
	default:
		return fmt.Errorf("unsupported transact item")
	}
}

func (s *Store) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		for tableName, requests := range params.RequestItems {
			if tableName != s.table.Name {
				return fmt.Errorf("unknown table %q", tableName)
			}
			for _, req := range requests {
				switch {
				case req.PutRequest != nil:
					if err := s.writeItem(txn, req.PutRequest.Item); err != nil {
						return err
					}
				case req.DeleteRequest != nil:
					key, err := s.keyFromAttrs(req.DeleteRequest.Key)
					if err != nil {
						return err
					}
					if err := txn.Delete(storageKey(key)); err != nil {
						return err
					}
				default:
					return fmt.Errorf("unsupported write request")
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &dynamodb.BatchWriteItemOutput{
		UnprocessedItems: map[string][]types.WriteRequest{},
	}, nil
}
