package dynamo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/stretchr/testify/require"

	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/dynamo/dynamotest"
)

var testTable = dynamo.TableDefinition{
	Name:         "vowsuite-test",
	PartitionKey: "pk",
	SortKey:      "sk",
	GSIs: []dynamo.GSIDefinition{
		{Name: "gsi1", PartitionKey: "gsi1pk", SortKey: "gsi1sk"},
	},
}

type testEntity struct {
	PK     string `dynamodbav:"pk"`
	SK     string `dynamodbav:"sk"`
	GSI1PK string `dynamodbav:"gsi1pk,omitempty"`
	GSI1SK string `dynamodbav:"gsi1sk,omitempty"`
	Name   string `dynamodbav:"name"`
	Count  int    `dynamodbav:"count"`
}

func TestPutItem_ConditionalCreate(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	e := &testEntity{PK: "user#1", SK: "META", Name: "first"}
	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(e).IfNotExists(testTable)))

	// Same key again must be rejected.
	dup := &testEntity{PK: "user#1", SK: "META", Name: "second"}
	err := db.PutItem(ctx, dynamo.NewPut(dup).IfNotExists(testTable))
	require.ErrorIs(t, err, dynamo.ErrConditionFailed)

	item, err := db.GetItem(ctx, dynamo.Key{Partition: "user#1", Sort: "META"})
	require.NoError(t, err)
	var got testEntity
	require.NoError(t, attributevalue.UnmarshalMap(item, &got))
	require.Equal(t, "first", got.Name)
}

func TestUpdateItem_ConditionEnforced(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	e := &testEntity{PK: "user#1", SK: "META", Name: "a", Count: 4}
	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(e)))

	key := dynamo.Key{Partition: "user#1", Sort: "META"}
	cond := expression.LessThanEqual(expression.Name("count"), expression.Value(4))
	require.NoError(t, db.UpdateItem(ctx, dynamo.NewUpdate(key).
		Apply(dynamo.AddNumber("count", 3)).
		Condition(cond)))

	// Now count is 7 and the same guard must fail.
	err := db.UpdateItem(ctx, dynamo.NewUpdate(key).
		Apply(dynamo.AddNumber("count", 3)).
		Condition(cond))
	require.ErrorIs(t, err, dynamo.ErrConditionFailed)
}

func TestUpdateItem_RemoveField(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(&testEntity{PK: "p", SK: "s", Name: "x"})))
	key := dynamo.Key{Partition: "p", Sort: "s"}
	require.NoError(t, db.UpdateItem(ctx, dynamo.NewUpdate(key).Apply(dynamo.Remove("name"))))

	item, err := db.GetItem(ctx, key)
	require.NoError(t, err)
	_, present := item["name"]
	require.False(t, present)
}

func TestTx_AllOrNothing(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(&testEntity{PK: "a", SK: "META", Count: 1})))

	// Second action's existence condition fails, so the first must not apply.
	tx := db.NewTx().Add(
		dynamo.NewUpdate(dynamo.Key{Partition: "a", Sort: "META"}).
			Apply(dynamo.Set("count", 99)).
			IfExists(testTable),
		dynamo.NewUpdate(dynamo.Key{Partition: "missing", Sort: "META"}).
			Apply(dynamo.Set("count", 1)).
			IfExists(testTable),
	)
	err := tx.Commit(ctx)
	require.ErrorIs(t, err, dynamo.ErrConditionFailed)

	item, err := db.GetItem(ctx, dynamo.Key{Partition: "a", Sort: "META"})
	require.NoError(t, err)
	var got testEntity
	require.NoError(t, attributevalue.UnmarshalMap(item, &got))
	require.Equal(t, 1, got.Count)
}

func TestBatch_PutAndDelete(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	batch := db.NewBatch()
	for i := 0; i < 30; i++ { // more than one 25-item chunk
		batch.Put(&testEntity{PK: "list", SK: fmt.Sprintf("item#%02d", i), Count: i})
	}
	n, err := batch.Exec(ctx)
	require.NoError(t, err)
	require.Equal(t, 30, n)

	n, err = db.NewBatch().Delete(dynamo.Key{Partition: "list", Sort: "item#07"}).Exec(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	item, err := db.GetItem(ctx, dynamo.Key{Partition: "list", Sort: "item#07"})
	require.NoError(t, err)
	require.Nil(t, item)
}

func TestQuery_GSIOrdering(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	// Insert out of order; gsi1sk encodes the display order.
	for _, i := range []int{2, 0, 1} {
		e := &testEntity{
			PK:     fmt.Sprintf("t#1#GIFT#%d", i),
			SK:     "META",
			GSI1PK: "t#1#GIFTS",
			GSI1SK: fmt.Sprintf("%05d#%d", i, i),
			Count:  i,
		}
		require.NoError(t, db.PutItem(ctx, dynamo.NewPut(e)))
	}

	items, err := db.NewQuery("t#1#GIFTS").Index("gsi1").All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		var got testEntity
		require.NoError(t, attributevalue.UnmarshalMap(item, &got))
		require.Equal(t, i, got.Count)
	}
}

func TestQuery_SortKeyPrefix(t *testing.T) {
	db := dynamotest.NewClient(t, testTable)
	ctx := context.Background()

	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(&testEntity{PK: "g#1", SK: "META"})))
	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(&testEntity{PK: "g#1", SK: "RESERVATION#a"})))
	require.NoError(t, db.PutItem(ctx, dynamo.NewPut(&testEntity{PK: "g#1", SK: "RESERVATION#b"})))

	items, err := db.NewQuery("g#1").SortKey(dynamo.SortKeyBeginsWith("RESERVATION#")).All(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
}
