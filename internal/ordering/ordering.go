// Package ordering keeps the user-controlled display order of list
// entities (gifts, tracks, images) dense and consistent with the index
// sort key that serves ordered listings.
package ordering

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
)

// identified is the slice of a list entity the engine needs: every
// ordered entity stores its own id and order.
type identified struct {
	ID    string `dynamodbav:"id"`
	Order int    `dynamodbav:"order"`
}

// Result reports how a reorder was committed. Batches > 1 means the
// input exceeded the per-transaction cap and cross-batch atomicity was
// not guaranteed.
type Result struct {
	Items   int `json:"items"`
	Batches int `json:"batches"`
}

// Reorder persists order = index for the submitted id array. Duplicate
// or unknown ids fail the whole operation before any write. Each batch
// of up to 100 items commits all-or-nothing; every per-item update is
// conditioned on the entity still existing at commit time.
func Reorder(ctx context.Context, db *dynamo.Client, tenantID string, kind keys.Kind, ids []string) (Result, error) {
	if len(ids) == 0 {
		return Result{}, apperr.Validationf("EMPTY_ORDER", "no ids to reorder")
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return Result{}, apperr.Validationf("DUPLICATE_ID", "id %s appears more than once", id)
		}
		seen[id] = struct{}{}
	}

	existing, err := listIDs(ctx, db, tenantID, kind)
	if err != nil {
		return Result{}, err
	}
	for _, id := range ids {
		if _, ok := existing[id]; !ok {
			return Result{}, apperr.NotFoundf("UNKNOWN_ID", "id %s does not exist", id)
		}
	}

	res := Result{Items: len(ids)}
	for start := 0; start < len(ids); start += dynamo.MaxTxItems {
		end := min(start+dynamo.MaxTxItems, len(ids))
		tx := db.NewTx()
		for i := start; i < end; i++ {
			id := ids[i]
			tx.Add(dynamo.NewUpdate(keys.Entity(tenantID, kind, id)).
				Apply(
					dynamo.Set("order", i),
					dynamo.Set("gsi1sk", keys.OrderSK(i, id)),
				).
				IfExists(db.Table()))
		}
		err := tx.Commit(ctx)
		if errors.Is(err, dynamo.ErrConditionFailed) {
			return res, apperr.Wrap(apperr.NotFound, "ENTITY_VANISHED", "an item was deleted during reorder", err)
		}
		if err != nil {
			return res, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to reorder", err)
		}
		res.Batches++
	}
	return res, nil
}

// NextOrder returns max(order)+1 over the tenant's entities of a kind.
// Orders are dense only right after a reorder; appends just need to
// land past the current tail.
func NextOrder(ctx context.Context, db *dynamo.Client, tenantID string, kind keys.Kind) (int, error) {
	items, err := db.NewQuery(keys.EntityListPK(tenantID, kind)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list items", err)
	}
	next := 0
	for _, item := range items {
		var e identified
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			return 0, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read item", err)
		}
		if e.Order >= next {
			next = e.Order + 1
		}
	}
	return next, nil
}

func listIDs(ctx context.Context, db *dynamo.Client, tenantID string, kind keys.Kind) (map[string]struct{}, error) {
	items, err := db.NewQuery(keys.EntityListPK(tenantID, kind)).Index(keys.GSI1).All(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to list items", err)
	}
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		var e identified
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			return nil, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to read item", err)
		}
		ids[e.ID] = struct{}{}
	}
	return ids, nil
}
