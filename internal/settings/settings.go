// Package settings stores one configuration document per (tenant,
// feature) pair and applies sparse patches to them. Absence of a
// document means "use the documented defaults", never an error. Patch
// fields carry tri-state semantics: absent preserves, null clears, a
// value overwrites. The merge itself is a pure function per feature;
// this file only does the read-merge-write around it.
package settings

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"

	"github.com/vowsuite/vowsuite/internal/apperr"
	"github.com/vowsuite/vowsuite/internal/dynamo"
	"github.com/vowsuite/vowsuite/internal/keys"
)

// Patch merges itself into an existing document. Restricted fields are
// retained unless the caller is elevated.
type Patch[T any] interface {
	Merge(existing T, elevated bool) T
}

// Meta is the audit stamp on a stored document. Zero for defaults.
type Meta struct {
	UpdatedAt string `json:"updatedAt,omitempty"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}

type record[T any] struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Feature   string `dynamodbav:"feature"`
	Doc       T      `dynamodbav:"doc"`
	UpdatedAt string `dynamodbav:"updatedAt"`
	UpdatedBy string `dynamodbav:"updatedBy"`
}

// Load returns the stored document, or defaults when none exists. The
// read is strongly consistent so a just-applied update is always
// visible to the next request.
func Load[T any](ctx context.Context, db *dynamo.Client, tenantID string, f Feature, defaults T) (T, Meta, error) {
	item, err := db.GetItem(ctx, keys.Settings(tenantID, string(f)))
	if err != nil {
		return defaults, Meta{}, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load settings", err)
	}
	if item == nil {
		return defaults, Meta{}, nil
	}
	var rec record[T]
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return defaults, Meta{}, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to load settings", err)
	}
	return rec.Doc, Meta{UpdatedAt: rec.UpdatedAt, UpdatedBy: rec.UpdatedBy}, nil
}

// Apply merges the patch into the current document (defaults seed the
// merge only when no document exists yet) and writes the full result
// back, stamped with the acting user and time.
func Apply[T any](ctx context.Context, db *dynamo.Client, tenantID string, f Feature, defaults T, patch Patch[T], actorID string, elevated bool) (T, Meta, error) {
	existing, _, err := Load(ctx, db, tenantID, f, defaults)
	if err != nil {
		return defaults, Meta{}, err
	}
	merged := patch.Merge(existing, elevated)

	key := keys.Settings(tenantID, string(f))
	meta := Meta{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		UpdatedBy: actorID,
	}
	rec := record[T]{
		PK:        key.Partition,
		SK:        key.Sort,
		Feature:   string(f),
		Doc:       merged,
		UpdatedAt: meta.UpdatedAt,
		UpdatedBy: meta.UpdatedBy,
	}
	if err := db.PutItem(ctx, dynamo.NewPut(&rec)); err != nil {
		return defaults, Meta{}, apperr.Wrap(apperr.Dependency, "STORE_ERROR", "failed to save settings", err)
	}
	return merged, meta, nil
}
