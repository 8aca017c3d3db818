package dynamo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// maxBatchItems is the DynamoDB cap on items per BatchWriteItem call.
	maxBatchItems = 25
	// maxBatchRetries bounds the retry loop for unprocessed items.
	maxBatchRetries = 3
)

// Batch is a best-effort bulk write. Unlike Tx there is no atomicity:
// a failure partway through leaves earlier chunks written. Unprocessed
// items are retried with capped exponential backoff and full jitter.
type Batch struct {
	api   API
	table TableDefinition

	requests []types.WriteRequest
	errs     []error
}

func newBatch(api API, table TableDefinition) *Batch {
	return &Batch{api: api, table: table}
}

// Put stages unconditional puts of full entities.
func (b *Batch) Put(entities ...any) *Batch {
	for _, e := range entities {
		item, err := attributevalue.MarshalMap(e)
		if err != nil {
			b.errs = append(b.errs, fmt.Errorf("failed to marshal entity to dynamodb map: %w", err))
			continue
		}
		if _, err := b.table.ExtractKey(item); err != nil {
			b.errs = append(b.errs, fmt.Errorf("entity %T does not carry the table key: %w", e, err))
			continue
		}
		b.requests = append(b.requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}
	return b
}

// Delete stages unconditional deletes by key.
func (b *Batch) Delete(keys ...Key) *Batch {
	for _, k := range keys {
		b.requests = append(b.requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: b.table.AttributeValues(k)},
		})
	}
	return b
}

func (b *Batch) Len() int {
	return len(b.requests)
}

// Exec writes all staged requests in chunks of 25, retrying unprocessed
// items up to maxBatchRetries times. Returns the number of items written.
func (b *Batch) Exec(ctx context.Context) (int, error) {
	if len(b.errs) > 0 {
		return 0, fmt.Errorf("staging batch requests: %w", b.errs[0])
	}
	written := 0
	for start := 0; start < len(b.requests); start += maxBatchItems {
		end := min(start+maxBatchItems, len(b.requests))
		chunk := b.requests[start:end]
		n, err := b.execChunk(ctx, chunk)
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (b *Batch) execChunk(ctx context.Context, chunk []types.WriteRequest) (int, error) {
	pending := chunk
	for attempt := 0; ; attempt++ {
		res, err := b.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{b.table.Name: pending},
		})
		if err != nil {
			return len(chunk) - len(pending), fmt.Errorf("batch write: %w", err)
		}
		unprocessed := res.UnprocessedItems[b.table.Name]
		if len(unprocessed) == 0 {
			return len(chunk), nil
		}
		if attempt >= maxBatchRetries {
			return len(chunk) - len(unprocessed), fmt.Errorf("batch incomplete: %d items unprocessed after %d retries", len(unprocessed), attempt)
		}
		select {
		case <-ctx.Done():
			return len(chunk) - len(unprocessed), ctx.Err()
		case <-time.After(backoff(attempt)):
		}
		pending = unprocessed
	}
}

// backoff is capped exponential with full jitter: rand(0, min(cap, base*2^attempt)).
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func backoff(attempt int) time.Duration {
	const (
		base = 50 * time.Millisecond
		cap  = 2 * time.Second
	)
	d := base << attempt
	if d > cap {
		d = cap
	}
	return time.Duration(rand.Int64N(int64(d)))
}
