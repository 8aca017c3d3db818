package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConditionFailed is returned when a conditional write (single item or
// inside a transaction) is rejected at commit time. Callers treat it as an
// optimistic-concurrency conflict and retry the whole operation.
var ErrConditionFailed = errors.New("condition failed")

// asConditionFailure maps the SDK's condition-rejection errors onto
// ErrConditionFailed, keeping the original error wrapped for logging.
func asConditionFailure(err error) error {
	if err == nil {
		return nil
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return errors.Join(ErrConditionFailed, err)
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for _, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return errors.Join(ErrConditionFailed, err)
			}
		}
	}
	return err
}
