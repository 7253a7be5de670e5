package logging

import (
	"context"
	"fmt"
	"strings"
)

// OperationError tags an error with the operation and request that produced it.
type OperationError struct {
	Operation string
	RequestID string
	Attempts  int // set when the operation was retried
	Err       error
}

func (e *OperationError) Error() string {
	var tags []string
	if e.RequestID != "" {
		tags = append(tags, "request_id="+e.RequestID)
	}
	if e.Attempts > 1 {
		tags = append(tags, fmt.Sprintf("attempts=%d", e.Attempts))
	}
	if len(tags) == 0 {
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", e.Operation, strings.Join(tags, ", "), e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// WrapOp wraps err for the request carried by ctx. A nil err stays nil.
func WrapOp(ctx context.Context, operation string, err error) error {
	return WrapOpAttempts(ctx, operation, 1, err)
}

// WrapOpAttempts is WrapOp for an operation that ran attempts times.
func WrapOpAttempts(ctx context.Context, operation string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, RequestID: RequestID(ctx), Attempts: attempts, Err: err}
}
