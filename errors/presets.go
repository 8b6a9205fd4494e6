package errors

import (
	stderrors "errors"
	"strconv"
	"time"

	"google.golang.org/grpc/codes"
)

// Failure classes of the data-access gateway.
const (
	ReasonValidation       Reason = "validation"
	ReasonNotInitialized   Reason = "not_initialized"
	ReasonSchemaNotReady   Reason = "schema_not_ready"
	ReasonConnectivity     Reason = "connectivity"
	ReasonOperationTimeout Reason = "operation_timeout"
)

// Validation reports caller-side misuse. Rejected before any I/O, never
// retried.
func Validation(message string) ErrorResponse {
	return ErrorResponse{Code: codes.InvalidArgument, Reason: ReasonValidation, Message: message}
}

// NotInitialized reports an ordering bug: the pool was requested before any
// successful EnsurePool.
func NotInitialized() ErrorResponse {
	return ErrorResponse{
		Code:    codes.FailedPrecondition,
		Reason:  ReasonNotInitialized,
		Message: "connection pool is not initialized",
	}
}

// SchemaNotReady reports that migrations are absent, failed or incomplete.
// Callers should map it to a service-unavailable outcome and retry once
// migrations complete.
func SchemaNotReady(message string) ErrorResponse {
	return ErrorResponse{Code: codes.Unavailable, Reason: ReasonSchemaNotReady, Message: message}
}

// Connectivity reports a secret-fetch, pool-construction or acquisition
// failure. Fatal to the current pool instance.
func Connectivity(message string) ErrorResponse {
	return ErrorResponse{Code: codes.Unavailable, Reason: ReasonConnectivity, Message: message}
}

// OperationTimeout reports that a unit of work exceeded its deadline. The
// configured timeout is carried in details under "timeout_ms".
func OperationTimeout(timeout time.Duration) ErrorResponse {
	return ErrorResponse{
		Code:    codes.DeadlineExceeded,
		Reason:  ReasonOperationTimeout,
		Message: "operation exceeded deadline of " + timeout.String(),
	}.WithDetail("timeout_ms", strconv.FormatInt(timeout.Milliseconds(), 10))
}

func IsValidation(err error) bool       { return reasonIs(err, ReasonValidation) }
func IsNotInitialized(err error) bool   { return reasonIs(err, ReasonNotInitialized) }
func IsSchemaNotReady(err error) bool   { return reasonIs(err, ReasonSchemaNotReady) }
func IsConnectivity(err error) bool     { return reasonIs(err, ReasonConnectivity) }
func IsOperationTimeout(err error) bool { return reasonIs(err, ReasonOperationTimeout) }

func reasonIs(err error, r Reason) bool {
	var e ErrorResponse
	return stderrors.As(err, &e) && e.Reason == r
}
