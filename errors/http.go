package errors

import (
	stderrors "errors"
	"net/http"

	"google.golang.org/grpc/codes"
)

const statusClientClosedRequest = 499

// HTTPStatus maps a grpc code to the HTTP status the dashboard surface
// should emit. SchemaNotReady and Connectivity land on 503, OperationTimeout
// on 504, so the two retryable conditions stay distinguishable from plain
// failures.
func HTTPStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Canceled:
		return statusClientClosedRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.OK:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatusFor is a convenience for arbitrary errors: gateway responses map
// by code, everything else is a 500.
func HTTPStatusFor(err error) int {
	var e ErrorResponse
	if stderrors.As(err, &e) {
		return HTTPStatus(e.Code)
	}
	return http.StatusInternalServerError
}
