package endpoints

import (
	"context"
	"errors"

	"homelab-metrics/internal/domain"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	INVALID_RANGE        = iota + 101 // 101 - Range is not one of 1h, 6h, 24h, 7d
	INVALID_REQUEST_BODY              // 102 - Error parsing request body
	INVALID_SAMPLE                    // 103 - Empty node id or non-finite percentage
	REQUEST_CANCELLED                 // 104 - Request was cancelled by client or server timeout
	METHOD_NOT_ALLOWED                // 105 - Wrong HTTP method for the route
)

var (
	ErrInvalidRequestBody = errors.New("invalid request body format or missing fields")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrMethodNotAllowed   = errors.New("method not allowed")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		return INVALID_RANGE
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, domain.ErrEmptyNodeID), errors.Is(err, domain.ErrNonFiniteValue):
		return INVALID_SAMPLE
	case errors.Is(err, ErrRequestCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrMethodNotAllowed):
		return METHOD_NOT_ALLOWED
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
