package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeMessageQueue       ErrorCode = "COMMON_017"
	ErrCodeStorage            ErrorCode = "COMMON_018"
)

const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Embedding point-cloud error codes
const (
	// ErrCodeMalformedCoordinate: a fetched point's coordinate arity does not
	// match the configured display mode.  Fatal to that fetch.
	ErrCodeMalformedCoordinate ErrorCode = "EMB_001"
	// ErrCodeFetchFailed: the remote UMAP/HDBSCAN query reported an error.
	ErrCodeFetchFailed ErrorCode = "EMB_002"
	// ErrCodeUnknownMetricKey: a performance metric key has no registered short name.
	ErrCodeUnknownMetricKey ErrorCode = "EMB_003"
	// ErrCodeStaleResult: result of a superseded generation.  Never surfaced.
	ErrCodeStaleResult ErrorCode = "EMB_004"
	// ErrCodeCoordinatorClosed: request issued after the coordinator was disposed.
	ErrCodeCoordinatorClosed ErrorCode = "EMB_005"
	// ErrCodeInvalidParameters: UMAP/HDBSCAN/time parameters out of range.
	ErrCodeInvalidParameters ErrorCode = "EMB_006"
)

// Configuration error codes
const (
	ErrCodeInvalidConfig ErrorCode = "CFG_001"
)

// Sentinels.  Compare with errors.Is; AppError.Is matches on code.
var (
	ErrMalformedCoordinate = New(ErrCodeMalformedCoordinate, "malformed point coordinates")
	ErrFetchFailed         = New(ErrCodeFetchFailed, "point cloud fetch failed")
	ErrUnknownMetricKey    = New(ErrCodeUnknownMetricKey, "unknown performance metric key")
	ErrStaleResult         = New(ErrCodeStaleResult, "result superseded by a newer request")
	ErrCoordinatorClosed   = New(ErrCodeCoordinatorClosed, "fetch coordinator is closed")
	ErrInvalidParameters   = New(ErrCodeInvalidParameters, "invalid point cloud parameters")
	ErrInvalidConfig       = New(ErrCodeInvalidConfig, "invalid configuration")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeMessageQueue:       http.StatusInternalServerError,
	ErrCodeStorage:            http.StatusInternalServerError,

	ErrCodeMalformedCoordinate: http.StatusBadGateway,
	ErrCodeFetchFailed:         http.StatusBadGateway,
	ErrCodeUnknownMetricKey:    http.StatusBadRequest,
	ErrCodeStaleResult:         http.StatusConflict,
	ErrCodeCoordinatorClosed:   http.StatusServiceUnavailable,
	ErrCodeInvalidParameters:   http.StatusBadRequest,

	ErrCodeInvalidConfig: http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for err's code, defaulting to 500.
func HTTPStatus(err error) int {
	if status, ok := ErrorCodeHTTPStatus[GetCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
