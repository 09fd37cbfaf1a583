package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeValidation         ErrorCode = "COMMON_006"
	ErrCodeSerialization      ErrorCode = "COMMON_007"
	ErrCodeDatabaseError      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeStorageError       ErrorCode = "COMMON_010"
	ErrCodeMessagingError     ErrorCode = "COMMON_011"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_012"
	ErrCodeNotImplemented     ErrorCode = "COMMON_013"
)

// Aliases used across layers
const (
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict

	// Domain specific aliases
	CodeDegenerateFeature = ErrCodeDegenerateFeature
	CodeDegenerateCase    = ErrCodeDegenerateCase
	CodeDatasetNotFound   = ErrCodeDatasetNotFound
	CodeScanJobNotFound   = ErrCodeScanJobNotFound
)

// Applicability-Domain Module Error Codes
const (
	// ErrCodeNonFiniteValue marks a feature matrix or signal vector that
	// contains NaN, Inf, or otherwise missing entries.  Detected before any
	// normalization or distance computation takes place.
	ErrCodeNonFiniteValue ErrorCode = "AD_001"

	// ErrCodeShapeMismatch marks inputs whose dimensions disagree: ragged
	// matrices, mismatched feature counts, or signal vectors whose length
	// differs from the instance count they annotate.
	ErrCodeShapeMismatch ErrorCode = "AD_002"

	// ErrCodeDegenerateFeature marks a feature with zero range in the
	// reference set (max == min), reported by callers that opt into strict
	// bounds validation.
	ErrCodeDegenerateFeature ErrorCode = "AD_003"

	// ErrCodeDegenerateCase marks a scan step on which no training instance
	// has a resolvable threshold, or no instance has a strictly positive
	// reliability correction factor.  Fatal for the whole scan.
	ErrCodeDegenerateCase ErrorCode = "AD_004"

	// ErrCodeScanConfigInvalid marks a scan configuration whose phase
	// boundaries are out of valid relative order.
	ErrCodeScanConfigInvalid ErrorCode = "AD_005"
)

// Dataset Module Error Codes
const (
	ErrCodeDatasetNotFound      ErrorCode = "DS_001"
	ErrCodeDatasetInvalid       ErrorCode = "DS_002"
	ErrCodeDatasetAlreadyExists ErrorCode = "DS_003"
	ErrCodeDatasetParseFailed   ErrorCode = "DS_004"
)

// Scan Job Module Error Codes
const (
	ErrCodeScanJobNotFound    ErrorCode = "JOB_001"
	ErrCodeScanJobFailed      ErrorCode = "JOB_002"
	ErrCodeScanJobNotFinished ErrorCode = "JOB_003"
)

// HTTPStatus maps an ErrorCode to the HTTP status code handlers should emit.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case ErrCodeBadRequest, ErrCodeValidation,
		ErrCodeNonFiniteValue, ErrCodeShapeMismatch,
		ErrCodeDegenerateFeature, ErrCodeScanConfigInvalid,
		ErrCodeDatasetInvalid, ErrCodeDatasetParseFailed:
		return http.StatusBadRequest
	case ErrCodeNotFound, ErrCodeDatasetNotFound, ErrCodeScanJobNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeDatasetAlreadyExists, ErrCodeScanJobNotFinished:
		return http.StatusConflict
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeNotImplemented:
		return http.StatusNotImplemented
	case ErrCodeDegenerateCase, ErrCodeScanJobFailed:
		// The inputs were well-formed; the computation could not proceed.
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Module returns the module prefix of the code ("COMMON", "AD", "DS", "JOB").
// Used as a metric label by logging and metrics middleware.
func (c ErrorCode) Module() string {
	s := string(c)
	if i := strings.IndexByte(s, '_'); i > 0 {
		return s[:i]
	}
	return s
}
