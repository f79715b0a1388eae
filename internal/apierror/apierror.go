/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

type ErrorKind string

const (
	ErrMissingRequiredColumn        ErrorKind = "MISSING_REQUIRED_COLUMN"
	ErrUnparseableField             ErrorKind = "UNPARSEABLE_FIELD"
	ErrUnknownCategory              ErrorKind = "UNKNOWN_CATEGORY"
	ErrReportNotFound               ErrorKind = "REPORT_NOT_FOUND"
	ErrAdmissionLimitExceeded       ErrorKind = "ADMISSION_LIMIT_EXCEEDED"
	ErrDuplicateFingerprintInFlight ErrorKind = "DUPLICATE_FINGERPRINT_IN_FLIGHT"
	ErrChunkEmpty                   ErrorKind = "CHUNK_EMPTY"
	ErrNotFound                     ErrorKind = "NOT_FOUND"
	ErrInvalidInput                 ErrorKind = "INVALID_INPUT"
	ErrUnauthorized                 ErrorKind = "UNAUTHORIZED"
	ErrForbidden                    ErrorKind = "FORBIDDEN"
	ErrInternalServer               ErrorKind = "INTERNAL_SERVER_ERROR"
)

// Numeric codes shared with clients of the generation API.
const (
	CodeReportNotFound       = 1334300
	CodeShareUnavailable     = 8564791
	CodeAdmissionLimit       = 4325437
	CodeDuplicateInFlight    = 4324324
	CodeUnknownCategory      = 543544
	CodeMissingKind          = 5436574
	CodeUnparseableField     = 43214233
	CodeChunkEmpty           = 4334304
	CodeUnknownReportType    = 1357836
	CodeFileNotOwned         = 4324323
	CodeDuplicateFilterID    = 6453453
	CodeFileIDOutOfRange     = 6546534
	CodeMerchantIDNotAllowed = 7357543
	CodeProviderIDNotAllowed = 8357543
	CodeReportTypeMissing    = 7357542
	CodeFileAccess           = 5435445
	CodeArtifactSave         = 3234253
	CodeDatabaseQuery        = 3424324
	CodeDatabaseScan         = 3424325
	CodeDatabaseConnect      = 4586020
	CodeMissingToken         = 54346941
	CodeIdentityLookup       = 4765430
	CodeFileCorrupted        = 534653
	CodeFilePreparing        = 534654
	CodeFileGenerating       = 534655
	CodeFileSegmentUnknown   = 534656
	CodeOrgColumnUnknownKind = 3443245
)

type APIError struct {
	Kind    ErrorKind   `json:"-"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"-"`
}

func (e APIError) Error() string {
	return fmt.Sprintf("%s(%d): %s", e.Kind, e.Code, e.Message)
}

// NewAPIError builds an APIError and logs it. Admission and in-flight
// rejections are routine and are logged below error severity.
func NewAPIError(kind ErrorKind, code int, message string, details interface{}) APIError {
	entry := logrus.WithFields(logrus.Fields{"kind": kind, "code": code})
	if details != nil {
		entry = entry.WithField("details", details)
	}

	switch kind {
	case ErrAdmissionLimitExceeded:
		entry.Warn(message)
	case ErrDuplicateFingerprintInFlight, ErrNotFound, ErrReportNotFound:
		entry.Info(message)
	case ErrInternalServer:
		entry.Error(message)
	default:
		entry.Warn(message)
	}

	return APIError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// As extracts an APIError from err, following wrapped chains.
func As(err error) (APIError, bool) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return APIError{}, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	apiErr, ok := As(err)
	return ok && apiErr.Kind == kind
}

func MapErrorToHTTPStatus(err error) int {
	if apiErr, ok := As(err); ok {
		switch apiErr.Kind {
		case ErrNotFound, ErrReportNotFound:
			return http.StatusNotFound
		case ErrDuplicateFingerprintInFlight:
			return http.StatusConflict
		case ErrAdmissionLimitExceeded:
			return http.StatusTooManyRequests
		case ErrMissingRequiredColumn, ErrUnparseableField, ErrUnknownCategory, ErrChunkEmpty:
			return http.StatusUnprocessableEntity
		case ErrInvalidInput:
			return http.StatusBadRequest
		case ErrUnauthorized:
			return http.StatusUnauthorized
		case ErrForbidden:
			return http.StatusForbidden
		case ErrInternalServer:
			return http.StatusInternalServerError
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
