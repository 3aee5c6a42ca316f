package s3err

import (
	"net/http"
	"strings"
)

// APIError represents an S3 API error with its code, description, and HTTP status.
// Based on: https://docs.aws.amazon.com/AmazonS3/latest/API/ErrorResponses.html#ErrorCodeList
type APIError struct {
	Code           string
	Description    string
	HTTPStatusCode int
}

// Error represents the XML error response returned to S3 clients.
type Error struct {
	XMLName   string `xml:"Error"`
	Code      string `xml:"Code"`
	Message   string `xml:"Message"`
	Resource  string `xml:"Resource"`
	RequestID string `xml:"RequestId"`
	HTTPCode  int    `xml:"-"`
}

func (e Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	if e.Resource != "" {
		b.WriteString(e.Resource)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ErrorCode is an enumeration of S3 error codes.
type ErrorCode int

const (
	ErrNone ErrorCode = iota

	// Access & authentication. Authentication failures (bad or expired
	// credentials) map to 401; authorization failures (ACL evaluation)
	// map to 403.
	ErrAccessDenied
	ErrInvalidAccessKeyID
	ErrSignatureDoesNotMatch
	ErrExpiredPresignRequest
	ErrAuthorizationHeaderMalformed

	// Request validation
	ErrInvalidArgument
	ErrInvalidDigest
	ErrBadDigest
	ErrMalformedACL
	ErrUnresolvableGrantByEmailAddress
	ErrInvalidBucketName

	// Buckets
	ErrNoSuchBucket
	ErrBucketAlreadyExists
	ErrBucketNotEmpty

	// Objects
	ErrNoSuchKey

	// Server side
	ErrRequestTimeout
	ErrSlowDown
	ErrInternalError
	ErrNotImplemented
)

// Error implements the error interface so an ErrorCode can travel through
// the filter chain as a plain error value.
func (e ErrorCode) Error() string {
	return e.APIError().Code
}

var errorCodes = map[ErrorCode]APIError{
	ErrAccessDenied: {
		Code:           "AccessDenied",
		Description:    "Access Denied.",
		HTTPStatusCode: http.StatusForbidden,
	},
	ErrInvalidAccessKeyID: {
		Code:           "InvalidAccessKeyId",
		Description:    "The AWS access key ID you provided does not exist in our records.",
		HTTPStatusCode: http.StatusUnauthorized,
	},
	ErrSignatureDoesNotMatch: {
		Code:           "SignatureDoesNotMatch",
		Description:    "The request signature we calculated does not match the signature you provided.",
		HTTPStatusCode: http.StatusUnauthorized,
	},
	ErrExpiredPresignRequest: {
		Code:           "AccessDenied",
		Description:    "Request has expired.",
		HTTPStatusCode: http.StatusUnauthorized,
	},
	ErrAuthorizationHeaderMalformed: {
		Code:           "AuthorizationHeaderMalformed",
		Description:    "The authorization header you provided is invalid.",
		HTTPStatusCode: http.StatusUnauthorized,
	},
	ErrInvalidArgument: {
		Code:           "InvalidArgument",
		Description:    "Invalid Argument.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidDigest: {
		Code:           "InvalidDigest",
		Description:    "The Content-MD5 you specified is not valid.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrBadDigest: {
		Code:           "BadDigest",
		Description:    "The Content-MD5 you specified did not match what we received.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrMalformedACL: {
		Code:           "MalformedACLError",
		Description:    "The XML you provided was not well-formed or did not validate against our published schema.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrUnresolvableGrantByEmailAddress: {
		Code:           "UnresolvableGrantByEmailAddress",
		Description:    "The email address you provided does not match any account on record.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrInvalidBucketName: {
		Code:           "InvalidBucketName",
		Description:    "The specified bucket is not valid.",
		HTTPStatusCode: http.StatusBadRequest,
	},
	ErrNoSuchBucket: {
		Code:           "NoSuchBucket",
		Description:    "The specified bucket does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrBucketAlreadyExists: {
		Code:           "BucketAlreadyExists",
		Description:    "The requested bucket name is not available.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrBucketNotEmpty: {
		Code:           "BucketNotEmpty",
		Description:    "The bucket you tried to delete is not empty.",
		HTTPStatusCode: http.StatusConflict,
	},
	ErrNoSuchKey: {
		Code:           "NoSuchKey",
		Description:    "The specified key does not exist.",
		HTTPStatusCode: http.StatusNotFound,
	},
	ErrRequestTimeout: {
		Code:           "RequestTimeout",
		Description:    "Your socket connection to the server was not read from or written to within the timeout period.",
		HTTPStatusCode: http.StatusRequestTimeout,
	},
	ErrSlowDown: {
		Code:           "SlowDown",
		Description:    "Please reduce your request rate.",
		HTTPStatusCode: http.StatusServiceUnavailable,
	},
	ErrInternalError: {
		Code:           "InternalError",
		Description:    "We encountered an internal error, please try again.",
		HTTPStatusCode: http.StatusInternalServerError,
	},
	ErrNotImplemented: {
		Code:           "NotImplemented",
		Description:    "A header you provided implies functionality that is not implemented.",
		HTTPStatusCode: http.StatusNotImplemented,
	},
}

// APIError returns the wire representation for the code. Unknown codes
// degrade to InternalError rather than a bare 500 with no body.
func (e ErrorCode) APIError() APIError {
	if apiErr, ok := errorCodes[e]; ok {
		return apiErr
	}
	return errorCodes[ErrInternalError]
}

// HTTPStatus returns the HTTP status for the code. ErrNone maps to 200.
func (e ErrorCode) HTTPStatus() int {
	if e == ErrNone {
		return http.StatusOK
	}
	return e.APIError().HTTPStatusCode
}

// ToErrorResponse builds the XML error body for the code.
func (e ErrorCode) ToErrorResponse(resource string) Error {
	apiErr := e.APIError()
	return Error{
		Code:     apiErr.Code,
		Message:  apiErr.Description,
		Resource: resource,
		HTTPCode: apiErr.HTTPStatusCode,
	}
}
