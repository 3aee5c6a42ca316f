// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package s3consts

// http://docs.aws.amazon.com/AmazonS3/latest/dev/RESTAuthentication.html
const (
	// --- Core request / tracing ---
	XAmzPrefix    = "x-amz-"
	XAmzRequestID = "x-amz-request-id"
	XAmzId2       = "x-amz-id-2"

	// --- ACL ---
	XAmzACL = "x-amz-acl"

	// --- Copy source ---
	XAmzCopySource = "x-amz-copy-source"

	// --- Query-string authentication ---
	QueryAccessKeyID = "AWSAccessKeyId"
	QuerySignature   = "Signature"
	QueryExpires     = "Expires"

	// --- List parameters ---
	QueryPrefix    = "prefix"
	QueryMarker    = "marker"
	QueryMaxKeys   = "max-keys"
	QueryDelimiter = "delimiter"

	// --- Sub-resources ---
	SubResourceACL      = "acl"
	SubResourceLocation = "location"
	SubResourceLogging  = "logging"
	SubResourceTorrent  = "torrent"
)

// SubResources is the recognized sub-resource set. A recognized sub-resource
// present in the query string is appended to the canonical resource when
// computing the request signature.
var SubResources = []string{
	SubResourceACL,
	SubResourceLocation,
	SubResourceLogging,
	SubResourceTorrent,
}
