// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package signature

import (
	"sort"
	"strings"
)

// RequestInfo carries the request fields covered by the signature.
type RequestInfo struct {
	Method      string
	ContentMD5  string
	ContentType string

	// Date is the Date header value, or the Expires query parameter for
	// query-string authentication.
	Date string

	// AmzHeaders are the canonicalized x-amz-* headers (lowercased names,
	// folded values, duplicates comma-merged).
	AmzHeaders map[string]string

	// CanonicalResource is the signed resource path, see CanonicalResource.
	CanonicalResource string
}

// BuildStringToSign assembles the canonical request string:
//
//	METHOD \n
//	Content-MD5 \n
//	Content-Type \n
//	Date (or Expires) \n
//	x-amz-name:value \n   (for each x-amz header, sorted by name)
//	canonical resource
//
// The x-amz block is sorted explicitly: both client and server must produce
// the same byte string for the signature to be reproducible.
func BuildStringToSign(info RequestInfo) string {
	var b strings.Builder
	b.WriteString(info.Method)
	b.WriteByte('\n')
	b.WriteString(info.ContentMD5)
	b.WriteByte('\n')
	b.WriteString(info.ContentType)
	b.WriteByte('\n')
	b.WriteString(info.Date)
	b.WriteByte('\n')

	names := make([]string, 0, len(info.AmzHeaders))
	for name := range info.AmzHeaders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(info.AmzHeaders[name])
		b.WriteByte('\n')
	}

	b.WriteString(info.CanonicalResource)
	return b.String()
}

// CanonicalResource builds the signed resource string. When the bucket was
// derived from the Host header the path is prefixed with /bucket, and a
// recognized sub-resource query parameter is appended after '?'.
func CanonicalResource(hostBucket, canonicalPath, subResource string) string {
	var b strings.Builder
	if hostBucket != "" {
		b.WriteByte('/')
		b.WriteString(hostBucket)
	}
	b.WriteString(canonicalPath)
	if subResource != "" {
		b.WriteByte('?')
		b.WriteString(subResource)
	}
	return b.String()
}
