// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"context"
	"net/http"
	"strings"

	"github.com/petra-storage/petra/pkg/iam"
	"github.com/petra-storage/petra/pkg/s3api/args"
	"github.com/petra-storage/petra/pkg/s3api/s3action"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3types"
)

// Data is the request-scoped context threaded through the filter chain.
// It is created per request, mutated in pipeline order, and never shared
// across requests.
type Data struct {
	Ctx      context.Context
	Req      *http.Request
	S3Info   *S3Info
	Identity *iam.Identity // set by the authentication filter

	// ACL is the policy loaded for the request's target, set by the
	// authorization filter and reused by ACL handlers.
	ACL *s3types.AccessControlList

	// AmzHeaders holds the canonicalized x-amz-* request headers: names
	// lowercased with underscores mapped to hyphens, values with folded
	// whitespace collapsed, duplicates joined with commas.
	AmzHeaders map[string]string

	// Args is the parsed query string.
	Args args.Args
}

// S3Info carries the resolved resource identity.
type S3Info struct {
	Bucket  string
	Key     string
	Action  s3action.Action
	OwnerID string

	// HostBucket is set when the bucket was derived from the Host header.
	// The canonical resource for signing is then prefixed with /HostBucket.
	HostBucket string

	// CanonicalPath is the request path with any query string stripped.
	CanonicalPath string
}

func NewData(ctx context.Context, req *http.Request) *Data {
	return &Data{
		Ctx:        ctx,
		Req:        req,
		S3Info:     &S3Info{},
		AmzHeaders: canonicalAmzHeaders(req.Header),
	}
}

// canonicalAmzHeaders extracts x-amz-* headers in their canonical form.
// Later occurrences of the same header are appended with a comma separator.
func canonicalAmzHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for name, values := range h {
		lower := strings.ReplaceAll(strings.ToLower(name), "_", "-")
		if !strings.HasPrefix(lower, s3consts.XAmzPrefix) {
			continue
		}
		for _, v := range values {
			v = foldWhitespace(v)
			if prev, ok := out[lower]; ok {
				out[lower] = prev + "," + v
			} else {
				out[lower] = v
			}
		}
	}
	return out
}

// foldWhitespace collapses runs of whitespace, including folded
// line-continuation whitespace, to single spaces and trims the ends.
func foldWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
