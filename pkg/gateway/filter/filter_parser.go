// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package filter

import (
	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
)

const FilterTypeParser = "ParserFilter"

// ParserFilter resolves the addressed bucket/key and the operation before
// authentication runs; the canonical resource it records is what the
// signature is computed over.
type ParserFilter struct {
	router *Router
}

func NewParserFilter() *ParserFilter {
	return &ParserFilter{router: NewRouter()}
}

func (f *ParserFilter) Type() string {
	return FilterTypeParser
}

func (f *ParserFilter) Run(d *data.Data) (Response, error) {
	if d.Ctx.Err() != nil {
		return nil, d.Ctx.Err()
	}

	res := Resolve(d.Req.Host, d.Req.URL.Path, d.Req.URL.RawQuery)
	d.Args = res.Args
	d.S3Info.Bucket = res.Bucket
	d.S3Info.Key = res.Key
	d.S3Info.HostBucket = res.HostBucket
	d.S3Info.CanonicalPath = res.CanonicalPath

	action, ok := f.router.Match(d.Req, res)
	if !ok {
		return End{}, s3err.ErrInvalidArgument
	}
	d.S3Info.Action = action

	return Next{}, nil
}
