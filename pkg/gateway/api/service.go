// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
)

// ListBucketsHandler returns the calling user's buckets.
// GET /
func (g *Gateway) ListBucketsHandler(d *data.Data, w http.ResponseWriter) {
	if d.Identity == nil || d.Identity.IsAnonymous() {
		writeErrorResponse(w, d, s3err.ErrAccessDenied)
		return
	}

	buckets, err := g.backend.UserBuckets(d.Ctx, d.Identity.AccountID())
	if err != nil {
		logger.Error().Err(err).Str("user", d.Identity.AccountID()).Msg("failed to read bucket index")
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	x := startXMLResponse(w, d)
	x.OpenSection("ListAllMyBucketsResult")

	x.OpenSection("Owner")
	x.Value("ID", d.Identity.AccountID())
	x.Value("DisplayName", d.Identity.Account.DisplayName)
	x.CloseSection("Owner")

	x.OpenSection("Buckets")
	for _, b := range buckets {
		x.OpenSection("Bucket")
		x.Value("Name", b.Name)
		x.Time("CreationDate", b.Created)
		x.CloseSection("Bucket")
	}
	x.CloseSection("Buckets")

	x.CloseSection("ListAllMyBucketsResult")
}
