// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/s3types"
	"github.com/petra-storage/petra/pkg/store"

	"github.com/dustin/go-humanize"
)

func quoteETag(etag string) string {
	if strings.HasPrefix(etag, "\"") {
		return etag
	}
	return "\"" + etag + "\""
}

func setObjectHeaders(w http.ResponseWriter, info *store.ObjectInfo) {
	w.Header().Set("ETag", quoteETag(info.ETag))
	w.Header().Set("Last-Modified", info.MTime.UTC().Format(http.TimeFormat))
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
}

// GetObjectHandler returns an object's payload and metadata headers.
// GET /{bucket}/{key}
func (g *Gateway) GetObjectHandler(d *data.Data, w http.ResponseWriter) {
	body, info, err := g.backend.GetObject(d.Ctx, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	setObjectHeaders(w, info)
	setTracingHeaders(w, d)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.Debug().Err(err).Str("bucket", info.Bucket).Str("key", info.Key).Msg("client went away mid-download")
	}
}

// HeadObjectHandler returns an object's metadata headers without the body.
// HEAD /{bucket}/{key}
func (g *Gateway) HeadObjectHandler(d *data.Data, w http.ResponseWriter) {
	info, err := g.backend.StatObject(d.Ctx, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	setObjectHeaders(w, info)
	setTracingHeaders(w, d)
	w.WriteHeader(http.StatusOK)
}

// PutObjectHandler stores an object. A client-supplied Content-MD5 is the
// hex digest of the payload: a header of the wrong shape rejects with
// InvalidDigest before the body is stored, a digest mismatch with
// BadDigest.
// PUT /{bucket}/{key}
func (g *Gateway) PutObjectHandler(d *data.Data, w http.ResponseWriter) {
	canned, err := s3types.ParseValidCannedACL(d.Req.Header.Get(s3consts.XAmzACL))
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidArgument)
		return
	}

	suppliedMD5 := d.Req.Header.Get("Content-MD5")
	if suppliedMD5 != "" && len(suppliedMD5) != 2*md5.Size {
		writeErrorResponse(w, d, s3err.ErrInvalidDigest)
		return
	}

	body, err := io.ReadAll(d.Req.Body)
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrRequestTimeout)
		return
	}

	sum := md5.Sum(body)
	etag := hex.EncodeToString(sum[:])
	if suppliedMD5 != "" && !strings.EqualFold(suppliedMD5, etag) {
		writeErrorResponse(w, d, s3err.ErrBadDigest)
		return
	}

	ownerID := d.Identity.AccountID()
	contentType := d.Req.Header.Get("Content-Type")

	info, err := g.backend.PutObject(d.Ctx, ownerID, d.S3Info.Bucket, d.S3Info.Key, body, etag, contentType)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	acl := s3types.FromCannedACL(canned, ownerID, g.displayName(d, ownerID))
	if err := g.storeACL(d, d.S3Info.Bucket, d.S3Info.Key, acl); err != nil {
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	logger.Debug().
		Str("bucket", info.Bucket).
		Str("key", info.Key).
		Str("size", humanize.Bytes(uint64(info.Size))).
		Msg("object stored")

	w.Header().Set("ETag", quoteETag(etag))
	writeEmptyResponse(w, d)
}

// CopyObjectHandler copies an existing object to a new key. The caller
// needs Read on the source, checked here against the source's own policy,
// and Write on the destination bucket, already checked by the pipeline.
// PUT /{bucket}/{key} with x-amz-copy-source
func (g *Gateway) CopyObjectHandler(d *data.Data, w http.ResponseWriter) {
	srcBucket, srcKey, ok := parseCopySource(d.Req.Header.Get(s3consts.XAmzCopySource))
	if !ok {
		writeErrorResponse(w, d, s3err.ErrInvalidArgument)
		return
	}

	if errCode := g.checkSourceRead(d, srcBucket, srcKey); errCode != s3err.ErrNone {
		writeErrorResponse(w, d, errCode)
		return
	}

	ownerID := d.Identity.AccountID()
	info, err := g.backend.CopyObject(d.Ctx, ownerID, d.S3Info.Bucket, d.S3Info.Key, srcBucket, srcKey)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	acl := s3types.NewPrivateACL(ownerID, g.displayName(d, ownerID))
	if err := g.storeACL(d, d.S3Info.Bucket, d.S3Info.Key, acl); err != nil {
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	x := startXMLResponse(w, d)
	x.OpenSection("CopyObjectResult")
	x.Time("LastModified", info.MTime)
	x.Value("ETag", quoteETag(info.ETag))
	x.CloseSection("CopyObjectResult")
}

// DeleteObjectHandler removes an object.
// DELETE /{bucket}/{key}
func (g *Gateway) DeleteObjectHandler(d *data.Data, w http.ResponseWriter) {
	if err := g.backend.DeleteObject(d.Ctx, d.Identity.AccountID(), d.S3Info.Bucket, d.S3Info.Key); err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}
	writeEmptyResponse(w, d)
}

// parseCopySource splits an x-amz-copy-source value into bucket and key.
// The value is URL-encoded "/bucket/key" or "bucket/key".
func parseCopySource(src string) (bucket, key string, ok bool) {
	if src == "" {
		return "", "", false
	}
	decoded, err := url.PathUnescape(src)
	if err != nil {
		return "", "", false
	}
	decoded = strings.TrimPrefix(decoded, "/")
	bucket, key, found := strings.Cut(decoded, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// checkSourceRead evaluates the caller against the source object's policy,
// falling back to the source bucket's policy. A source with no stored
// policy is left to the backend, which reports not-found if it is absent.
func (g *Gateway) checkSourceRead(d *data.Data, srcBucket, srcKey string) s3err.ErrorCode {
	acl := g.loadACL(d, srcBucket, srcKey)
	if acl == nil {
		acl = g.loadACL(d, srcBucket, "")
	}
	if acl == nil {
		return s3err.ErrNone
	}

	accountID := ""
	isAuthenticated := false
	if d.Identity != nil && !d.Identity.IsAnonymous() {
		accountID = d.Identity.AccountID()
		isAuthenticated = true
	}
	if !acl.Evaluate(accountID, isAuthenticated, s3types.PermissionRead) {
		return s3err.ErrAccessDenied
	}
	return s3err.ErrNone
}

func (g *Gateway) loadACL(d *data.Data, bucket, key string) *s3types.AccessControlList {
	raw, err := g.backend.GetAttr(d.Ctx, bucket, key, store.AttrACL)
	if err != nil {
		return nil
	}
	acl, err := s3types.DecodeACL(raw)
	if err != nil {
		return nil
	}
	return acl
}
