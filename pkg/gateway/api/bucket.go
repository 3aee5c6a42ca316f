// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"strconv"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/s3types"
	"github.com/petra-storage/petra/pkg/store"
)

const defaultMaxKeys = 1000

// validBucketName enforces the DNS-compatible subset: 3-63 characters of
// lowercase letters, digits, hyphens and dots, starting and ending
// alphanumeric. Virtual-hosted addressing depends on it.
func validBucketName(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '.':
			if i == 0 || i == len(name)-1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// CreateBucketHandler creates a bucket owned by the caller.
// PUT /{bucket}
func (g *Gateway) CreateBucketHandler(d *data.Data, w http.ResponseWriter) {
	if d.Identity == nil || d.Identity.IsAnonymous() {
		writeErrorResponse(w, d, s3err.ErrAccessDenied)
		return
	}
	bucket := d.S3Info.Bucket
	if !validBucketName(bucket) {
		writeErrorResponse(w, d, s3err.ErrInvalidBucketName)
		return
	}

	canned, err := s3types.ParseValidCannedACL(d.Req.Header.Get(s3consts.XAmzACL))
	if err != nil {
		writeErrorResponse(w, d, s3err.ErrInvalidArgument)
		return
	}

	ownerID := d.Identity.AccountID()
	info, err := g.backend.CreateBucket(d.Ctx, ownerID, bucket)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	acl := s3types.FromCannedACL(canned, ownerID, d.Identity.Account.DisplayName)
	if err := g.storeACL(d, bucket, "", acl); err != nil {
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}

	g.addUserBucket(d, ownerID, store.BucketEntry{Name: bucket, Created: info.Created})

	w.Header().Set("Location", "/"+bucket)
	writeEmptyResponse(w, d)
}

// DeleteBucketHandler removes an empty bucket.
// DELETE /{bucket}
func (g *Gateway) DeleteBucketHandler(d *data.Data, w http.ResponseWriter) {
	bucket := d.S3Info.Bucket
	ownerID := d.Identity.AccountID()

	if err := g.backend.DeleteBucket(d.Ctx, ownerID, bucket); err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	g.removeUserBucket(d, ownerID, bucket)
	writeEmptyResponse(w, d)
}

// ListObjectsHandler enumerates a bucket's keys.
// GET /{bucket}
func (g *Gateway) ListObjectsHandler(d *data.Data, w http.ResponseWriter) {
	bucket := d.S3Info.Bucket

	if _, err := g.backend.StatBucket(d.Ctx, bucket); err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	prefix := d.Args.Get(s3consts.QueryPrefix)
	marker := d.Args.Get(s3consts.QueryMarker)
	delimiter := d.Args.Get(s3consts.QueryDelimiter)

	maxKeys := defaultMaxKeys
	if d.Args.Exists(s3consts.QueryMaxKeys) {
		n, err := strconv.Atoi(d.Args.Get(s3consts.QueryMaxKeys))
		if err != nil || n < 0 {
			writeErrorResponse(w, d, s3err.ErrInvalidArgument)
			return
		}
		maxKeys = n
	}

	result, err := g.backend.ListObjects(d.Ctx, bucket, prefix, marker, maxKeys, delimiter)
	if err != nil {
		logger.Error().Err(err).Str("bucket", bucket).Msg("list objects failed")
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	x := startXMLResponse(w, d)
	x.OpenSection("ListBucketResult")
	x.Value("Name", bucket)
	if prefix != "" {
		x.Value("Prefix", prefix)
	}
	if marker != "" {
		x.Value("Marker", marker)
	}
	if d.Args.Exists(s3consts.QueryMaxKeys) {
		x.Valuef("MaxKeys", "%d", maxKeys)
	}
	if delimiter != "" {
		x.Value("Delimiter", delimiter)
	}
	x.Valuef("IsTruncated", "%t", result.IsTruncated)

	for _, obj := range result.Entries {
		x.OpenSection("Contents")
		x.Value("Key", obj.Key)
		x.Time("LastModified", obj.MTime)
		x.Value("ETag", quoteETag(obj.ETag))
		x.Valuef("Size", "%d", obj.Size)
		x.Value("StorageClass", "STANDARD")
		x.OpenSection("Owner")
		x.Value("ID", obj.OwnerID)
		x.Value("DisplayName", g.displayName(d, obj.OwnerID))
		x.CloseSection("Owner")
		x.CloseSection("Contents")
	}

	for _, p := range result.CommonPrefixes {
		x.OpenSection("CommonPrefixes")
		x.Value("Prefix", p)
		x.CloseSection("CommonPrefixes")
	}

	x.CloseSection("ListBucketResult")
}

// GetBucketLocationHandler returns the bucket's region constraint. The
// gateway is single-region; the classic empty constraint is returned.
// GET /{bucket}?location
func (g *Gateway) GetBucketLocationHandler(d *data.Data, w http.ResponseWriter) {
	if _, err := g.backend.StatBucket(d.Ctx, d.S3Info.Bucket); err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	x := startXMLResponse(w, d)
	x.Value("LocationConstraint", "")
}

func (g *Gateway) displayName(d *data.Data, accountID string) string {
	if name, ok := g.iam.AccountByID(d.Ctx, accountID); ok {
		return name
	}
	return accountID
}

// addUserBucket appends to the caller's bucket index. The index is
// advisory: a read failure counts as an empty index and the unconditional
// rewrite repairs it.
func (g *Gateway) addUserBucket(d *data.Data, ownerID string, entry store.BucketEntry) {
	buckets, err := g.backend.UserBuckets(d.Ctx, ownerID)
	if err != nil {
		buckets = nil
	}
	for _, b := range buckets {
		if b.Name == entry.Name {
			return
		}
	}
	buckets = append(buckets, entry)
	if err := g.backend.PutUserBuckets(d.Ctx, ownerID, buckets); err != nil {
		logger.Warn().Err(err).Str("user", ownerID).Msg("failed to update bucket index")
	}
}

func (g *Gateway) removeUserBucket(d *data.Data, ownerID, name string) {
	buckets, err := g.backend.UserBuckets(d.Ctx, ownerID)
	if err != nil {
		buckets = nil
	}
	out := buckets[:0]
	for _, b := range buckets {
		if b.Name != name {
			out = append(out, b)
		}
	}
	if err := g.backend.PutUserBuckets(d.Ctx, ownerID, out); err != nil {
		logger.Warn().Err(err).Str("user", ownerID).Msg("failed to update bucket index")
	}
}

func (g *Gateway) storeACL(d *data.Data, bucket, key string, acl *s3types.AccessControlList) error {
	raw, err := acl.Encode()
	if err != nil {
		logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to encode ACL")
		return err
	}
	if err := g.backend.SetAttr(d.Ctx, bucket, key, store.AttrACL, raw); err != nil {
		logger.Error().Err(err).Str("bucket", bucket).Str("key", key).Msg("failed to store ACL")
		return err
	}
	return nil
}
