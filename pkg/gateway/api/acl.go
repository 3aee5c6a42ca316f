// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"io"
	"net/http"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/logger"
	"github.com/petra-storage/petra/pkg/s3api/s3consts"
	"github.com/petra-storage/petra/pkg/s3api/s3err"
	"github.com/petra-storage/petra/pkg/s3api/s3types"
	"github.com/petra-storage/petra/pkg/s3api/xmlwriter"
)

const maxACLBodySize = 128 << 10

const granteeXSIAttrs = `xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`

// GetBucketAclHandler returns the ACL of a bucket.
// GET /{bucket}?acl
func (g *Gateway) GetBucketAclHandler(d *data.Data, w http.ResponseWriter) {
	acl := d.ACL
	if acl == nil {
		acl = g.loadACL(d, d.S3Info.Bucket, "")
	}
	if acl == nil {
		info, err := g.backend.StatBucket(d.Ctx, d.S3Info.Bucket)
		if err != nil {
			writeErrorResponse(w, d, storeErrorCode(err))
			return
		}
		acl = s3types.NewPrivateACL(info.OwnerID, g.displayName(d, info.OwnerID))
	}

	x := startXMLResponse(w, d)
	emitACL(x, acl)
}

// GetObjectAclHandler returns the ACL of an object.
// GET /{bucket}/{key}?acl
func (g *Gateway) GetObjectAclHandler(d *data.Data, w http.ResponseWriter) {
	acl := d.ACL
	if acl == nil {
		acl = g.loadACL(d, d.S3Info.Bucket, d.S3Info.Key)
	}
	if acl == nil {
		acl = g.loadACL(d, d.S3Info.Bucket, "")
	}
	if acl == nil {
		info, err := g.backend.StatObject(d.Ctx, d.S3Info.Bucket, d.S3Info.Key)
		if err != nil {
			writeErrorResponse(w, d, storeErrorCode(err))
			return
		}
		acl = s3types.NewPrivateACL(info.OwnerID, g.displayName(d, info.OwnerID))
	}

	x := startXMLResponse(w, d)
	emitACL(x, acl)
}

// PutBucketAclHandler replaces the ACL of a bucket.
// PUT /{bucket}?acl
func (g *Gateway) PutBucketAclHandler(d *data.Data, w http.ResponseWriter) {
	info, err := g.backend.StatBucket(d.Ctx, d.S3Info.Bucket)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	acl, errCode := g.buildRequestACL(d, info.OwnerID)
	if errCode != s3err.ErrNone {
		writeErrorResponse(w, d, errCode)
		return
	}

	if err := g.storeACL(d, d.S3Info.Bucket, "", acl); err != nil {
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}
	writeEmptyResponse(w, d)
}

// PutObjectAclHandler replaces the ACL of an object.
// PUT /{bucket}/{key}?acl
func (g *Gateway) PutObjectAclHandler(d *data.Data, w http.ResponseWriter) {
	info, err := g.backend.StatObject(d.Ctx, d.S3Info.Bucket, d.S3Info.Key)
	if err != nil {
		writeErrorResponse(w, d, storeErrorCode(err))
		return
	}

	acl, errCode := g.buildRequestACL(d, info.OwnerID)
	if errCode != s3err.ErrNone {
		writeErrorResponse(w, d, errCode)
		return
	}

	if err := g.storeACL(d, d.S3Info.Bucket, d.S3Info.Key, acl); err != nil {
		writeErrorResponse(w, d, s3err.ErrInternalError)
		return
	}
	writeEmptyResponse(w, d)
}

// buildRequestACL derives the new policy from the request: an x-amz-acl
// header expands the canned template for the current owner, otherwise the
// body is parsed as an AccessControlPolicy document and rebuilt against
// the credential directory. Grants that do not resolve are dropped and
// logged; an owner that does not resolve fails the request.
func (g *Gateway) buildRequestACL(d *data.Data, ownerID string) (*s3types.AccessControlList, s3err.ErrorCode) {
	if header := d.Req.Header.Get(s3consts.XAmzACL); header != "" {
		canned, err := s3types.ParseValidCannedACL(header)
		if err != nil {
			return nil, s3err.ErrInvalidArgument
		}
		return s3types.FromCannedACL(canned, ownerID, g.displayName(d, ownerID)), s3err.ErrNone
	}

	body, err := io.ReadAll(io.LimitReader(d.Req.Body, maxACLBodySize+1))
	if err != nil {
		return nil, s3err.ErrInternalError
	}
	if len(body) == 0 {
		return s3types.NewPrivateACL(ownerID, g.displayName(d, ownerID)), s3err.ErrNone
	}
	if len(body) > maxACLBodySize {
		return nil, s3err.ErrMalformedACL
	}

	parsed, err := s3types.ParseACLXML(body)
	if err != nil {
		return nil, s3err.ErrMalformedACL
	}

	acl, dropped, err := parsed.Rebuild(d.Ctx, g.iam)
	if err != nil {
		logger.Warn().Err(err).Str("bucket", d.S3Info.Bucket).Msg("acl owner does not resolve")
		return nil, s3err.ErrInvalidArgument
	}
	for _, dg := range dropped {
		logger.Warn().
			Str("bucket", d.S3Info.Bucket).
			Str("key", d.S3Info.Key).
			Str("grantee", dg.Grant.Grantee.ID+dg.Grant.Grantee.EmailAddress+dg.Grant.Grantee.URI).
			Str("reason", dg.Reason).
			Msg("dropped unresolvable grant")
	}

	return acl, s3err.ErrNone
}

func emitACL(x *xmlwriter.Writer, acl *s3types.AccessControlList) {
	x.OpenSection("AccessControlPolicy")

	x.OpenSection("Owner")
	x.Value("ID", acl.Owner.ID)
	x.Value("DisplayName", acl.Owner.DisplayName)
	x.CloseSection("Owner")

	x.OpenSection("AccessControlList")
	for _, grant := range acl.Grants {
		x.OpenSection("Grant")
		x.OpenSectionAttrs("Grantee", granteeXSIAttrs+` xsi:type="`+string(grant.Grantee.Type)+`"`)
		switch grant.Grantee.Type {
		case s3types.GranteeTypeGroup:
			x.Value("URI", grant.Grantee.URI)
		default:
			x.Value("ID", grant.Grantee.ID)
			x.Value("DisplayName", grant.Grantee.DisplayName)
		}
		x.CloseSection("Grantee")
		x.Value("Permission", string(grant.Permission))
		x.CloseSection("Grant")
	}
	x.CloseSection("AccessControlList")

	x.CloseSection("AccessControlPolicy")
}
