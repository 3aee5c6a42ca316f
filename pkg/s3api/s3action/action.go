// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

package s3action

import "github.com/petra-storage/petra/pkg/s3api/s3types"

// Action identifies an S3 operation the gateway can dispatch.
// https://docs.aws.amazon.com/AmazonS3/latest/API/API_Operations_Amazon_Simple_Storage_Service.html
type Action int

const (
	Unknown Action = iota

	// Service-level
	ListBuckets

	// Bucket-level
	CreateBucket
	DeleteBucket
	ListObjects
	GetBucketAcl
	PutBucketAcl
	GetBucketLocation

	// Object-level
	GetObject
	HeadObject
	PutObject
	CopyObject
	DeleteObject
	GetObjectAcl
	PutObjectAcl
)

func (a Action) String() string {
	switch a {
	case ListBuckets:
		return "ListBuckets"
	case CreateBucket:
		return "CreateBucket"
	case DeleteBucket:
		return "DeleteBucket"
	case ListObjects:
		return "ListObjects"
	case GetBucketAcl:
		return "GetBucketAcl"
	case PutBucketAcl:
		return "PutBucketAcl"
	case GetBucketLocation:
		return "GetBucketLocation"
	case GetObject:
		return "GetObject"
	case HeadObject:
		return "HeadObject"
	case PutObject:
		return "PutObject"
	case CopyObject:
		return "CopyObject"
	case DeleteObject:
		return "DeleteObject"
	case GetObjectAcl:
		return "GetObjectAcl"
	case PutObjectAcl:
		return "PutObjectAcl"
	default:
		return "Unknown"
	}
}

// OperationType classifies S3 actions by their effect on data.
// Used by the rate-limit filter.
type OperationType int

const (
	OpRead  OperationType = iota // GET, HEAD - retrieving data
	OpWrite                      // PUT, DELETE - modifying data
	OpList                       // enumeration (typically more expensive)
)

func (o OperationType) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpList:
		return "list"
	default:
		return "unknown"
	}
}

// Type returns the operation class for the action.
func (a Action) Type() OperationType {
	switch a {
	case ListBuckets, ListObjects:
		return OpList
	case CreateBucket, DeleteBucket, PutObject, CopyObject, DeleteObject, PutBucketAcl, PutObjectAcl:
		return OpWrite
	default:
		return OpRead
	}
}

// RequiredPermission returns the ACL permission the action requires, and
// whether an ACL check applies at all. CreateBucket and ListBuckets are
// identity-scoped: nothing beyond a valid signature is required.
//
// DeleteObject and PutObject are write-class non-ACL operations: the bucket
// ACL is authoritative and the check runs before the handler.
func (a Action) RequiredPermission() (s3types.Permission, bool) {
	switch a {
	case GetObject, HeadObject, ListObjects, GetBucketLocation:
		return s3types.PermissionRead, true
	case PutObject, CopyObject, DeleteObject, DeleteBucket:
		return s3types.PermissionWrite, true
	case GetBucketAcl, GetObjectAcl:
		return s3types.PermissionReadACP, true
	case PutBucketAcl, PutObjectAcl:
		return s3types.PermissionWriteACP, true
	default:
		return "", false
	}
}
