// Copyright 2025 Petra Authors
// SPDX-License-Identifier: Apache-2.0

// Package store is the object/metadata collaborator behind the gateway.
// Calls are synchronous from the request pipeline's perspective; the store
// provides its own internal consistency.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrBucketNotFound = errors.New("bucket not found")
	ErrBucketExists   = errors.New("bucket already exists")
	ErrBucketNotEmpty = errors.New("bucket not empty")
	ErrObjectNotFound = errors.New("object not found")
	ErrAttrNotFound   = errors.New("attribute not found")
)

// AttrACL is the attribute name under which access control policies are
// stored, for buckets and objects alike.
const AttrACL = "user.petra.acl"

// BucketInfo describes a bucket record.
type BucketInfo struct {
	Name    string
	OwnerID string
	Created time.Time
}

// ObjectInfo describes an object record without its payload.
type ObjectInfo struct {
	Bucket      string
	Key         string
	OwnerID     string
	ETag        string
	ContentType string
	Size        int64
	MTime       time.Time
}

// BucketEntry is one row of a user's bucket index.
type BucketEntry struct {
	Name    string
	Created time.Time
}

// ListResult is the outcome of a ListObjects enumeration.
type ListResult struct {
	Entries        []ObjectInfo
	CommonPrefixes []string
	IsTruncated    bool
}

// Backend is the blob/metadata store interface the gateway drives.
type Backend interface {
	CreateBucket(ctx context.Context, ownerID, name string) (*BucketInfo, error)
	DeleteBucket(ctx context.Context, ownerID, name string) error
	StatBucket(ctx context.Context, name string) (*BucketInfo, error)

	PutObject(ctx context.Context, ownerID, bucket, key string, data []byte, etag, contentType string) (*ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string) ([]byte, *ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, ownerID, bucket, key string) error
	CopyObject(ctx context.Context, ownerID, destBucket, destKey, srcBucket, srcKey string) (*ObjectInfo, error)

	// GetAttr and SetAttr access the attribute namespace of a bucket
	// (key == "") or an object. The ACL lives under AttrACL.
	GetAttr(ctx context.Context, bucket, key, name string) ([]byte, error)
	SetAttr(ctx context.Context, bucket, key, name string, value []byte) error

	ListObjects(ctx context.Context, bucket, prefix, marker string, maxKeys int, delimiter string) (*ListResult, error)

	// UserBuckets reads the per-user bucket index. A missing or corrupt
	// record reads as an empty index; the next PutUserBuckets rewrite
	// repairs it.
	UserBuckets(ctx context.Context, userID string) ([]BucketEntry, error)
	PutUserBuckets(ctx context.Context, userID string, buckets []BucketEntry) error

	Close() error
}
