package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/petra-storage/petra/pkg/logger"
)

// Key layout:
//
//	b/<bucket>          -> bucketRecord
//	o/<bucket>/<key>    -> objectRecord
//	u/<userID>          -> []BucketEntry
const (
	bucketKeyPrefix = "b/"
	objectKeyPrefix = "o/"
	userKeyPrefix   = "u/"
)

type bucketRecord struct {
	OwnerID string
	Created time.Time
	Attrs   map[string][]byte
}

type objectRecord struct {
	OwnerID     string
	Data        []byte
	ETag        string
	ContentType string
	MTime       time.Time
	Attrs       map[string][]byte
}

// LevelDBStore is a single-node Backend over a goleveldb database.
type LevelDBStore struct {
	db *leveldb.DB

	// Serializes bucket create/delete so existence checks and writes are
	// atomic with respect to each other.
	mu sync.Mutex

	writeOpts     *opt.WriteOptions
	writeOptsSync *opt.WriteOptions
}

// OpenLevelDB opens (or creates) the store at dir, recovering from a
// corrupted manifest when possible.
func OpenLevelDB(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if ldberrors.IsCorrupted(err) {
		logger.Warn().Err(err).Str("dir", dir).Msg("store corrupted, attempting recovery")
		db, err = leveldb.RecoverFile(dir, nil)
	}
	if err != nil {
		return nil, err
	}
	return &LevelDBStore{
		db:            db,
		writeOpts:     &opt.WriteOptions{Sync: false},
		writeOptsSync: &opt.WriteOptions{Sync: true},
	}, nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func serialize[T any](v T) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func deserialize[T any](data []byte) (T, error) {
	var v T
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
	return v, err
}

func bucketKey(name string) []byte        { return []byte(bucketKeyPrefix + name) }
func objectKey(bucket, key string) []byte { return []byte(objectKeyPrefix + bucket + "/" + key) }
func userKey(id string) []byte            { return []byte(userKeyPrefix + id) }

func (s *LevelDBStore) getBucket(name string) (*bucketRecord, error) {
	raw, err := s.db.Get(bucketKey(name), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrBucketNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := deserialize[bucketRecord](raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *LevelDBStore) putBucket(name string, rec *bucketRecord, sync bool) error {
	raw, err := serialize(*rec)
	if err != nil {
		return err
	}
	opts := s.writeOpts
	if sync {
		opts = s.writeOptsSync
	}
	return s.db.Put(bucketKey(name), raw, opts)
}

func (s *LevelDBStore) getObject(bucket, key string) (*objectRecord, error) {
	raw, err := s.db.Get(objectKey(bucket, key), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, err
	}
	rec, err := deserialize[objectRecord](raw)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *LevelDBStore) putObject(bucket, key string, rec *objectRecord) error {
	raw, err := serialize(*rec)
	if err != nil {
		return err
	}
	return s.db.Put(objectKey(bucket, key), raw, s.writeOpts)
}

func (s *LevelDBStore) CreateBucket(ctx context.Context, ownerID, name string) (*BucketInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getBucket(name); err == nil {
		return nil, ErrBucketExists
	} else if err != ErrBucketNotFound {
		return nil, err
	}

	rec := &bucketRecord{
		OwnerID: ownerID,
		Created: time.Now(),
		Attrs:   make(map[string][]byte),
	}
	if err := s.putBucket(name, rec, true); err != nil {
		return nil, err
	}
	return &BucketInfo{Name: name, OwnerID: ownerID, Created: rec.Created}, nil
}

func (s *LevelDBStore) DeleteBucket(ctx context.Context, ownerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getBucket(name); err != nil {
		return err
	}

	iter := s.db.NewIterator(util.BytesPrefix(objectKey(name, "")), nil)
	empty := !iter.Next()
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	if !empty {
		return ErrBucketNotEmpty
	}

	return s.db.Delete(bucketKey(name), s.writeOptsSync)
}

func (s *LevelDBStore) StatBucket(ctx context.Context, name string) (*BucketInfo, error) {
	rec, err := s.getBucket(name)
	if err != nil {
		return nil, err
	}
	return &BucketInfo{Name: name, OwnerID: rec.OwnerID, Created: rec.Created}, nil
}

func (s *LevelDBStore) PutObject(ctx context.Context, ownerID, bucket, key string, data []byte, etag, contentType string) (*ObjectInfo, error) {
	if _, err := s.getBucket(bucket); err != nil {
		return nil, err
	}

	rec := &objectRecord{
		OwnerID:     ownerID,
		Data:        data,
		ETag:        etag,
		ContentType: contentType,
		MTime:       time.Now(),
		Attrs:       make(map[string][]byte),
	}
	if err := s.putObject(bucket, key, rec); err != nil {
		return nil, err
	}
	return rec.info(bucket, key), nil
}

func (r *objectRecord) info(bucket, key string) *ObjectInfo {
	return &ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		OwnerID:     r.OwnerID,
		ETag:        r.ETag,
		ContentType: r.ContentType,
		Size:        int64(len(r.Data)),
		MTime:       r.MTime,
	}
}

func (s *LevelDBStore) GetObject(ctx context.Context, bucket, key string) ([]byte, *ObjectInfo, error) {
	rec, err := s.getObject(bucket, key)
	if err != nil {
		return nil, nil, err
	}
	return rec.Data, rec.info(bucket, key), nil
}

func (s *LevelDBStore) StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	rec, err := s.getObject(bucket, key)
	if err != nil {
		return nil, err
	}
	return rec.info(bucket, key), nil
}

func (s *LevelDBStore) DeleteObject(ctx context.Context, ownerID, bucket, key string) error {
	if _, err := s.getObject(bucket, key); err != nil {
		return err
	}
	return s.db.Delete(objectKey(bucket, key), s.writeOpts)
}

func (s *LevelDBStore) CopyObject(ctx context.Context, ownerID, destBucket, destKey, srcBucket, srcKey string) (*ObjectInfo, error) {
	src, err := s.getObject(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	if _, err := s.getBucket(destBucket); err != nil {
		return nil, err
	}

	rec := &objectRecord{
		OwnerID:     ownerID,
		Data:        src.Data,
		ETag:        src.ETag,
		ContentType: src.ContentType,
		MTime:       time.Now(),
		Attrs:       make(map[string][]byte),
	}
	if err := s.putObject(destBucket, destKey, rec); err != nil {
		return nil, err
	}
	return rec.info(destBucket, destKey), nil
}

func (s *LevelDBStore) GetAttr(ctx context.Context, bucket, key, name string) ([]byte, error) {
	var attrs map[string][]byte
	if key == "" {
		rec, err := s.getBucket(bucket)
		if err != nil {
			return nil, err
		}
		attrs = rec.Attrs
	} else {
		rec, err := s.getObject(bucket, key)
		if err != nil {
			return nil, err
		}
		attrs = rec.Attrs
	}

	val, ok := attrs[name]
	if !ok {
		return nil, ErrAttrNotFound
	}
	return val, nil
}

func (s *LevelDBStore) SetAttr(ctx context.Context, bucket, key, name string, value []byte) error {
	if key == "" {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec, err := s.getBucket(bucket)
		if err != nil {
			return err
		}
		if rec.Attrs == nil {
			rec.Attrs = make(map[string][]byte)
		}
		rec.Attrs[name] = value
		return s.putBucket(bucket, rec, true)
	}

	rec, err := s.getObject(bucket, key)
	if err != nil {
		return err
	}
	if rec.Attrs == nil {
		rec.Attrs = make(map[string][]byte)
	}
	rec.Attrs[name] = value
	return s.putObject(bucket, key, rec)
}

func (s *LevelDBStore) ListObjects(ctx context.Context, bucket, prefix, marker string, maxKeys int, delimiter string) (*ListResult, error) {
	if _, err := s.getBucket(bucket); err != nil {
		return nil, err
	}

	result := &ListResult{}
	seenPrefixes := make(map[string]bool)
	keyPrefix := objectKeyPrefix + bucket + "/"

	iter := s.db.NewIterator(util.BytesPrefix(objectKey(bucket, prefix)), nil)
	defer iter.Release()

	for iter.Next() {
		key := strings.TrimPrefix(string(iter.Key()), keyPrefix)
		if marker != "" && key <= marker {
			continue
		}

		if delimiter != "" {
			rest := strings.TrimPrefix(key, prefix)
			if i := strings.Index(rest, delimiter); i >= 0 {
				common := prefix + rest[:i+len(delimiter)]
				seenPrefixes[common] = true
				continue
			}
		}

		if maxKeys >= 0 && len(result.Entries) >= maxKeys {
			result.IsTruncated = true
			break
		}

		rec, err := deserialize[objectRecord](iter.Value())
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, *rec.info(bucket, key))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	for p := range seenPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, p)
	}
	sort.Strings(result.CommonPrefixes)

	return result, nil
}

func (s *LevelDBStore) UserBuckets(ctx context.Context, userID string) ([]BucketEntry, error) {
	raw, err := s.db.Get(userKey(userID), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		logger.Warn().Err(err).Str("user", userID).Msg("user bucket index read failed, treating as empty")
		return nil, nil
	}
	entries, err := deserialize[[]BucketEntry](raw)
	if err != nil {
		logger.Warn().Err(err).Str("user", userID).Msg("user bucket index corrupt, treating as empty")
		return nil, nil
	}
	return entries, nil
}

func (s *LevelDBStore) PutUserBuckets(ctx context.Context, userID string, buckets []BucketEntry) error {
	raw, err := serialize(buckets)
	if err != nil {
		return err
	}
	return s.db.Put(userKey(userID), raw, s.writeOptsSync)
}
