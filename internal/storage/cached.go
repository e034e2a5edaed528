package storage

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/singleflight"

	"github.com/sashko-guz/objstore/internal/cache"
	"github.com/sashko-guz/objstore/internal/logger"
)

// CachedClient wraps a Client with a read-through cache of object payloads.
// Layer 1: in-memory (optional)
// Layer 2: disk (optional)
// Layer 3: the underlying client
// Errors are never cached. A successful PutObject invalidates the key.
type CachedClient struct {
	underlying Client
	memory     cache.MemoryLayer
	disk       *cache.DiskCache
	ttl        time.Duration
	name       string
	log        *logger.Logger
	group      singleflight.Group
}

type fetchedObject struct {
	data         []byte
	contentType  *string
	etag         *string
	lastModified *time.Time
}

func cacheKey(bucket, key string) string {
	return bucket + "/" + key
}

func (cs *CachedClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	k := cacheKey(aws.ToString(params.Bucket), aws.ToString(params.Key))

	if cs.memory != nil {
		if data, found := cs.memory.Get(k); found {
			cs.log.Debugf("[CachedClient:%s] Memory cache HIT for key: %s", cs.name, k)
			return newGetObjectOutput(&fetchedObject{data: data}), nil
		}
	}

	if cs.disk != nil {
		if data, err := cs.disk.Get(k); err == nil {
			cs.log.Debugf("[CachedClient:%s] Disk cache HIT for key: %s", cs.name, k)
			if cs.memory != nil {
				cs.memory.Set(k, data, cs.ttl)
			}
			return newGetObjectOutput(&fetchedObject{data: data}), nil
		}
	}

	// The shared fetch must outlive any single caller; each caller still
	// honors its own ctx while waiting.
	fetchCtx := context.WithoutCancel(ctx)
	ch := cs.group.DoChan(k, func() (any, error) {
		out, err := cs.underlying.GetObject(fetchCtx, params, optFns...)
		if err != nil {
			return nil, err
		}

		var data []byte
		if out != nil && out.Body != nil {
			defer out.Body.Close()
			if data, err = io.ReadAll(out.Body); err != nil {
				return nil, err
			}
		}

		obj := &fetchedObject{data: data}
		if out != nil {
			obj.contentType = out.ContentType
			obj.etag = out.ETag
			obj.lastModified = out.LastModified
		}
		cs.store(k, data)
		return obj, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		cs.log.Debugf("[CachedClient:%s] Concurrent fetch shared for key: %s", cs.name, k)
	}
	return newGetObjectOutput(res.Val.(*fetchedObject)), nil
}

func (cs *CachedClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	out, err := cs.underlying.PutObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	cs.Invalidate(aws.ToString(params.Bucket), aws.ToString(params.Key))
	return out, nil
}

// Invalidate drops bucket/key from every cache layer.
func (cs *CachedClient) Invalidate(bucket, key string) {
	k := cacheKey(bucket, key)
	cs.group.Forget(k)
	if cs.memory != nil {
		cs.memory.Delete(k)
	}
	if cs.disk != nil {
		if err := cs.disk.Delete(k); err != nil {
			cs.log.Warnf("[CachedClient:%s] Error invalidating disk cache for key %s: %v", cs.name, k, err)
		}
	}
}

func (cs *CachedClient) store(k string, data []byte) {
	if cs.memory != nil {
		cs.memory.Set(k, data, cs.ttl)
	}
	if cs.disk != nil {
		if err := cs.disk.Set(k, data); err != nil {
			cs.log.Warnf("[CachedClient:%s] Error writing to disk cache: %v", cs.name, err)
		}
	}
}

// ClearCache removes every cached entry.
func (cs *CachedClient) ClearCache() error {
	if cs.memory != nil {
		cs.memory.Clear()
	}
	if cs.disk != nil {
		return cs.disk.Clear()
	}
	return nil
}

// Close releases cache resources. The underlying client is left alone.
func (cs *CachedClient) Close() error {
	if cs.memory != nil {
		cs.memory.Close()
	}
	if cs.disk != nil {
		cs.disk.Close()
	}
	return nil
}

func newGetObjectOutput(obj *fetchedObject) *s3.GetObjectOutput {
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(obj.data)),
		ContentLength: aws.Int64(int64(len(obj.data))),
		ContentType:   obj.contentType,
		ETag:          obj.etag,
		LastModified:  obj.lastModified,
	}
}

var _ Client = (*CachedClient)(nil)
