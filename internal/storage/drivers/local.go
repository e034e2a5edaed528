package drivers

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"lukechampine.com/blake3"

	"github.com/sashko-guz/objstore/internal/logger"
)

// LocalClient serves the S3 object API from a directory tree laid out as
// <root>/<bucket>/<key>. Buckets are the first-level directories.
type LocalClient struct {
	basePath string
}

func NewLocalClient(basePath string) (*LocalClient, error) {
	logger.Infof("[Local Driver] Initializing local storage with base path: %s", basePath)

	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalClient{
		basePath: absBasePath,
	}, nil
}

// CreateBucket creates the bucket directory if it does not exist.
func (l *LocalClient) CreateBucket(bucket string) error {
	dir, err := l.bucketPath(bucket)
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

func (l *LocalClient) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	fullPath, err := l.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	fileInfo, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &types.NoSuchKey{Message: aws.String(fmt.Sprintf("key %s does not exist in bucket %s", key, bucket))}
		}
		if os.IsPermission(err) {
			logger.Warnf("[Local Driver] permission denied: %s", fullPath)
			return nil, fmt.Errorf("permission denied for object: %s", key)
		}
		return nil, fmt.Errorf("failed to access object %s: %w", key, err)
	}

	if fileInfo.IsDir() {
		return nil, &types.NoSuchKey{Message: aws.String(fmt.Sprintf("key %s is a prefix, not an object", key))}
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}

	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(etag(data)),
		LastModified:  aws.Time(fileInfo.ModTime()),
	}, nil
}

func (l *LocalClient) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	fullPath, err := l.objectPath(bucket, key)
	if err != nil {
		return nil, err
	}

	var data []byte
	if params.Body != nil {
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, fmt.Errorf("failed to read upload body: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	if err := writeFileAtomic(fullPath, data); err != nil {
		return nil, err
	}

	logger.Debugf("[Local Driver] Stored object: bucket=%s, key=%s, size=%d bytes", bucket, key, len(data))
	return &s3.PutObjectOutput{ETag: aws.String(etag(data))}, nil
}

func (l *LocalClient) bucketPath(bucket string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket name: %q", bucket)
	}
	return filepath.Join(l.basePath, bucket), nil
}

// objectPath resolves bucket/key below the base path and rejects traversal.
// The bucket directory must already exist.
func (l *LocalClient) objectPath(bucket, key string) (string, error) {
	bucketDir, err := l.bucketPath(bucket)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(bucketDir); err != nil || !info.IsDir() {
		return "", &types.NoSuchBucket{Message: aws.String(fmt.Sprintf("bucket %s does not exist", bucket))}
	}

	if key == "" {
		return "", fmt.Errorf("invalid key: empty")
	}

	cleanPath := filepath.Clean(key)
	if filepath.IsAbs(cleanPath) || cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: absolute paths and parent references not allowed")
	}

	fullPath := filepath.Join(bucketDir, cleanPath)
	if !strings.HasPrefix(fullPath, bucketDir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key: directory traversal detected")
	}
	return fullPath, nil
}

func etag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// writeFileAtomic writes data to a unique temp file next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write object: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set object permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename object: %w", err)
	}
	return nil
}
