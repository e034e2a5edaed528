package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/sashko-guz/objstore/internal/logger"
)

const (
	StatusSuccess = "success"

	contentTypeJSON = "application/json"
)

var ErrClientRequired = errors.New("storage: object storage client is not defined")

// Params addresses an object. Body and ContentType are only used on upload.
type Params struct {
	Bucket      string
	Key         string
	Body        []byte
	ContentType string
}

type UploadResult struct {
	Status string `json:"status"`
}

// Service fetches JSON documents from and uploads payloads to object storage
// through an injected Client.
type Service struct {
	client Client
	log    *logger.Logger
	// closer is set only when the service built its own client.
	closer io.Closer
}

type Option func(*Service)

// WithLogger replaces the package default logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService returns ErrClientRequired when client is nil or a typed nil pointer.
func NewService(client Client, opts ...Option) (*Service, error) {
	if isNilClient(client) {
		return nil, ErrClientRequired
	}

	s := &Service{
		client: client,
		log:    logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// GetObject fetches the object and decodes its body as JSON.
// Errors from the client are returned as is.
func (s *Service) GetObject(ctx context.Context, params Params) (any, error) {
	var value any
	if err := s.GetObjectInto(ctx, params, &value); err != nil {
		return nil, err
	}
	return value, nil
}

// GetObjectInto fetches the object and decodes its JSON body into v.
func (s *Service) GetObjectInto(ctx context.Context, params Params, v any) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(params.Bucket),
		Key:    aws.String(params.Key),
	})
	if err != nil {
		s.log.Errorf("[Storage] GetObject failed for key %s in bucket %s%s: %v", params.Key, params.Bucket, errorCode(err), err)
		return err
	}

	data, err := readBody(out)
	if err != nil {
		s.log.Errorf("[Storage] Error reading object body: bucket=%s, key=%s, error=%v", params.Bucket, params.Key, err)
		return fmt.Errorf("storage: read object %s/%s: %w", params.Bucket, params.Key, err)
	}

	s.log.Infof("[Storage] GetObject succeeded for key %s (%d bytes)", params.Key, len(data))

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode object %s/%s: %w", params.Bucket, params.Key, err)
	}
	return nil
}

// UploadObject stores params.Body under params.Bucket/params.Key.
// The result does not echo anything returned by the client.
func (s *Service) UploadObject(ctx context.Context, params Params) (*UploadResult, error) {
	s.log.Debugf("[Storage] Starting upload: bucket=%s, key=%s, size=%d bytes", params.Bucket, params.Key, len(params.Body))

	input := &s3.PutObjectInput{
		Bucket: aws.String(params.Bucket),
		Key:    aws.String(params.Key),
		Body:   bytes.NewReader(params.Body),
	}
	if params.ContentType != "" {
		input.ContentType = aws.String(params.ContentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Errorf("[Storage] PutObject failed for key %s in bucket %s%s: %v", params.Key, params.Bucket, errorCode(err), err)
		return nil, err
	}

	s.log.Infof("[Storage] PutObject succeeded for key %s", params.Key)
	return &UploadResult{Status: StatusSuccess}, nil
}

// UploadJSON encodes v as the body and uploads it. ContentType defaults to application/json.
func (s *Service) UploadJSON(ctx context.Context, params Params, v any) (*UploadResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("storage: encode object %s/%s: %w", params.Bucket, params.Key, err)
	}

	params.Body = data
	if params.ContentType == "" {
		params.ContentType = contentTypeJSON
	}
	return s.UploadObject(ctx, params)
}

// ClearCache drops every cached payload when the client caches reads.
// It is a no-op for plain clients.
func (s *Service) ClearCache() error {
	c, ok := s.client.(interface{ ClearCache() error })
	if !ok {
		return nil
	}
	if err := c.ClearCache(); err != nil {
		s.log.Errorf("[Storage] Failed to clear cache: %v", err)
		return err
	}
	s.log.Infof("[Storage] Cache cleared")
	return nil
}

// Close releases a client created by NewServiceFromConfig.
// A client passed to NewService belongs to the caller and is not touched.
func (s *Service) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func readBody(out *s3.GetObjectOutput) ([]byte, error) {
	if out == nil || out.Body == nil {
		return nil, nil
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// errorCode formats the remote error code for log lines, if there is one.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return " (code " + apiErr.ErrorCode() + ")"
	}
	return ""
}

func isNilClient(client Client) bool {
	if client == nil {
		return true
	}
	v := reflect.ValueOf(client)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Slice, reflect.Chan:
		return v.IsNil()
	}
	return false
}
