package drivers

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/net/http2"

	"github.com/sashko-guz/objstore/internal/logger"
)

const DefaultRegion = "us-east-1"

// HTTPConfig contains HTTP client configuration for S3 connections
type HTTPConfig struct {
	MaxIdleConns          int `json:"max_idle_conns,omitempty"`              // Max idle connections across all hosts (default: 100)
	MaxIdleConnsPerHost   int `json:"max_idle_conns_per_host,omitempty"`     // Max idle connections per host (default: 100)
	MaxConnsPerHost       int `json:"max_conns_per_host,omitempty"`          // Max total connections per host (default: 0 = unlimited)
	IdleConnTimeout       int `json:"idle_conn_timeout_sec,omitempty"`       // Idle connection timeout in seconds (default: 90)
	ConnectTimeout        int `json:"connect_timeout_sec,omitempty"`         // Connection timeout in seconds (default: 10)
	RequestTimeout        int `json:"request_timeout_sec,omitempty"`         // Full request timeout in seconds (default: 30)
	ResponseHeaderTimeout int `json:"response_header_timeout_sec,omitempty"` // Response header timeout in seconds (default: 10)
}

// withDefaults returns a copy with every unset field filled in.
func (c *HTTPConfig) withDefaults() HTTPConfig {
	out := HTTPConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90,
		ConnectTimeout:        10,
		RequestTimeout:        30,
		ResponseHeaderTimeout: 10,
	}
	if c == nil {
		return out
	}
	if c.MaxIdleConns > 0 {
		out.MaxIdleConns = c.MaxIdleConns
	}
	if c.MaxIdleConnsPerHost > 0 {
		out.MaxIdleConnsPerHost = c.MaxIdleConnsPerHost
	}
	if c.MaxConnsPerHost > 0 {
		out.MaxConnsPerHost = c.MaxConnsPerHost
	}
	if c.IdleConnTimeout > 0 {
		out.IdleConnTimeout = c.IdleConnTimeout
	}
	if c.ConnectTimeout > 0 {
		out.ConnectTimeout = c.ConnectTimeout
	}
	if c.RequestTimeout > 0 {
		out.RequestTimeout = c.RequestTimeout
	}
	if c.ResponseHeaderTimeout > 0 {
		out.ResponseHeaderTimeout = c.ResponseHeaderTimeout
	}
	return out
}

// S3Options describes how to reach an S3 or S3-compatible endpoint.
type S3Options struct {
	Region    string
	AccessKey string
	SecretKey string
	BaseURL   string // custom endpoint for S3-compatible storage (MinIO, R2, ...)
	HTTP      *HTTPConfig
}

func newHTTPClient(httpConfig *HTTPConfig) *http.Client {
	cfg := httpConfig.withDefaults()

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   time.Duration(cfg.ConnectTimeout) * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       time.Duration(cfg.IdleConnTimeout) * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: time.Duration(cfg.ResponseHeaderTimeout) * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.Warnf("[S3 Driver] Failed to configure HTTP/2: %v", err)
	}

	logger.Debugf("[S3 Driver] HTTP client configured: MaxIdleConns=%d, MaxIdleConnsPerHost=%d, MaxConnsPerHost=%d, ConnectTimeout=%ds, RequestTimeout=%ds",
		cfg.MaxIdleConns, cfg.MaxIdleConnsPerHost, cfg.MaxConnsPerHost, cfg.ConnectTimeout, cfg.RequestTimeout)

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
	}
}

// NewS3Client builds an aws-sdk-go-v2 client. A BaseURL switches to
// path-style addressing with static credentials, which S3-compatible
// services expect.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	if opts.Region == "" {
		opts.Region = DefaultRegion
	}
	if opts.BaseURL != "" && (opts.AccessKey == "" || opts.SecretKey == "") {
		return nil, fmt.Errorf("access_key and secret_key are required when using base_url")
	}

	httpClient := newHTTPClient(opts.HTTP)

	if opts.BaseURL != "" {
		logger.Infof("[S3 Driver] Initializing S3-compatible client: endpoint=%s, region=%s", opts.BaseURL, opts.Region)
		return s3.New(s3.Options{
			Region:       opts.Region,
			Credentials:  credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
			BaseEndpoint: aws.String(opts.BaseURL),
			UsePathStyle: true,
			HTTPClient:   httpClient,
		}), nil
	}

	logger.Infof("[S3 Driver] Initializing AWS S3 client: region=%s", opts.Region)
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithHTTPClient(httpClient),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg), nil
}
