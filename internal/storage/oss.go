package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSS stores attachments in an Aliyun OSS bucket.
type OSS struct {
	bucket    *oss.Bucket
	publicURL string
}

func NewOSS(endpoint, accessKey, secretKey, bucketName, publicURL string) (*OSS, error) {
	client, err := oss.New(endpoint, accessKey, secretKey)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", bucketName, err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.%s", bucketName, endpoint)
	}
	return &OSS{bucket: bucket, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (s *OSS) Put(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	opts := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}
