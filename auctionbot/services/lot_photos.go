package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// PhotoStorage keeps lot photos in an S3-compatible object store and hands
// out the public URLs embedded into listings.
type PhotoStorage struct {
	client *s3.Client
	bucket string
	region string
	root   string
}

func NewPhotoStorage(key, secret, region, bucket, root string) (*PhotoStorage, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load object storage config: %w", err)
	}

	return &PhotoStorage{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
		root:   strings.Trim(root, "/"),
	}, nil
}

// Upload stores one photo under a collision-free key and returns the key and
// its public URL.
func (p *PhotoStorage) Upload(ctx context.Context, lotPublicID int64, filename, contentType string, body io.Reader) (string, string, error) {
	data, err := io.ReadAll(io.LimitReader(body, 20<<20))
	if err != nil {
		return "", "", fmt.Errorf("failed to read photo: %w", err)
	}

	ext := path.Ext(filename)
	if ext == "" {
		ext = ".jpg"
	}
	key := fmt.Sprintf("%s/lot-%d/%s%s", p.root, lotPublicID, uuid.NewString(), ext)
	if contentType == "" {
		contentType = "image/jpeg"
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload photo: %w", err)
	}
	return key, p.PublicURL(key), nil
}

// Delete removes a stored photo.
func (p *PhotoStorage) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	return err
}

func (p *PhotoStorage) PublicURL(key string) string {
	return fmt.Sprintf("https://%s.%s.digitaloceanspaces.com/%s", p.bucket, p.region, key)
}
