package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// AmazonS3Storage implements Provider for Amazon S3 and S3 compatible stores
type AmazonS3Storage struct {
	bucket   string
	prefix   string
	s3Client *s3.S3
	uploader *s3manager.Uploader
}

// NewAmazonS3Storage creates a new Amazon S3 storage provider
func NewAmazonS3Storage() *AmazonS3Storage {
	return &AmazonS3Storage{}
}

// Initialize sets up the S3 client. Options: region and bucket (required),
// prefix, accessKey/secretKey (else the default credential chain), endpoint and
// forcePathStyle for S3 compatible servers.
func (a *AmazonS3Storage) Initialize(config map[string]string) error {
	region := config["region"]
	if region == "" {
		return fmt.Errorf("region is required for Amazon S3 storage")
	}
	bucket := config["bucket"]
	if bucket == "" {
		return fmt.Errorf("bucket is required for Amazon S3 storage")
	}
	a.bucket = bucket
	a.prefix = config["prefix"]

	awsConfig := &aws.Config{Region: aws.String(region)}

	accessKey, secretKey := config["accessKey"], config["secretKey"]
	if accessKey != "" && secretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}
	if endpoint := config["endpoint"]; endpoint != "" {
		awsConfig.Endpoint = aws.String(endpoint)
	}
	if v := config["forcePathStyle"]; v != "" {
		forcePathStyle, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid forcePathStyle %q: %w", v, err)
		}
		awsConfig.S3ForcePathStyle = aws.Bool(forcePathStyle)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return fmt.Errorf("failed to create AWS session: %w", err)
	}

	a.s3Client = s3.New(sess)
	a.uploader = s3manager.NewUploader(sess)
	return nil
}

// Bucket returns the configured bucket
func (a *AmazonS3Storage) Bucket() string {
	return a.bucket
}

func (a *AmazonS3Storage) objectKey(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return a.prefix + cleaned, nil
}

// Store uploads content to prefix+key
func (a *AmazonS3Storage) Store(ctx context.Context, key string, content io.Reader, size int64, metadata map[string]string) (string, error) {
	objectKey, err := a.objectKey(key)
	if err != nil {
		return "", err
	}

	s3Metadata := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		s3Metadata[k] = aws.String(v)
	}

	input := &s3manager.UploadInput{
		Bucket:   aws.String(a.bucket),
		Key:      aws.String(objectKey),
		Body:     content,
		Metadata: s3Metadata,
	}
	if ct := metadata[MetaContentType]; ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := a.uploader.UploadWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return objectKey, nil
}

// Retrieve gets an object from S3
func (a *AmazonS3Storage) Retrieve(ctx context.Context, id string) (io.ReadCloser, map[string]string, error) {
	output, err := a.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to retrieve file from S3: %w", err)
	}

	metadata := make(map[string]string)
	for k, v := range output.Metadata {
		if v != nil {
			metadata[canonicalMetaKey(k)] = *v
		}
	}
	if output.ContentType != nil && metadata[MetaContentType] == "" {
		metadata[MetaContentType] = *output.ContentType
	}
	return output.Body, metadata, nil
}

// Delete removes an object from S3
func (a *AmazonS3Storage) Delete(ctx context.Context, id string) error {
	_, err := a.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// List returns the objects under the storage prefix plus prefix
func (a *AmazonS3Storage) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String(a.prefix + prefix),
	}

	var files []ObjectInfo
	err := a.s3Client.ListObjectsV2PagesWithContext(ctx, input, func(output *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range output.Contents {
			info := ObjectInfo{
				ID:   aws.StringValue(obj.Key),
				Name: path.Base(aws.StringValue(obj.Key)),
				Size: aws.Int64Value(obj.Size),
			}
			if obj.LastModified != nil {
				info.ModifiedAt = *obj.LastModified
			}
			files = append(files, info)
		}
		return !lastPage
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files from S3: %w", err)
	}
	return files, nil
}
