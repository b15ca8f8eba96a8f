package modelimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of *s3.Client used by AWSManager.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	PutObjectAcl(ctx context.Context, in *s3.PutObjectAclInput, optFns ...func(*s3.Options)) (*s3.PutObjectAclOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// AWSConfig configures NewAWSManager.
type AWSConfig struct {
	Region       string
	AccessKey    string
	AccessSecret string
	Bucket       string

	// Endpoint overrides the S3 endpoint (path-style), e.g. for MinIO.
	Endpoint string

	CacheMaxAge      int
	DefaultImageName string
}

// AWSManager implements Manager on Amazon S3.
type AWSManager struct {
	client       s3API
	bucket       string
	baseURL      string
	cacheControl string
	defaultName  string
}

var _ Manager = (*AWSManager)(nil)

// NewAWSManager creates an S3 client. Static credentials are used when
// AccessKey is set; otherwise the default AWS credential chain applies.
func NewAWSManager(ctx context.Context, cfg AWSConfig) (*AWSManager, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.AccessSecret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newAWSManager(client, cfg), nil
}

func newAWSManager(client s3API, cfg AWSConfig) *AWSManager {
	base := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &AWSManager{
		client:       client,
		bucket:       cfg.Bucket,
		baseURL:      base,
		cacheControl: cacheControl(cfg.CacheMaxAge),
		defaultName:  cfg.DefaultImageName,
	}
}

// ChangeImage uploads the image with its Cache-Control header and then
// grants public read access.
func (m *AWSManager) ChangeImage(ctx context.Context, modelID string, image io.Reader) (string, error) {
	if err := checkModelID(modelID); err != nil {
		return "", err
	}
	if err := m.upload(ctx, modelID, image); err != nil {
		return "", err
	}
	return m.ComputeImageURI(modelID), nil
}

// DeleteImage implements Manager.
func (m *AWSManager) DeleteImage(ctx context.Context, modelID string) error {
	if err := checkModelID(modelID); err != nil {
		return err
	}
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(modelID),
	})
	var noKey *types.NoSuchKey
	if err != nil && !errors.As(err, &noKey) {
		return vendorError("deleting", modelID, err)
	}
	return nil
}

// SetDefaultImage implements Manager.
func (m *AWSManager) SetDefaultImage(ctx context.Context, modelID string) (string, error) {
	return m.ChangeImage(ctx, modelID, bytes.NewReader(defaultImage))
}

// InitializeDefaultImageBlob implements Manager.
func (m *AWSManager) InitializeDefaultImageBlob(ctx context.Context) error {
	return m.upload(ctx, m.defaultName, bytes.NewReader(defaultImage))
}

// SyncImagesCacheControl is not supported on S3: the header is set on
// every upload instead.
func (m *AWSManager) SyncImagesCacheControl(context.Context) error {
	return ErrNotSupported
}

// ComputeImageURI implements Manager.
func (m *AWSManager) ComputeImageURI(modelID string) string {
	return m.baseURL + "/" + url.PathEscape(modelID)
}

func (m *AWSManager) upload(ctx context.Context, key string, image io.Reader) error {
	body, contentType, err := bufferImage(image)
	if err != nil {
		return err
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(body.Size()),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String(m.cacheControl),
	})
	if err != nil {
		return vendorError("uploading", key, err)
	}

	_, err = m.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		ACL:    types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return vendorError("setting public acl on", key, err)
	}
	return nil
}
