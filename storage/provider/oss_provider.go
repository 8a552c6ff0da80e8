package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alibabacloud-go/tea/tea"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	openapicred "github.com/aliyun/credentials-go/credentials"
)

// OSSProvider Alibaba Cloud OSS storage provider implementation
type OSSProvider struct {
	client *oss.Client
	bucket string
	prefix string // path prefix
}

// NewOSSProvider creates a new OSS storage provider
func NewOSSProvider(providerConfig *ProviderConfig) (*OSSProvider, error) {
	if providerConfig.Type != ProviderTypeOSS {
		return nil, fmt.Errorf("invalid provider type: %s, expected: %s", providerConfig.Type, ProviderTypeOSS)
	}

	if providerConfig.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required for OSS provider")
	}

	if providerConfig.Region == "" {
		return nil, fmt.Errorf("region is required for OSS provider")
	}

	var cfg *oss.Config

	if providerConfig.OSS != nil && providerConfig.OSS.CustomConfig != nil {
		if ossConfig, ok := providerConfig.OSS.CustomConfig.(*oss.Config); ok {
			cfg = ossConfig
		} else {
			return nil, fmt.Errorf("invalid OSS config type, expected *oss.Config")
		}
	} else {
		var provider credentials.CredentialsProvider

		if providerConfig.OSS != nil && providerConfig.OSS.AccessKey != "" && providerConfig.OSS.SecretAccessKey != "" {
			// Static credentials provider
			provider = credentials.CredentialsProviderFunc(func(ctx context.Context) (credentials.Credentials, error) {
				return credentials.Credentials{
					AccessKeyID:     providerConfig.OSS.AccessKey,
					AccessKeySecret: providerConfig.OSS.SecretAccessKey,
					SecurityToken:   providerConfig.OSS.SessionToken,
				}, nil
			})
		} else {
			// Default credentials chain only when no explicit credentials provided
			cred, err := openapicred.NewCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("failed to create default AliCloud credentials: %w", err)
			}

			provider = credentials.CredentialsProviderFunc(func(ctx context.Context) (credentials.Credentials, error) {
				model, err := cred.GetCredential()
				if err != nil {
					return credentials.Credentials{}, err
				}

				return credentials.Credentials{
					AccessKeyID:     tea.StringValue(model.AccessKeyId),
					AccessKeySecret: tea.StringValue(model.AccessKeySecret),
					SecurityToken:   tea.StringValue(model.SecurityToken),
				}, nil
			})
		}

		cfg = oss.LoadDefaultConfig().WithRegion(providerConfig.Region).WithCredentialsProvider(provider)

		if providerConfig.Endpoint != "" {
			cfg = cfg.WithEndpoint(providerConfig.Endpoint)
		}
	}

	client := oss.NewClient(cfg)

	return &OSSProvider{
		client: client,
		bucket: providerConfig.Bucket,
		prefix: providerConfig.Prefix,
	}, nil
}

// buildPath builds the complete path with prefix
func (o *OSSProvider) buildPath(path string) string {
	if o.prefix == "" {
		return path
	}
	prefix := strings.TrimSuffix(o.prefix, "/")
	path = strings.TrimPrefix(path, "/")
	return prefix + "/" + path
}

// Upload implements SnapshotStorageProvider interface
func (o *OSSProvider) Upload(ctx context.Context, path string, data io.Reader) error {
	fullPath := o.buildPath(path)
	_, err := o.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket: &o.bucket,
		Key:    &fullPath,
		Body:   data,
	})
	return err
}

// Download implements SnapshotStorageProvider interface
func (o *OSSProvider) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath := o.buildPath(path)
	result, err := o.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: &o.bucket,
		Key:    &fullPath,
	})
	if err != nil {
		return nil, err
	}
	return result.Body, nil
}

// Exists implements SnapshotStorageProvider interface
func (o *OSSProvider) Exists(ctx context.Context, path string) (bool, error) {
	fullPath := o.buildPath(path)
	_, err := o.client.HeadObject(ctx, &oss.HeadObjectRequest{
		Bucket: &o.bucket,
		Key:    &fullPath,
	})
	if err != nil {
		var serviceError *oss.ServiceError
		if errors.As(err, &serviceError) && (serviceError.Code == "NoSuchKey" || serviceError.StatusCode == http.StatusNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List implements SnapshotStorageProvider interface
func (o *OSSProvider) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := o.buildPath(prefix)
	listReq := &oss.ListObjectsV2Request{
		Bucket: oss.Ptr(o.bucket),
		Prefix: oss.Ptr(fullPrefix),
	}
	paginator := o.client.NewListObjectsV2Paginator(listReq)
	var objects []string
	for paginator.HasNext() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, object := range page.Contents {
			objects = append(objects, *object.Key)
		}
	}
	return objects, nil
}
