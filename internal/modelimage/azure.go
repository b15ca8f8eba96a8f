package modelimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
)

// errBlobNotFound is returned by a blobStore when the named blob is absent.
var errBlobNotFound = errors.New("blob not found")

type blobInfo struct {
	Name        string
	ContentType string
}

// blobStore is the container-scoped subset of Azure Blob Storage used by AzureManager.
type blobStore interface {
	CreateContainer(ctx context.Context) error
	Upload(ctx context.Context, name string, body io.Reader, contentType, cacheControl string) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]blobInfo, error)
	SetCacheControl(ctx context.Context, name, contentType, cacheControl string) error
}

// AzureConfig configures NewAzureManager.
type AzureConfig struct {
	ConnectionString string
	ContainerName    string
	CacheMaxAge      int
	DefaultImageName string
}

// AzureManager implements Manager on Azure Blob Storage.
type AzureManager struct {
	store        blobStore
	baseURL      string
	container    string
	cacheControl string
	defaultName  string
}

var _ Manager = (*AzureManager)(nil)

// NewAzureManager connects to the storage account named in the connection string.
func NewAzureManager(cfg AzureConfig) (*AzureManager, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	store := &azblobStore{
		client:    client,
		container: client.ServiceClient().NewContainerClient(cfg.ContainerName),
		name:      cfg.ContainerName,
	}
	return newAzureManager(store, client.URL(), cfg), nil
}

func newAzureManager(store blobStore, serviceURL string, cfg AzureConfig) *AzureManager {
	return &AzureManager{
		store:        store,
		baseURL:      strings.TrimRight(serviceURL, "/"),
		container:    cfg.ContainerName,
		cacheControl: cacheControl(cfg.CacheMaxAge),
		defaultName:  cfg.DefaultImageName,
	}
}

// ChangeImage implements Manager.
func (m *AzureManager) ChangeImage(ctx context.Context, modelID string, image io.Reader) (string, error) {
	if err := checkModelID(modelID); err != nil {
		return "", err
	}
	if err := m.upload(ctx, modelID, image); err != nil {
		return "", err
	}
	return m.ComputeImageURI(modelID), nil
}

// DeleteImage implements Manager.
func (m *AzureManager) DeleteImage(ctx context.Context, modelID string) error {
	if err := checkModelID(modelID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, modelID); err != nil && !errors.Is(err, errBlobNotFound) {
		return vendorError("deleting", modelID, err)
	}
	return nil
}

// SetDefaultImage implements Manager.
func (m *AzureManager) SetDefaultImage(ctx context.Context, modelID string) (string, error) {
	return m.ChangeImage(ctx, modelID, bytes.NewReader(defaultImage))
}

// InitializeDefaultImageBlob creates the container with public blob access
// if needed and uploads the default image under its own name.
func (m *AzureManager) InitializeDefaultImageBlob(ctx context.Context) error {
	if err := m.store.CreateContainer(ctx); err != nil {
		return vendorError("creating container", m.container, err)
	}
	return m.upload(ctx, m.defaultName, bytes.NewReader(defaultImage))
}

// SyncImagesCacheControl rewrites the Cache-Control header of every blob
// in the container, keeping each blob's content type.
func (m *AzureManager) SyncImagesCacheControl(ctx context.Context) error {
	blobs, err := m.store.List(ctx)
	if err != nil {
		return vendorError("listing", m.container, err)
	}
	for _, b := range blobs {
		if err := m.store.SetCacheControl(ctx, b.Name, b.ContentType, m.cacheControl); err != nil {
			return vendorError("setting cache control on", b.Name, err)
		}
	}
	return nil
}

// ComputeImageURI implements Manager.
func (m *AzureManager) ComputeImageURI(modelID string) string {
	return m.baseURL + "/" + m.container + "/" + url.PathEscape(modelID)
}

func (m *AzureManager) upload(ctx context.Context, key string, image io.Reader) error {
	body, contentType, err := bufferImage(image)
	if err != nil {
		return err
	}
	if err := m.store.Upload(ctx, key, body, contentType, m.cacheControl); err != nil {
		return vendorError("uploading", key, err)
	}
	return nil
}

// azblobStore implements blobStore with the Azure SDK.
type azblobStore struct {
	client    *azblob.Client
	container *container.Client
	name      string
}

func (s *azblobStore) CreateContainer(ctx context.Context) error {
	access := container.PublicAccessTypeBlob
	_, err := s.container.Create(ctx, &container.CreateOptions{Access: &access})
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return err
	}
	return nil
}

func (s *azblobStore) Upload(ctx context.Context, name string, body io.Reader, contentType, cacheControl string) error {
	_, err := s.client.UploadStream(ctx, s.name, name, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType:  &contentType,
			BlobCacheControl: &cacheControl,
		},
	})
	return err
}

func (s *azblobStore) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.name, name, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return errBlobNotFound
	}
	return err
}

func (s *azblobStore) List(ctx context.Context) ([]blobInfo, error) {
	var out []blobInfo
	pager := s.client.NewListBlobsFlatPager(s.name, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := blobInfo{Name: *item.Name}
			if item.Properties != nil && item.Properties.ContentType != nil {
				info.ContentType = *item.Properties.ContentType
			}
			out = append(out, info)
		}
	}
	return out, nil
}

func (s *azblobStore) SetCacheControl(ctx context.Context, name, contentType, cacheControl string) error {
	headers := blob.HTTPHeaders{BlobCacheControl: &cacheControl}
	if contentType != "" {
		headers.BlobContentType = &contentType
	}
	_, err := s.container.NewBlobClient(name).SetHTTPHeaders(ctx, headers, nil)
	return err
}
