package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/starford/fabric-mcp/internal/apperr"
)

// AzureBlob implements Provider on one Azure Blob Storage container.
// Keys map directly to blob names.
type AzureBlob struct {
	client    *azblob.Client
	container string
}

var _ Provider = (*AzureBlob)(nil)

// NewAzureBlob builds a shared-key client for the given account. endpoint
// overrides the public service URL (for example an Azurite emulator).
func NewAzureBlob(accountName, accountKey, container, endpoint string) (*AzureBlob, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("storage: azure account name and key are required: %w", apperr.ErrInvalidInput)
	}
	if container == "" {
		return nil, fmt.Errorf("storage: azure container is required: %w", apperr.ErrInvalidInput)
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("storage: azure credential: %w", err)
	}
	client, err := azblob.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: azure client: %w", err)
	}
	return &AzureBlob{client: client, container: container}, nil
}

// Exists reports whether the blob is present.
func (a *AzureBlob) Exists(ctx context.Context, key string) (bool, error) {
	blobClient := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
	_, err := blobClient.GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("storage: azure exists %s: %w", key, err)
}

// Read downloads the whole blob.
func (a *AzureBlob) Read(ctx context.Context, key string) ([]byte, error) {
	resp, err := a.client.DownloadStream(ctx, a.container, key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("storage: azure read %s: %w", key, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: azure read %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storage: azure read body %s: %w", key, err)
	}
	return data, nil
}

// Write uploads content over any existing blob, creating the container on
// first use.
func (a *AzureBlob) Write(ctx context.Context, key string, content []byte) error {
	_, err := a.client.UploadBuffer(ctx, a.container, key, content, nil)
	if err != nil && bloberror.HasCode(err, bloberror.ContainerNotFound) {
		if _, cerr := a.client.CreateContainer(ctx, a.container, nil); cerr != nil &&
			!bloberror.HasCode(cerr, bloberror.ContainerAlreadyExists) {
			return fmt.Errorf("storage: azure create container %s: %w", a.container, cerr)
		}
		_, err = a.client.UploadBuffer(ctx, a.container, key, content, nil)
	}
	if err != nil {
		return fmt.Errorf("storage: azure write %s: %w", key, err)
	}
	return nil
}
