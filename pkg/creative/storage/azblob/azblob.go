package azblob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// Config options for the Azure Blob backend. ConnectionString wins when set;
// otherwise a shared key credential is used when AccountName and AccountKey
// are present, and an anonymous client against ServiceURL as a last resort.
type Config struct {
	ConnectionString string
	AccountName      string
	AccountKey       string
	ServiceURL       string // defaults to https://<account>.blob.core.windows.net/
}

// Backend is an Azure Blob Storage implementation of the creative.ObjectStore
// interface. Locator containers are blob container names.
type Backend struct {
	client *azblob.Client
}

// New creates a new Azure Blob storage backend
func New(config Config) (*Backend, error) {
	client, err := newClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure blob client: %w", err)
	}
	return &Backend{client: client}, nil
}

func newClient(config Config) (*azblob.Client, error) {
	if config.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(config.ConnectionString, nil)
	}

	serviceURL := config.ServiceURL
	if serviceURL == "" {
		if config.AccountName == "" {
			return nil, errors.New("account name or service url is required")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net/", config.AccountName)
	}

	if config.AccountName != "" && config.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
		if err != nil {
			return nil, err
		}
		return azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	}
	return azblob.NewClientWithNoCredential(serviceURL, nil)
}

// Get downloads the whole blob
func (b *Backend) Get(ctx context.Context, loc creative.Locator) ([]byte, error) {
	resp, err := b.client.DownloadStream(ctx, loc.Container, loc.Name, nil)
	if err != nil {
		return nil, b.wrap(loc, "get", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, b.wrap(loc, "get", err)
	}
	return data, nil
}

// Put uploads data as a block blob with the given content type
func (b *Backend) Put(ctx context.Context, loc creative.Locator, data []byte, contentType string) (creative.Locator, error) {
	_, err := b.client.UploadBuffer(ctx, loc.Container, loc.Name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return creative.Locator{}, b.wrap(loc, "put", err)
	}
	return loc, nil
}

func (b *Backend) wrap(loc creative.Locator, op string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%s: %w", loc, creative.ErrObjectNotFound)
	}
	return &creative.StorageError{Backend: "azblob", Key: loc.String(), Op: op, Err: err}
}
