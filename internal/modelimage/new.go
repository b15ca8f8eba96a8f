package modelimage

import (
	"context"
	"fmt"

	"github.com/nerrad567/iot-portal/internal/infrastructure/config"
)

// New builds the Manager for cfg.Portal.CloudProvider.
func New(ctx context.Context, cfg *config.Config) (Manager, error) {
	switch cfg.Portal.CloudProvider {
	case config.ProviderAzure:
		return NewAzureManager(AzureConfig{
			ConnectionString: cfg.Azure.Storage.ConnectionString,
			ContainerName:    cfg.Azure.Storage.ContainerName,
			CacheMaxAge:      cfg.Images.CacheMaxAge,
			DefaultImageName: cfg.Images.DefaultImageName,
		})
	case config.ProviderAWS:
		return NewAWSManager(ctx, AWSConfig{
			Region:           cfg.AWS.Region,
			AccessKey:        cfg.AWS.AccessKey,
			AccessSecret:     cfg.AWS.AccessSecret,
			Bucket:           cfg.AWS.S3Bucket,
			Endpoint:         cfg.AWS.Endpoint,
			CacheMaxAge:      cfg.Images.CacheMaxAge,
			DefaultImageName: cfg.Images.DefaultImageName,
		})
	default:
		return nil, fmt.Errorf("unsupported cloud provider %q", cfg.Portal.CloudProvider)
	}
}
