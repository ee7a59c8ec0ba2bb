package providers

import (
	"github.com/samber/do/v2"

	"github.com/ilbumi/satin/internal/config"
	"github.com/ilbumi/satin/internal/logger"
	"github.com/ilbumi/satin/internal/media/fetch"
	"github.com/ilbumi/satin/internal/media/images"
)

// ProvideImageStorage provides content-addressed storage for uploaded images.
func ProvideImageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := images.NewStorage(cfg.Storage.ImageDir)
	if err != nil {
		return nil, err
	}

	log.Info("Image storage initialized",
		"path", cfg.Storage.ImageDir,
		"max_upload_bytes", cfg.Storage.MaxUploadBytes,
	)
	return storage, nil
}

// ProvideImageProcessor provides the image header reader.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return images.NewProcessor(log.Logger), nil
}

// ProvideFetcher provides the remote image downloader.
func ProvideFetcher(i do.Injector) (*fetch.Fetcher, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return fetch.NewFetcher(nil, log.Logger), nil
}
