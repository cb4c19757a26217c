package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"videogen/internal/domain"
	"videogen/internal/infra"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
}

// Cloudinary uploads videos with resource type "video".
type Cloudinary struct {
	cloudName string
	apiKey    string
	apiSecret string
	folder    string
	logger    infra.Logger

	once sync.Once
	api  cloudinaryAPI
	err  error
}

// NewCloudinary never fails; missing credentials surface on Upload.
func NewCloudinary(opts Options) *Cloudinary {
	return &Cloudinary{
		cloudName: strings.TrimSpace(opts.CloudinaryCloudName),
		apiKey:    strings.TrimSpace(opts.CloudinaryAPIKey),
		apiSecret: strings.TrimSpace(opts.CloudinaryAPISecret),
		folder:    folderOrDefault(opts.Folder),
		logger:    infra.Component(loggerOrNop(opts.Logger), "cloudinary"),
	}
}

func (c *Cloudinary) client() (cloudinaryAPI, error) {
	c.once.Do(func() {
		if c.api != nil {
			return
		}
		if c.cloudName == "" || c.apiKey == "" || c.apiSecret == "" {
			c.err = fmt.Errorf("%w: cloudinary credentials missing (CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY, CLOUDINARY_API_SECRET)", domain.ErrConfiguration)
			return
		}
		cld, err := cloudinary.NewFromParams(c.cloudName, c.apiKey, c.apiSecret)
		if err != nil {
			c.err = fmt.Errorf("%w: cloudinary: %v", domain.ErrConfiguration, err)
			return
		}
		c.api = &cld.Upload
	})
	return c.api, c.err
}

func (c *Cloudinary) Upload(ctx context.Context, localPath string) (UploadResult, error) {
	api, err := c.client()
	if err != nil {
		return UploadResult{}, err
	}
	resp, err := api.Upload(ctx, localPath, uploader.UploadParams{
		Folder:       c.folder,
		ResourceType: "video",
	})
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: cloudinary: %v", domain.ErrUpload, err)
	}
	if resp == nil {
		return UploadResult{}, fmt.Errorf("%w: cloudinary returned no result", domain.ErrUpload)
	}
	if resp.Error.Message != "" {
		return UploadResult{}, fmt.Errorf("%w: cloudinary: %s", domain.ErrUpload, resp.Error.Message)
	}
	if resp.SecureURL == "" {
		return UploadResult{}, fmt.Errorf("%w: cloudinary response has no secure_url", domain.ErrUpload)
	}
	finish(c.logger, localPath)
	c.logger.Info().Str("public_id", resp.PublicID).Msg("storage: uploaded video")
	return UploadResult{URL: resp.SecureURL, ID: resp.PublicID}, nil
}

var _ Uploader = (*Cloudinary)(nil)
