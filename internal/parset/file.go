package parset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/runcat/internal/errors"
)

const cleanupIntervalFactor = 2

// FileProvider reads descriptors from <dir>/<image id>.yaml and caches them.
type FileProvider struct {
	dir   string
	cache *cache.Cache
}

// NewFileProvider creates a FileProvider rooted at dir. A non-positive ttl
// caches descriptors for the life of the provider.
func NewFileProvider(dir string, ttl time.Duration) *FileProvider {
	cleanup := ttl * cleanupIntervalFactor
	if ttl <= 0 {
		ttl = cache.NoExpiration
		cleanup = 0
	}
	return &FileProvider{
		dir:   dir,
		cache: cache.New(ttl, cleanup),
	}
}

// Path returns the descriptor file of imageID.
func (p *FileProvider) Path(imageID uint) string {
	return filepath.Join(p.dir, strconv.FormatUint(uint64(imageID), 10)+".yaml")
}

// Descriptor implements Provider.
func (p *FileProvider) Descriptor(_ context.Context, imageID uint) (*Descriptor, error) {
	key := strconv.FormatUint(uint64(imageID), 10)
	if v, ok := p.cache.Get(key); ok {
		d := *v.(*Descriptor)
		return &d, nil
	}

	path := p.Path(imageID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, descriptorError(imageID, "file", fmt.Sprintf("no descriptor at %s", path))
		}
		return nil, errors.New(err).
			Component("parset").
			Category(errors.CategoryFileIO).
			ImageContext(imageID).
			Context("path", path).
			Build()
	}

	d := &Descriptor{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, errors.ConfigError(fmt.Errorf("parse %s: %w", path, err), "parset")
	}
	d.ImageID = imageID
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p.cache.SetDefault(key, d)
	out := *d
	return &out, nil
}
