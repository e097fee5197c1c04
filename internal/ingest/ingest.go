// Package ingest loads image files into the store: the image, its frequency
// band and its validated detections.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/runcat/internal/datastore/entities"
	"github.com/tphakala/runcat/internal/datastore/repository"
	"github.com/tphakala/runcat/internal/errors"
	"github.com/tphakala/runcat/internal/geometry"
	"github.com/tphakala/runcat/internal/logger"
	"github.com/tphakala/runcat/internal/parset"
)

// File is the YAML layout of one image.
//
//	image:
//	  band: 3
//	  frequency: 1.5e8
//	sources:
//	  - {ra: 10.5, decl: 20.1, ra_err: 1.2, decl_err: 1.1, flux: 0.8, flux_err: 0.05}
//	  - {ra: 11.0, decl: 19.7, ra_err: 2, decl_err: 2, flux: 3.1, flux_err: 0.2, kind: extended}
type File struct {
	Image   parset.Descriptor `yaml:"image"`
	Sources []sourceRecord    `yaml:"sources"`
}

// sourceRecord keeps numbers as text so a malformed value is reported
// against its detection and field.
type sourceRecord struct {
	RA      string `yaml:"ra"`
	Decl    string `yaml:"decl"`
	RAErr   string `yaml:"ra_err"`
	DeclErr string `yaml:"decl_err"`
	Flux    string `yaml:"flux"`
	FluxErr string `yaml:"flux_err"`
	Kind    string `yaml:"kind"`
}

// Ingester writes image files to the store.
type Ingester struct {
	store     *repository.Store
	zoneWidth float64
	batchSize int
	log       logger.Logger
}

// NewIngester creates an Ingester.
func NewIngester(store *repository.Store, zoneWidth float64, batchSize int, log logger.Logger) *Ingester {
	return &Ingester{
		store:     store,
		zoneWidth: zoneWidth,
		batchSize: batchSize,
		log:       log.Module("ingest"),
	}
}

// Result describes one ingested image.
type Result struct {
	Image   *entities.Image
	Sources int
}

// IngestFile reads and ingests path.
func (i *Ingester) IngestFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer func() { _ = f.Close() }()

	res, err := i.Ingest(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return res, nil
}

// Ingest parses one image from r and stores it in a single transaction.
func (i *Ingester) Ingest(ctx context.Context, r io.Reader) (*Result, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Build()
	}

	desc := file.Image
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	sources := make([]entities.ExtractedSource, 0, len(file.Sources))
	for n, rec := range file.Sources {
		src, err := rec.toSource(uint(n))
		if err != nil {
			return nil, err
		}
		Derive(&src, i.zoneWidth)
		sources = append(sources, src)
	}

	image := &entities.Image{BandID: desc.BandID, Frequency: desc.Frequency}
	err := i.store.Transaction(ctx, func(tx *repository.Tx) error {
		if _, err := tx.Images.EnsureBand(ctx, &entities.Band{
			ID:              desc.BandID,
			CenterFrequency: desc.Frequency,
			Bandwidth:       desc.Bandwidth,
		}); err != nil {
			if errors.Is(err, repository.ErrBandConflict) {
				return errors.ConfigError(err, "frequency")
			}
			return errors.StoreError(err, "ensure_band")
		}
		if err := tx.Images.Create(ctx, image); err != nil {
			return errors.StoreError(err, "create_image")
		}
		for n := range sources {
			sources[n].ImageID = image.ID
		}
		if err := tx.Sources.InsertBatch(ctx, sources, i.batchSize); err != nil {
			return errors.StoreError(err, "insert_sources")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	i.log.Info("image ingested",
		logger.Uint64("image_id", uint64(image.ID)),
		logger.Uint64("band_id", uint64(image.BandID)),
		logger.Int("sources", len(sources)))

	return &Result{Image: image, Sources: len(sources)}, nil
}

func (rec sourceRecord) toSource(ref uint) (entities.ExtractedSource, error) {
	var src entities.ExtractedSource
	fields := []struct {
		name string
		text string
		dst  *float64
	}{
		{"ra", rec.RA, &src.RA},
		{"decl", rec.Decl, &src.Decl},
		{"ra_err", rec.RAErr, &src.RAErr},
		{"decl_err", rec.DeclErr, &src.DeclErr},
		{"flux", rec.Flux, &src.Flux},
		{"flux_err", rec.FluxErr, &src.FluxErr},
	}
	for _, f := range fields {
		text := strings.TrimSpace(f.text)
		if text == "" {
			return src, errors.SourceDataError(fmt.Errorf("%s missing", f.name), ref, f.name)
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return src, errors.SourceDataError(fmt.Errorf("%s: %w", f.name, err), ref, f.name)
		}
		*f.dst = v
	}

	switch strings.ToLower(strings.TrimSpace(rec.Kind)) {
	case "", "point":
		src.Kind = entities.SourceKindPoint
	case "extended":
		src.Kind = entities.SourceKindExtended
	default:
		return src, errors.SourceDataError(fmt.Errorf("unknown kind %q", rec.Kind), ref, "kind")
	}

	if src.RA == 360 {
		src.RA = geometry.NormalizeRA(src.RA)
	}
	if err := ValidateSource(&src, ref); err != nil {
		return src, err
	}
	return src, nil
}
