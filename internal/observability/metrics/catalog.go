package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics contains Prometheus metrics for image processing and the
// running catalog. All methods are safe on a nil receiver.
type CatalogMetrics struct {
	imagesProcessedTotal    *prometheus.CounterVec
	imageProcessingDuration prometheus.Histogram
	candidatesPerImage      prometheus.Histogram
	associationsTotal       *prometheus.CounterVec
	entriesCreatedTotal     prometheus.Counter
	entriesMergedTotal      prometheus.Counter
	groupsResolvedTotal     prometheus.Counter
	activeEntriesGauge      prometheus.Gauge
	spectralFitsTotal       *prometheus.CounterVec
	spectralFitDuration     prometheus.Histogram

	collectors []prometheus.Collector
}

// NewCatalogMetrics creates and registers catalog metrics.
func NewCatalogMetrics(registry prometheus.Registerer) (*CatalogMetrics, error) {
	m := &CatalogMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CatalogMetrics) initMetrics() {
	m.imagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcat_images_processed_total",
			Help: "Total number of images processed",
		},
		[]string{"status", "error_category"}, // status: success, error
	)

	m.imageProcessingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runcat_image_processing_duration_seconds",
			Help:    "Time taken to merge one image into the catalog",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15), // 1ms to ~16s
		},
	)

	m.candidatesPerImage = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runcat_candidates_per_image",
			Help:    "Candidate associations found per image",
			Buckets: prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount15),
		},
	)

	m.associationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcat_associations_total",
			Help: "Total number of associations by relation",
		},
		[]string{"relation"}, // 1-1, n-1, 1-n, n-m, new
	)

	m.entriesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runcat_catalog_entries_created_total",
		Help: "Total number of catalog entries created",
	})

	m.entriesMergedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runcat_catalog_entries_merged_total",
		Help: "Total number of catalog entries merged into a group head",
	})

	m.groupsResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "runcat_groups_resolved_total",
		Help: "Total number of ambiguous groups collapsed",
	})

	m.activeEntriesGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "runcat_catalog_active_entries",
		Help: "Number of live catalog entries after the last processed image",
	})

	m.spectralFitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "runcat_spectral_fits_total",
			Help: "Total number of spectrum requests by outcome",
		},
		[]string{"result"}, // cached, fitted, stale, error
	)

	m.spectralFitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "runcat_spectral_fit_duration_seconds",
			Help:    "Time taken to refit and store a spectrum",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		},
	)

	m.collectors = []prometheus.Collector{
		m.imagesProcessedTotal,
		m.imageProcessingDuration,
		m.candidatesPerImage,
		m.associationsTotal,
		m.entriesCreatedTotal,
		m.entriesMergedTotal,
		m.groupsResolvedTotal,
		m.activeEntriesGauge,
		m.spectralFitsTotal,
		m.spectralFitDuration,
	}
}

// Describe implements prometheus.Collector.
func (m *CatalogMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (m *CatalogMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// ImageResult summarizes one processed image.
type ImageResult struct {
	Candidates int
	Relations  map[string]int
	Created    int
	Merged     int
	Groups     int
	Active     int64
	Seconds    float64
}

// RecordImageProcessed records a successfully processed image.
func (m *CatalogMetrics) RecordImageProcessed(r ImageResult) {
	if m == nil {
		return
	}
	m.imagesProcessedTotal.WithLabelValues(StatusSuccess, "").Inc()
	m.imageProcessingDuration.Observe(r.Seconds)
	m.candidatesPerImage.Observe(float64(r.Candidates))
	for rel, n := range r.Relations {
		m.associationsTotal.WithLabelValues(rel).Add(float64(n))
	}
	m.entriesCreatedTotal.Add(float64(r.Created))
	m.entriesMergedTotal.Add(float64(r.Merged))
	m.groupsResolvedTotal.Add(float64(r.Groups))
	m.activeEntriesGauge.Set(float64(r.Active))
}

// RecordImageFailed records a failed image by error category.
func (m *CatalogMetrics) RecordImageFailed(category string) {
	if m == nil {
		return
	}
	m.imagesProcessedTotal.WithLabelValues(StatusError, category).Inc()
}

// RecordSpectralFit records the outcome of a spectrum request.
func (m *CatalogMetrics) RecordSpectralFit(result string) {
	if m == nil {
		return
	}
	m.spectralFitsTotal.WithLabelValues(result).Inc()
}

// ObserveSpectralFitDuration records the time spent refitting.
func (m *CatalogMetrics) ObserveSpectralFitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.spectralFitDuration.Observe(seconds)
}
