package service

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"docjson/internal/extract"
)

const (
	OutcomeOK          = "ok"
	OutcomeUnsupported = "unsupported"
	OutcomeError       = "error"
)

const (
	FiletypePDF   = "pdf"
	FiletypeImage = "image"
	FiletypeOther = "other"
)

// Metrics counts pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	processed  *prometheus.CounterVec
	aiFallback prometheus.Counter
}

// NewMetrics creates the pipeline counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		processed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_processed_total",
				Help: "Total number of uploads run through the extraction pipeline.",
			},
			[]string{"filetype", "mode", "outcome"},
		),
		aiFallback: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ai_fallback_total",
			Help: "Total number of structuring attempts that degraded to the fallback payload.",
		}),
	}
	for _, c := range []prometheus.Collector{m.processed, m.aiFallback} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// FiletypeLabel folds a client-declared MIME type into a fixed label set so
// uploads cannot mint new series.
func FiletypeLabel(mimeType string) string {
	mt := extract.NormalizeMimeType(mimeType)
	switch {
	case mt == "application/pdf":
		return FiletypePDF
	case strings.HasPrefix(mt, "image/"):
		return FiletypeImage
	default:
		return FiletypeOther
	}
}

func (m *Metrics) observe(mimeType, mode, outcome string) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(FiletypeLabel(mimeType), mode, outcome).Inc()
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	m.aiFallback.Inc()
}
