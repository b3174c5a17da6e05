package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SigPulse/internal/domain/models"
	domrepo "SigPulse/internal/domain/repository"
	pkgkafka "SigPulse/pkg/kafka"
)

// CandleIngestHandler consumes candle messages from Kafka and writes them
// to the store. It lets other collectors feed the analyzer without going
// through the exchange connection.
type CandleIngestHandler struct {
	topic   string
	store   domrepo.CandleStore
	metrics domrepo.Metrics
}

func NewCandleIngestHandler(topic string, store domrepo.CandleStore, metrics domrepo.Metrics) *CandleIngestHandler {
	return &CandleIngestHandler{topic: topic, store: store, metrics: metrics}
}

func (h *CandleIngestHandler) Topic() string { return h.topic }

// Messages carry the short schema {symbol, t, o, h, l, c, v}.
func (h *CandleIngestHandler) Handle(ctx context.Context, b []byte) error {
	var bar struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		O      float64 `json:"o"`
		H      float64 `json:"h"`
		L      float64 `json:"l"`
		C      float64 `json:"c"`
		V      float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &bar); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return err
	}

	// Producers may stamp bars in milliseconds; normalize to seconds.
	if bar.T > 1e11 {
		bar.T /= 1000
	}

	// Rough end-to-end latency, measured from bar open.
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.Unix(bar.T, 0)).Seconds())

	h.store.Append(ctx, models.Candle{
		OpenTime: time.Unix(bar.T, 0).UTC(),
		Symbol:   bar.Symbol,
		Open:     bar.O,
		High:     bar.H,
		Low:      bar.L,
		Close:    bar.C,
		Volume:   bar.V,
	})
	h.metrics.RecordLastPrice(bar.Symbol, bar.C)
	return nil
}

var _ pkgkafka.MessageHandler = (*CandleIngestHandler)(nil)
