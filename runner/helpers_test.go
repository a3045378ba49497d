package runner

import (
	"io"
	"log/slog"

	"github.com/go-ublox/cellular/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMetrics() *metrics.Metrics {
	return metrics.New()
}
