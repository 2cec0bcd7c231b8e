package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
)

// Exporter downloads the service's updated reference document.
type Exporter struct {
	gateway service.Gateway
	base
}

// NewExporter creates an exporter bound to store.
func NewExporter(store *session.Store, gateway service.Gateway) *Exporter {
	e := &Exporter{gateway: gateway}
	e.init(store, "exporter")
	return e
}

// Export streams the updated document into w. The filename is only used
// for logging and the activity entry.
func (e *Exporter) Export(ctx context.Context, w io.Writer, filename string) (int64, error) {
	if err := e.guard.acquire(); err != nil {
		return 0, err
	}
	defer e.guard.release()

	e.begin("Exporting…")
	defer e.store.SetLoading(false)

	n, err := e.gateway.ExportDocument(ctx, w)
	if err != nil {
		return n, e.fail(err, mapper.FallbackExport, "Export error")
	}

	e.logger.Info("Exported document", slog.String("file", filename), slog.Int64("bytes", n))
	e.succeed("Export complete")
	e.store.AppendActivity(model.ActivityExport, fmt.Sprintf("Exported updated ODM to %s", filename))
	return n, nil
}

// Busy reports whether an export is in progress.
func (e *Exporter) Busy() bool {
	return e.guard.busy()
}
