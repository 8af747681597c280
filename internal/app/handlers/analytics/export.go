package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"motorent/internal/app/commands"
	"motorent/internal/app/dto"
	"motorent/internal/app/policies"
	"motorent/internal/app/uow"
	domainanalytics "motorent/internal/domain/analytics"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/identity"
)

const exportKey = "analytics.export"

const csvContentType = "text/csv"

var exportHeader = []string{"Renter", "Asset", "StartDate", "EndDate", "Status", "TotalPrice", "OrderRef", "PaymentRef"}

// ExportAnalyticsCommand renders the caller's filtered bookings as CSV and
// publishes the file to the report store.
type ExportAnalyticsCommand struct {
	Actor identity.Identity
	From  time.Time
	To    time.Time
}

func (c ExportAnalyticsCommand) Key() string { return exportKey }

func (c ExportAnalyticsCommand) ActorIdentity() identity.Identity { return c.Actor }

func (c ExportAnalyticsCommand) ReadOnly() bool { return true }

type ExportHandler struct {
	UoWFactory uow.UoWFactory
	Reports    policies.ReportStore
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *ExportHandler) Handle(ctx context.Context, cmd ExportAnalyticsCommand) (*dto.Export, error) {
	if h.Reports == nil {
		return nil, fmt.Errorf("analytics: report store not configured")
	}
	items, err := loadSnapshot(ctx, h.UoWFactory, cmd.Actor, domainanalytics.Filter{From: cmd.From, To: cmd.To})
	if err != nil {
		return nil, err
	}
	body, err := RenderCSV(items)
	if err != nil {
		return nil, err
	}
	generated := now(h.Now)
	key := fmt.Sprintf("exports/%s/%s-bookings.csv", cmd.Actor.UserID, generated.Format("20060102T150405Z"))
	url, err := h.Reports.Upload(ctx, key, bytes.NewReader(body), csvContentType)
	if err != nil {
		return nil, fmt.Errorf("analytics: upload export: %w", err)
	}
	if h.Logger != nil {
		h.Logger.Info("analytics exported", "user_id", cmd.Actor.UserID, "key", key, "rows", len(items))
	}
	return &dto.Export{URL: url, Key: key, Rows: len(items)}, nil
}

// RenderCSV writes one row per booking after the header row.
func RenderCSV(items []*domainbooking.Booking) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, b := range items {
		row := []string{
			cell(b.RenterID),
			cell(b.AssetTitle),
			b.Range.Start.Format(time.DateOnly),
			b.Range.End.Format(time.DateOnly),
			string(b.Status),
			b.TotalPrice.String(),
			cell(b.OrderRef),
			cell(b.PaymentRef),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cell quotes values a spreadsheet would evaluate as a formula.
func cell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}

var _ commands.Handler[ExportAnalyticsCommand, *dto.Export] = (*ExportHandler)(nil)
