package adminapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/fitbarz/kitcontrol/internal/dispatch"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

// registerHistoryRoutes registers the dispatch log endpoints. The log
// is append-only; there are no mutation routes.
func registerHistoryRoutes() {
	webserver.PubGET("/history", listHistory)
	webserver.PubGET("/history/export/csv", exportHistoryCSV)
}

func listHistory(c echo.Context) error {
	page, pageSize := parsePagination(c)
	repo := dispatch.NewGormLogRepository(GetDB(c))
	rows, total, err := repo.List(c.Request().Context(), page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query dispatch log", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

type historyCSVRow struct {
	ID           int64  `csv:"id"`
	OrderNumber  string `csv:"order_number"`
	OperatorName string `csv:"operator_name"`
	OperatorID   string `csv:"operator_id"`
	ProductName  string `csv:"product_name"`
	ProductCode  string `csv:"product_code"`
	Items        string `csv:"scanned_items"`
	Timestamp    string `csv:"timestamp"`
}

func exportHistoryCSV(c echo.Context) error {
	repo := dispatch.NewGormLogRepository(GetDB(c))
	records, err := repo.All(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query dispatch log", err.Error())
	}

	rows := make([]historyCSVRow, 0, len(records))
	for _, r := range records {
		codes := make([]string, 0, len(r.ScannedItems))
		for _, item := range r.ScannedItems {
			codes = append(codes, item.Code)
		}
		rows = append(rows, historyCSVRow{
			ID:           r.ID,
			OrderNumber:  r.OrderNumber,
			OperatorName: r.OperatorName,
			OperatorID:   r.OperatorID,
			ProductName:  r.ProductName,
			ProductCode:  r.ProductCode,
			Items:        strings.Join(codes, "|"),
			Timestamp:    r.CreatedAt.Format(time.RFC3339),
		})
	}

	data, err := gocsv.MarshalString(&rows)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_ERROR", "Failed to render CSV", err.Error())
	}

	filename := fmt.Sprintf("dispatch_history_%s.csv", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv", []byte(data))
}
