package adminapi

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitbarz/kitcontrol/internal/backup"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

// registerBackupRoutes registers the backup endpoints. Both require an
// admin token: export dumps everything and import overwrites
// everything.
func registerBackupRoutes() {
	webserver.ApiGET("/backup/export", exportBackup)
	webserver.ApiPOST("/backup/import", importBackup)
}

func exportBackup(c echo.Context) error {
	codec := backup.NewCodec(GetDB(c))
	data, err := codec.ExportJSON(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to export backup", err.Error())
	}
	writeOprLog(c, "backup_export", fmt.Sprintf("%d bytes", len(data)))

	filename := fmt.Sprintf("kitcontrol_backup_%s.json", time.Now().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// importBackup restores a backup document, fully replacing the current
// catalog and dispatch log. The caller must acknowledge the overwrite
// with confirm=true; a shape failure writes nothing.
func importBackup(c echo.Context) error {
	if c.QueryParam("confirm") != "true" {
		return fail(c, http.StatusBadRequest, "CONFIRM_REQUIRED", "Restoring overwrites current data; repeat with confirm=true", nil)
	}
	data, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to read backup document", nil)
	}

	codec := backup.NewCodec(GetDB(c))
	err = codec.Import(c.Request().Context(), data)
	if errors.Is(err, backup.ErrInvalidDocument) {
		return fail(c, http.StatusBadRequest, "INVALID_BACKUP", "Backup format is invalid; nothing was restored", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to restore backup", err.Error())
	}
	writeOprLog(c, "backup_import", fmt.Sprintf("%d bytes", len(data)))
	return ok(c, map[string]interface{}{"restored": true})
}
