package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/fitbarz/kitcontrol/internal/webserver"
)

func registerQrRoutes() {
	webserver.PubGET("/qr", renderQr)
}

// renderQr returns a PNG QR image for a code string. Pure lookup, no
// state; used for printing component labels.
func renderQr(c echo.Context) error {
	code := strings.TrimSpace(c.QueryParam("code"))
	if code == "" {
		return fail(c, http.StatusBadRequest, "MISSING_CODE", "Code text is required", nil)
	}
	size := 300
	if s, err := strconv.Atoi(c.QueryParam("size")); err == nil && s >= 64 && s <= 1024 {
		size = s
	}
	png, err := qrcode.Encode(code, qrcode.Medium, size)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "QR_ERROR", "Failed to render QR image", err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
