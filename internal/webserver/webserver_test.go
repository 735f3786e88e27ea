package webserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/config"
)

func TestHandlerErrorDispatchedOnce(t *testing.T) {
	Init(config.DefaultAppConfig(), nil)
	PubGET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "boom")
	})

	calls := 0
	base := Echo().HTTPErrorHandler
	Echo().HTTPErrorHandler = func(err error, c echo.Context) {
		calls++
		base(err, c)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/boom", nil)
	rec := httptest.NewRecorder()
	Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if calls != 1 {
		t.Fatalf("error handler invoked %d times", calls)
	}
}

func TestDBInjectedIntoRequestContext(t *testing.T) {
	db := &gorm.DB{}
	Init(config.DefaultAppConfig(), db)
	seen := false
	PubGET("/db-check", func(c echo.Context) error {
		seen = c.Get(ContextDBKey) == db
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/db-check", nil)
	rec := httptest.NewRecorder()
	Echo().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !seen {
		t.Fatalf("request middleware did not run: status %d", rec.Code)
	}
}
