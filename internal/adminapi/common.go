package adminapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/config"
	"github.com/fitbarz/kitcontrol/internal/dispatch"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

var (
	appConfig *config.AppConfig
	mgr       *dispatch.Manager
)

// Init wires the API routes. The dispatch manager holds live session
// state; everything else goes through the request-scoped database.
func Init(cfg *config.AppConfig, manager *dispatch.Manager) {
	appConfig = cfg
	mgr = manager

	registerAuthRoutes()
	registerProductRoutes()
	registerDispatchRoutes()
	registerHistoryRoutes()
	registerBackupRoutes()
	registerQrRoutes()
}

// GetDB returns the request-scoped database handle.
func GetDB(c echo.Context) *gorm.DB {
	return c.Get(webserver.ContextDBKey).(*gorm.DB)
}

type apiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"msg,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Detail  interface{} `json:"detail,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(200, apiResponse{Code: 0, Data: data})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, apiResponse{Code: status, Message: code + ": " + message, Detail: detail})
}

type pagedResponse struct {
	Code     int         `json:"code"`
	Data     interface{} `json:"data"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(200, pagedResponse{Code: 0, Data: data, Total: total, Page: page, PageSize: pageSize})
}

func parsePagination(c echo.Context) (page, pageSize int) {
	page = 1
	pageSize = 20
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		page = p
	}
	if ps, err := strconv.Atoi(c.QueryParam("pageSize")); err == nil && ps > 0 && ps <= 500 {
		pageSize = ps
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}
