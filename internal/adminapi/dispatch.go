package adminapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitbarz/kitcontrol/internal/catalog"
	"github.com/fitbarz/kitcontrol/internal/dispatch"
	"github.com/fitbarz/kitcontrol/internal/scanner"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

// registerDispatchRoutes registers the dispatch workflow endpoints.
// The whole surface is public: floor operators identify by name and
// order number, not by account.
func registerDispatchRoutes() {
	webserver.PubPOST("/dispatch/sessions", createSession)
	webserver.PubGET("/dispatch/sessions/:id", getSession)
	webserver.PubDELETE("/dispatch/sessions/:id", closeSession)
	webserver.PubPOST("/dispatch/sessions/:id/login", sessionLogin)
	webserver.PubGET("/dispatch/products", listDispatchProducts)
	webserver.PubPOST("/dispatch/sessions/:id/select", sessionSelectProduct)
	webserver.PubPOST("/dispatch/sessions/:id/scan", sessionScan)
	webserver.PubPOST("/dispatch/sessions/:id/manual", sessionConfirmManual)
	webserver.PubPOST("/dispatch/sessions/:id/finalize", sessionFinalize)
	webserver.PubPOST("/dispatch/sessions/:id/next", sessionNext)
	webserver.PubPOST("/dispatch/sessions/:id/cancel", sessionCancel)
	webserver.PubPOST("/dispatch/sessions/:id/scanner/open", sessionScannerOpen)
	webserver.PubPOST("/dispatch/sessions/:id/scanner/toggle", sessionScannerToggle)
	webserver.PubPOST("/dispatch/sessions/:id/scanner/close", sessionScannerClose)
}

func sessionFromParam(c echo.Context) (*dispatch.Session, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, err
	}
	return mgr.Get(id)
}

type sessionView struct {
	ID          string                `json:"id"`
	State       string                `json:"state"`
	Operator    string                `json:"operator_name"`
	EmployeeID  string                `json:"employee_id"`
	OrderNumber string                `json:"order_number"`
	Role        dispatch.OperatorRole `json:"role"`
	ProductName string                `json:"product_name,omitempty"`
	ProductCode string                `json:"product_code,omitempty"`
	Targets     []dispatch.ScanTarget `json:"targets"`
	Confirmed   int                   `json:"confirmed"`
	Total       int                   `json:"total"`
	Percent     int                   `json:"percent"`
	Complete    bool                  `json:"complete"`
}

func viewOf(s *dispatch.Session) sessionView {
	name, employeeID, orderNumber := s.Operator()
	confirmed, total, percent := s.Progress()
	view := sessionView{
		ID:          strconv.FormatInt(s.ID(), 10),
		State:       s.State(),
		Operator:    name,
		EmployeeID:  employeeID,
		OrderNumber: orderNumber,
		Role:        s.Role(),
		Targets:     s.Targets(),
		Confirmed:   confirmed,
		Total:       total,
		Percent:     percent,
		Complete:    s.IsComplete(),
	}
	if p := s.Product(); p != nil {
		view.ProductName = p.Name
		view.ProductCode = p.Code
	}
	return view
}

func createSession(c echo.Context) error {
	s := mgr.Create()
	return ok(c, viewOf(s))
}

func getSession(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	return ok(c, viewOf(s))
}

func closeSession(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid session ID", nil)
	}
	mgr.Close(id)
	return ok(c, map[string]interface{}{"id": id})
}

type sessionLoginPayload struct {
	Name        string `json:"name" form:"name"`
	OrderNumber string `json:"order_number" form:"order_number"`
	EmployeeID  string `json:"employee_id" form:"employee_id"`
}

func sessionLogin(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	var payload sessionLoginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	err = s.Login(payload.Name, payload.OrderNumber, payload.EmployeeID)
	switch {
	case errors.Is(err, dispatch.ErrEmptyLogin):
		return fail(c, http.StatusBadRequest, "MISSING_FIELDS", "Operator name and order number are required", nil)
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is already logged in", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Login failed", err.Error())
	}
	return ok(c, viewOf(s))
}

func listDispatchProducts(c echo.Context) error {
	repo := catalog.NewGormRepository(GetDB(c))
	rows, err := repo.ListActive(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return ok(c, rows)
}

type selectPayload struct {
	ProductID int64 `json:"product_id,string" form:"product_id"`
}

func sessionSelectProduct(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	var payload selectPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse selection", nil)
	}
	repo := catalog.NewGormRepository(GetDB(c))
	product, err := repo.GetByID(c.Request().Context(), payload.ProductID)
	if errors.Is(err, catalog.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	err = s.SelectProduct(product)
	switch {
	case errors.Is(err, dispatch.ErrEmptyKit):
		return fail(c, http.StatusBadRequest, "EMPTY_KIT", "Product has no active components; edit it in the catalog first", nil)
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not selecting a product", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Selection failed", err.Error())
	}
	return ok(c, viewOf(s))
}

type scanPayload struct {
	Code string `json:"code" form:"code"`
}

func sessionScan(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	var payload scanPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse scan", nil)
	}
	target, err := s.Scan(payload.Code)
	switch {
	case errors.Is(err, dispatch.ErrNoMatch):
		return fail(c, http.StatusBadRequest, "SCAN_NO_MATCH", "Invalid or already-scanned code", payload.Code)
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not scanning", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Scan failed", err.Error())
	}
	return ok(c, map[string]interface{}{"target": target, "session": viewOf(s)})
}

type manualPayload struct {
	ComponentID int64 `json:"component_id,string" form:"component_id"`
}

func sessionConfirmManual(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	var payload manualPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse confirmation", nil)
	}
	target, err := s.ConfirmManual(payload.ComponentID)
	switch {
	case errors.Is(err, dispatch.ErrNotPrivileged):
		return fail(c, http.StatusForbidden, "NOT_PRIVILEGED", "Manual confirmation requires the privileged operator", nil)
	case errors.Is(err, dispatch.ErrNoMatch):
		return fail(c, http.StatusBadRequest, "SCAN_NO_MATCH", "Component is unknown or already confirmed", nil)
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not scanning", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SESSION_ERROR", "Confirmation failed", err.Error())
	}
	return ok(c, map[string]interface{}{"target": target, "session": viewOf(s)})
}

func sessionFinalize(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	record, err := s.Finalize(c.Request().Context())
	switch {
	case errors.Is(err, dispatch.ErrNotComplete):
		return fail(c, http.StatusBadRequest, "NOT_COMPLETE", "Not all components are confirmed", nil)
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not scanning", nil)
	case err != nil:
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to save dispatch record", err.Error())
	}
	// The camera is released on every exit from the scanning step.
	mgr.CloseScanner(s.ID())
	return ok(c, map[string]interface{}{"record": record, "session": viewOf(s)})
}

func sessionNext(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	if err := s.Next(); err != nil {
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not completed", nil)
	}
	return ok(c, viewOf(s))
}

func sessionCancel(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	mgr.CloseScanner(s.ID())
	if err := s.Cancel(); err != nil {
		return fail(c, http.StatusConflict, "BAD_STATE", "Session has nothing to cancel", nil)
	}
	return ok(c, viewOf(s))
}

type scannerOpenPayload struct {
	Facing string `json:"facing" form:"facing"`
}

func sessionScannerOpen(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	var payload scannerOpenPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse scanner parameters", nil)
	}
	facing := scanner.FacingRear
	if payload.Facing == string(scanner.FacingFront) {
		facing = scanner.FacingFront
	}
	err = mgr.OpenScanner(c.Request().Context(), s.ID(), facing)
	switch {
	case errors.Is(err, dispatch.ErrBadState):
		return fail(c, http.StatusConflict, "BAD_STATE", "Session is not scanning", nil)
	case errors.Is(err, scanner.ErrDeviceUnavailable):
		return fail(c, http.StatusServiceUnavailable, "CAMERA_UNAVAILABLE", "Camera unavailable or permission denied", err.Error())
	case err != nil:
		return fail(c, http.StatusInternalServerError, "SCANNER_ERROR", "Failed to open scanner", err.Error())
	}
	return ok(c, map[string]interface{}{"facing": facing})
}

func sessionScannerToggle(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	if err := mgr.ToggleScanner(c.Request().Context(), s.ID()); err != nil {
		if errors.Is(err, scanner.ErrDeviceUnavailable) {
			return fail(c, http.StatusServiceUnavailable, "CAMERA_UNAVAILABLE", "Camera unavailable or permission denied", err.Error())
		}
		return fail(c, http.StatusBadRequest, "SCANNER_ERROR", "Failed to toggle scanner", err.Error())
	}
	adapter, _ := mgr.Scanner(s.ID())
	return ok(c, map[string]interface{}{"facing": adapter.Facing()})
}

func sessionScannerClose(c echo.Context) error {
	s, err := sessionFromParam(c)
	if err != nil {
		return fail(c, http.StatusNotFound, "SESSION_NOT_FOUND", "Dispatch session not found", nil)
	}
	mgr.CloseScanner(s.ID())
	return ok(c, map[string]interface{}{"closed": true})
}
