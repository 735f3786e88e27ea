package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/fitbarz/kitcontrol/internal/catalog"
	"github.com/fitbarz/kitcontrol/internal/domain"
	"github.com/fitbarz/kitcontrol/internal/webserver"
)

type componentPayload struct {
	ID       int64  `json:"id,string"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	ImageURL string `json:"image_url"`
	Status   string `json:"status"`
	Sort     int    `json:"sort"`
}

type productPayload struct {
	Name       string             `json:"name"`
	Code       string             `json:"code"`
	ImageURL   string             `json:"image_url"`
	Status     string             `json:"status"`
	Components []componentPayload `json:"components"`
}

// registerProductRoutes registers the machine catalog CRUD endpoints.
// Reads are public; mutations require an admin token.
func registerProductRoutes() {
	webserver.PubGET("/catalog/products", listProducts)
	webserver.PubGET("/catalog/products/:id", getProduct)
	webserver.PubGET("/catalog/products/:id/suggest-code", suggestComponentCode)
	webserver.ApiPOST("/catalog/products", createProduct)
	webserver.ApiPUT("/catalog/products/:id", updateProduct)
	webserver.ApiDELETE("/catalog/products/:id", deleteProduct)
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := strings.TrimSpace(c.QueryParam("q"))
	withInactive := c.QueryParam("withInactive") == "true"

	repo := catalog.NewGormRepository(GetDB(c))
	rows, total, err := repo.List(c.Request().Context(), query, withInactive, page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	repo := catalog.NewGormRepository(GetDB(c))
	p, err := repo.GetByID(c.Request().Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	return ok(c, p)
}

// suggestComponentCode returns the conventional next child code for a
// kit, {parentCode}-{index}. It is a default for the editor, not a
// uniqueness guarantee.
func suggestComponentCode(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	repo := catalog.NewGormRepository(GetDB(c))
	p, err := repo.GetByID(c.Request().Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}
	code := catalog.SuggestComponentCode(p.Code, len(p.Components)+1)
	return ok(c, map[string]interface{}{"code": code})
}

func buildProduct(payload *productPayload) domain.Product {
	p := domain.Product{
		Name:     strings.TrimSpace(payload.Name),
		Code:     strings.TrimSpace(payload.Code),
		ImageURL: strings.TrimSpace(payload.ImageURL),
		Status:   payload.Status,
	}
	for _, cp := range payload.Components {
		p.Components = append(p.Components, domain.Component{
			ID:       cp.ID,
			Name:     strings.TrimSpace(cp.Name),
			Code:     strings.TrimSpace(cp.Code),
			ImageURL: strings.TrimSpace(cp.ImageURL),
			Status:   cp.Status,
			Sort:     cp.Sort,
		})
	}
	return p
}

func createProduct(c echo.Context) error {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if strings.TrimSpace(payload.Name) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_NAME", "Product name is required", nil)
	}
	if strings.TrimSpace(payload.Code) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_CODE", "Product code is required", nil)
	}

	p := buildProduct(&payload)
	repo := catalog.NewGormRepository(GetDB(c))
	if err := repo.Save(c.Request().Context(), &p); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", err.Error())
	}
	writeOprLog(c, "create_product", p.Name)
	return ok(c, p)
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse product", err.Error())
	}
	if strings.TrimSpace(payload.Name) == "" {
		return fail(c, http.StatusBadRequest, "MISSING_NAME", "Product name is required", nil)
	}

	repo := catalog.NewGormRepository(GetDB(c))
	if _, err := repo.GetByID(c.Request().Context(), id); errors.Is(err, catalog.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", err.Error())
	}

	p := buildProduct(&payload)
	p.ID = id
	err = repo.Save(c.Request().Context(), &p)
	if errors.Is(err, catalog.ErrResurrect) {
		return fail(c, http.StatusConflict, "INACTIVE_RECORD", "Inactive records cannot be reactivated", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", err.Error())
	}
	writeOprLog(c, "update_product", p.Name)
	return ok(c, p)
}

// deleteProduct marks a product inactive. Rows are never removed.
func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid product ID", nil)
	}
	repo := catalog.NewGormRepository(GetDB(c))
	err = repo.SoftDelete(c.Request().Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", err.Error())
	}
	writeOprLog(c, "deactivate_product", c.Param("id"))
	return ok(c, map[string]interface{}{"id": id, "status": domain.StatusInactive})
}
