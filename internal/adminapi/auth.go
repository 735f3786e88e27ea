package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/fitbarz/kitcontrol/internal/domain"
	"github.com/fitbarz/kitcontrol/internal/webserver"
	"github.com/fitbarz/kitcontrol/pkg/common"
)

func registerAuthRoutes() {
	webserver.PubPOST("/auth/login", adminLogin)
	webserver.ApiGET("/oprlog", listOprLog)
}

type loginPayload struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// adminLogin authenticates a system operator and issues a token for
// the admin surface (catalog mutation, backup restore).
func adminLogin(c echo.Context) error {
	var payload loginPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse login parameters", nil)
	}
	username := strings.TrimSpace(payload.Username)
	if username == "" || payload.Password == "" {
		return fail(c, http.StatusBadRequest, "MISSING_CREDENTIALS", "Username and password are required", nil)
	}

	var opr domain.SysOpr
	err := GetDB(c).Where("username = ?", username).First(&opr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator", err.Error())
	}
	if opr.Status != common.ENABLED {
		return fail(c, http.StatusForbidden, "OPERATOR_DISABLED", "Operator account is disabled", nil)
	}
	if bcrypt.CompareHashAndPassword([]byte(opr.Password), []byte(payload.Password)) != nil {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}

	expire := time.Duration(appConfig.Web.JwtExpire) * time.Hour
	claims := jwt.MapClaims{
		"uid": opr.ID,
		"usr": opr.Username,
		"lvl": opr.Level,
		"exp": time.Now().Add(expire).Unix(),
		"iat": time.Now().Unix(),
		"sub": "kitcontrol-admin",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(appConfig.Web.Secret))
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to sign token", err.Error())
	}

	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).
		Update("last_login", time.Now())
	writeOprLogAs(c, opr.Username, "login", opr.Username)

	return ok(c, map[string]interface{}{
		"token":    signed,
		"username": opr.Username,
		"level":    opr.Level,
	})
}

// listOprLog pages through the admin audit trail, newest first.
func listOprLog(c echo.Context) error {
	page, pageSize := parsePagination(c)

	base := GetDB(c).Model(&domain.SysOprLog{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator log", err.Error())
	}

	var rows []domain.SysOprLog
	err := base.Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operator log", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// writeOprLog records an admin action in the audit trail, attributed to
// the operator named in the request token. Failures are logged and
// otherwise ignored; the action itself already succeeded.
func writeOprLog(c echo.Context, action, desc string) {
	oprName := ""
	if token, okc := c.Get("user").(*jwt.Token); okc {
		if claims, okc := token.Claims.(jwt.MapClaims); okc {
			if usr, okc := claims["usr"].(string); okc {
				oprName = usr
			}
		}
	}
	writeOprLogAs(c, oprName, action, desc)
}

// writeOprLogAs is the variant for routes with no token in context, such
// as login itself.
func writeOprLogAs(c echo.Context, oprName, action, desc string) {
	entry := domain.SysOprLog{
		ID:        common.UUIDint64(),
		OprName:   oprName,
		OprIp:     c.RealIP(),
		OptAction: action,
		OptDesc:   desc,
		OptTime:   time.Now(),
	}
	if err := GetDB(c).Create(&entry).Error; err != nil {
		zap.L().Warn("failed to write operator log", zap.String("action", action), zap.Error(err))
	}
}
