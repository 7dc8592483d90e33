package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/opsgrid-api/internal/models"
	appErrors "github.com/noah-isme/opsgrid-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type observerStub struct {
	method string
	path   string
	status int
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.method, o.path, o.status = method, path, status
}

func newProtectedRouter(role models.UserRole, allowed ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/plans", JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: role}}), RequireRoles(allowed...), func(c *gin.Context) {
		claims, _ := Claims(c)
		c.String(http.StatusOK, claims.UserID)
	})
	return r
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload.Error.Code
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newProtectedRouter(models.RoleAdmin)
	for _, header := range []string{"", "Token good", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/plans", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Equal(t, appErrors.ErrUnauthorized.Code, errorCode(t, w.Body.Bytes()))
	}
}

func TestRequireRoles(t *testing.T) {
	cases := []struct {
		name    string
		role    models.UserRole
		allowed []models.UserRole
		status  int
	}{
		{"any authenticated", models.RoleViewer, nil, http.StatusOK},
		{"planner allowed", models.RolePlanner, []models.UserRole{models.RolePlanner, models.RoleAdmin}, http.StatusOK},
		{"viewer forbidden", models.RoleViewer, []models.UserRole{models.RolePlanner, models.RoleAdmin}, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newProtectedRouter(tc.role, tc.allowed...)
			req := httptest.NewRequest(http.MethodGet, "/plans", nil)
			req.Header.Set("Authorization", "Bearer good")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &observerStub{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/plans/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plans/abc", nil))
	assert.Equal(t, "/plans/:id", obs.path)
	assert.Equal(t, http.StatusNoContent, obs.status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/random/path", nil))
	assert.Equal(t, "unmatched", obs.path)
	assert.Equal(t, http.StatusNotFound, obs.status)
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/schedule", func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, ResponseMeta(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedule", nil))
	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}
