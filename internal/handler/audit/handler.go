package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ativasaude/guia-api/internal/handler"
	"github.com/ativasaude/guia-api/internal/service/audit"
	"github.com/ativasaude/guia-api/pkg/clock"
)

// Handler exposes the audit engine's denial and orphan-authorization
// reports. Reports are read-only over a consistent snapshot, so results
// are cached briefly to keep repeated dashboard polls off the database.
type Handler struct {
	service *audit.Service
	clock   clock.Clock
	cache   *gocache.Cache
}

func NewHandler(service *audit.Service, clk clock.Clock, ttl, cleanup time.Duration) *Handler {
	return &Handler{
		service: service,
		clock:   clk,
		cache:   gocache.New(ttl, cleanup),
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reports := r.Group("/audit")
	{
		reports.GET("/denials", h.Denials)
		reports.GET("/orphan-authorizations", h.OrphanAuthorizations)
	}
}

func (h *Handler) Denials(c *gin.Context) {
	scope, err := parseScope(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	key := cacheKey("denials", scope)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(cached))
		return
	}

	findings, err := h.service.ScanDenials(c.Request.Context(), scope)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.cache.SetDefault(key, findings)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(findings))
}

func (h *Handler) OrphanAuthorizations(c *gin.Context) {
	scope, err := parseScope(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	asOf := h.clock.Now()
	if v := c.Query("as_of"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid as_of timestamp"))
			return
		}
		asOf = t
	}

	key := cacheKey(fmt.Sprintf("orphans:%d", asOf.Unix()), scope)
	if cached, ok := h.cache.Get(key); ok {
		c.JSON(http.StatusOK, handler.NewSuccessResponse(cached))
		return
	}

	findings, err := h.service.ScanOrphanAuthorizations(c.Request.Context(), asOf, scope)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	h.cache.SetDefault(key, findings)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(findings))
}

func parseScope(c *gin.Context) (audit.Scope, error) {
	var scope audit.Scope
	if v := c.Query("guide_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return scope, fmt.Errorf("invalid guide ID")
		}
		scope.GuideID = &id
	}
	return scope, nil
}

func cacheKey(prefix string, scope audit.Scope) string {
	if scope.GuideID != nil {
		return prefix + ":" + scope.GuideID.String()
	}
	return prefix + ":all"
}
