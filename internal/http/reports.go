package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/reports"
)

type ReportsController struct {
	source ReportSource
	now    func() time.Time
}

func NewReportsController(source ReportSource) *ReportsController {
	return &ReportsController{
		source: source,
		now:    time.Now,
	}
}

// Overview handles GET /api/reports/overview
func (rc *ReportsController) Overview(c *gin.Context) {
	overview, err := rc.source.Overview(c.Request.Context(), rc.now().UTC())
	if err != nil {
		respondInternalError(c, err, "reports overview")
		return
	}
	c.JSON(http.StatusOK, overview)
}

// PopularBooks handles GET /api/reports/popular-books?limit=10
func (rc *ReportsController) PopularBooks(c *gin.Context) {
	limit := reports.DefaultPopularLimit
	if s := c.Query("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			respondBadRequest(c, "invalid limit")
			return
		}
		limit = v
	}

	list, err := rc.source.PopularBooks(c.Request.Context(), limit)
	if err != nil {
		respondInternalError(c, err, "popular books")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": list, "count": len(list)})
}

// DueSoon handles GET /api/reports/due-soon?within=72h
func (rc *ReportsController) DueSoon(c *gin.Context) {
	within := reports.DefaultDueSoonWindow
	if s := c.Query("within"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			respondBadRequest(c, "invalid within duration")
			return
		}
		within = d
	}

	list, err := rc.source.DueSoon(c.Request.Context(), rc.now().UTC(), within)
	if err != nil {
		respondInternalError(c, err, "due soon")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": list, "count": len(list), "within": within.String()})
}
