package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/entities"
)

type AuditController struct {
	reader AuditReader
}

func NewAuditController(reader AuditReader) *AuditController {
	return &AuditController{reader: reader}
}

// List handles GET /api/audit (admin)
// Query parameters: user_id, type, entity_type, entity_id, since (RFC 3339), limit, offset.
func (ac *AuditController) List(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}
	userID, ok := parseOptionalQueryID(c, "user_id")
	if !ok {
		return
	}
	entityID, ok := parseOptionalQueryID(c, "entity_id")
	if !ok {
		return
	}

	filter := audit.Filter{
		UserID:     userID,
		EventType:  entities.AuditEventType(c.Query("type")),
		EntityType: c.Query("entity_type"),
		EntityID:   entityID,
		Limit:      limit,
		Offset:     offset,
	}
	if s := c.Query("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			respondBadRequest(c, "invalid since, expected RFC 3339")
			return
		}
		filter.Since = since
	}

	events, total, err := ac.reader.GetEvents(c.Request.Context(), filter)
	if err != nil {
		respondInternalError(c, err, "list audit events")
		return
	}
	if events == nil {
		events = []entities.AuditEvent{}
	}
	c.JSON(http.StatusOK, newPaginatedResponse(events, total, limit, offset))
}
