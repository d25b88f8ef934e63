package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"qrclass/internal/auth"
	"qrclass/internal/ledger"
	"qrclass/internal/metrics"
	"qrclass/internal/report"
	"qrclass/internal/session"
	"qrclass/internal/store"
	"qrclass/internal/token"
)

type handlers struct {
	registry *session.Registry
	sessions session.Repository
	ledger   *ledger.Service
	reports  *report.Service
	codec    *token.Codec
	cache    *store.Redis
	log      *zap.Logger
}

func mustIdentity(c *gin.Context) (auth.Identity, bool) {
	ident, ok := auth.IdentityFrom(c)
	if !ok {
		// RequireAuth runs first on every route reaching here.
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	}
	return ident, ok
}

func (h *handlers) createSession(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.registry.Create(c.Request.Context(), ident, req.Name)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *handlers) listSessions(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	sessions, err := h.registry.List(c.Request.Context(), ident)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *handlers) latestSession(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	s, err := h.registry.Latest(c.Request.Context(), ident)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) getSession(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	s, err := h.registry.Get(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) deleteSession(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	if err := h.registry.Delete(c.Request.Context(), ident, c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.ResetLive(c.Request.Context(), c.Param("id")); err != nil {
			h.log.Warn("live counter reset failed", zap.String("session_id", c.Param("id")), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

// sessionToken returns the scannable payload for a session. Unauthenticated:
// the payload contains nothing a bearer of the session id does not already
// know.
func (h *handlers) sessionToken(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, h.codec.Encode(id))
}

func (h *handlers) sessionQR(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.sessions.Get(c.Request.Context(), id); err != nil {
		writeErr(c, err)
		return
	}
	size := 256
	if v := c.Query("size"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1024 {
			size = parsed
		}
	}
	png, err := h.codec.QRImage(id, size)
	if err != nil {
		h.log.Error("qr render failed", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *handlers) decodeScan(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID, ok := token.Decode(req.Code)
	if !ok {
		metrics.TokenDecodes.WithLabelValues("unrecognized").Inc()
		c.JSON(http.StatusOK, gin.H{"recognized": false})
		return
	}
	metrics.TokenDecodes.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{"recognized": true, "session_id": sessionID})
}

func (h *handlers) submitAttendance(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	var req struct {
		SessionID string `json:"session_id"`
		Code      string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID := req.SessionID
	if sessionID == "" && req.Code != "" {
		decoded, recognized := token.Decode(req.Code)
		if !recognized {
			metrics.TokenDecodes.WithLabelValues("unrecognized").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized code"})
			return
		}
		metrics.TokenDecodes.WithLabelValues("ok").Inc()
		sessionID = decoded
	}
	rec, err := h.ledger.Submit(c.Request.Context(), ident, sessionID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *handlers) listAttendance(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	records, err := h.ledger.List(c.Request.Context(), ident, c.Param("session_id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *handlers) listAllAttendance(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	records, err := h.ledger.ListAll(c.Request.Context(), ident)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (h *handlers) deleteAttendance(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), ident, c.Param("id")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (h *handlers) liveCount(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	n, err := h.reports.LiveCount(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": c.Param("id"), "live": n})
}

func (h *handlers) overview(c *gin.Context) {
	ident, ok := mustIdentity(c)
	if !ok {
		return
	}
	summaries, err := h.reports.Overview(c.Request.Context(), ident)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": summaries})
}
