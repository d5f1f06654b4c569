package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/invoice/render"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func historyID(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid history id"))
		return "", false
	}
	return id, true
}

func (s *Server) ListHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.draft.History(c.Request.Context())})
}

func (s *Server) SaveToHistory(c *gin.Context) {
	snap, err := s.draft.SaveToHistory(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": snap})
}

func (s *Server) GetHistoryEntry(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	snap, found := s.store.HistoryEntry(c.Request.Context(), id)
	if !found {
		AbortWithError(c, domain.ErrSnapshotNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": snap})
}

func (s *Server) LoadFromHistory(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	view, err := s.draft.LoadFromHistory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) DuplicateFromHistory(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	view, err := s.draft.DuplicateFromHistory(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) DeleteFromHistory(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	if err := s.draft.DeleteFromHistory(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ClearHistory(c *gin.Context) {
	if err := s.draft.ClearHistory(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ExportHistory(c *gin.Context) {
	data, err := render.HistoryWorkbook(s.draft.History(c.Request.Context()))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invoice-history.xlsx"))
	c.Data(http.StatusOK, xlsxContentType, data)
}
