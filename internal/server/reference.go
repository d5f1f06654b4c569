package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/currency"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
)

func (s *Server) ListCurrencies(c *gin.Context) {
	codes := currency.Codes()
	out := make([]currency.Descriptor, 0, len(codes))
	for _, code := range codes {
		out = append(out, currency.Lookup(code))
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": domain.Templates()})
}
