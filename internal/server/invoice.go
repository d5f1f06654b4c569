package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/draft"
	"github.com/smallbiznis/quickinvoice/internal/invoice/domain"
	"github.com/smallbiznis/quickinvoice/internal/invoice/editor"
)

const maxLogoUploadBytes = 8 << 20

type businessRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type itemRequest struct {
	Description string        `json:"description"`
	Quantity    domain.Number `json:"quantity"`
	Price       domain.Number `json:"price"`
}

type discountRequest struct {
	Type  string        `json:"type"`
	Value domain.Number `json:"value"`
}

type taxRequest struct {
	Rate domain.Number `json:"rate"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

type templateRequest struct {
	Template string `json:"template"`
}

type newInvoiceRequest struct {
	Confirmed bool `json:"confirmed"`
}

type exportRequest struct {
	Format        string `json:"format"`
	SaveToHistory bool   `json:"save_to_history"`
}

type parseRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) GetInvoice(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.draft.State(c.Request.Context())})
}

// mutate applies fn through the draft controller and writes the new state.
func (s *Server) mutate(c *gin.Context, fn draft.Mutation) {
	view, err := s.draft.Mutate(c.Request.Context(), fn)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) UpdateBusiness(c *gin.Context) {
	var req businessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		e.SetBusiness(domain.BusinessProfile{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Address: req.Address,
		})
		return nil
	})
}

func (s *Server) UpdateClient(c *gin.Context) {
	var req domain.ClientProfile
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		e.SetClient(req)
		return nil
	})
}

func (s *Server) UpdateMeta(c *gin.Context) {
	var req domain.Meta
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		e.SetMeta(req)
		return nil
	})
}

func (s *Server) AddItem(c *gin.Context) {
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		e.AddItem()
		return nil
	})
}

func (s *Server) UpdateItem(c *gin.Context) {
	index, err := parseIndex(c.Param("index"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		return e.UpdateItem(index, domain.LineItem{
			Description: req.Description,
			Quantity:    req.Quantity,
			Price:       req.Price,
		})
	})
}

func (s *Server) RemoveItem(c *gin.Context) {
	index, err := parseIndex(c.Param("index"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		return e.RemoveItem(index)
	})
}

func (s *Server) UpdateDiscount(c *gin.Context) {
	var req discountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		return e.SetDiscount(domain.Discount{
			Type:  domain.DiscountType(strings.TrimSpace(req.Type)),
			Value: req.Value,
		})
	})
}

func (s *Server) UpdateTaxRate(c *gin.Context) {
	var req taxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		return e.SetTaxRate(req.Rate.Float())
	})
}

func (s *Server) UpdateCurrency(c *gin.Context) {
	var req currencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, entitled bool) error {
		return e.SetCurrency(req.Currency, entitled)
	})
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	s.mutate(c, func(e *editor.Editor, entitled bool) error {
		return e.SetTemplate(req.Template, entitled)
	})
}

// UploadLogo accepts the image as multipart field "logo".
func (s *Server) UploadLogo(c *gin.Context) {
	fh, err := c.FormFile("logo")
	if err != nil {
		AbortWithError(c, newValidationError("logo", "required", "logo file is required"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxLogoUploadBytes+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(data) > maxLogoUploadBytes {
		AbortWithError(c, editor.ErrLogoTooLarge)
		return
	}
	s.mutate(c, func(e *editor.Editor, entitled bool) error {
		return e.SetLogo(data, entitled)
	})
}

func (s *Server) RemoveLogo(c *gin.Context) {
	s.mutate(c, func(e *editor.Editor, _ bool) error {
		e.RemoveLogo()
		return nil
	})
}

func (s *Server) NewInvoice(c *gin.Context) {
	var req newInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	view, err := s.draft.NewInvoice(c.Request.Context(), req.Confirmed)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) SaveDraft(c *gin.Context) {
	if err := s.draft.SaveDraft(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.draft.State(c.Request.Context())})
}

func (s *Server) Preview(c *gin.Context) {
	out, err := s.draft.Preview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(out))
}

// Export streams the rendered invoice as an attachment. Format and the
// history flag may come from the JSON body or the query string.
func (s *Server) Export(c *gin.Context) {
	var req exportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if f := strings.TrimSpace(c.Query("format")); f != "" {
		req.Format = f
	}
	save, err := parseOptionalBool(c.Query("save"))
	if err != nil {
		AbortWithError(c, newValidationError("save", "invalid_save", "invalid save flag"))
		return
	}
	if save != nil {
		req.SaveToHistory = *save
	}

	art, err := s.draft.Export(c.Request.Context(), draft.ExportOptions{
		Format:        req.Format,
		SaveToHistory: req.SaveToHistory,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if art.Snapshot != nil {
		c.Header("X-History-Id", art.Snapshot.ID)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

// ParseInvoice runs the assist parser and merges the result into the form.
func (s *Server) ParseInvoice(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	ctx := c.Request.Context()

	res, err := s.assist.Parse(ctx, req.Prompt)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	view, err := s.draft.ApplyParsed(ctx, res.Parsed)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"invoice":   view,
		"parsed":    res.Parsed,
		"remaining": res.Remaining,
	}})
}
