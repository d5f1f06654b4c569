package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quickinvoice/internal/entitlement"
)

type activateSubscriptionRequest struct {
	CustomerID     string     `json:"customer_id"`
	SubscriptionID string     `json:"subscription_id"`
	Plan           string     `json:"plan"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (s *Server) GetBusinessProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.store.BusinessProfile(c.Request.Context())})
}

func (s *Server) SaveBusinessProfile(c *gin.Context) {
	if err := s.draft.SaveBusinessProfile(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.store.BusinessProfile(c.Request.Context())})
}

func (s *Server) LoadBusinessProfile(c *gin.Context) {
	view, err := s.draft.LoadBusinessProfile(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) GetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.store.Preferences(c.Request.Context())})
}

func (s *Server) GetSubscription(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"subscription": s.ents.Current(ctx),
		"entitled":     s.ents.IsEntitled(ctx),
	}})
}

// ActivateSubscription records the result of a completed checkout.
func (s *Server) ActivateSubscription(c *gin.Context) {
	var req activateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	rec, err := s.ents.Activate(c.Request.Context(), entitlement.CheckoutResult{
		CustomerID:     strings.TrimSpace(req.CustomerID),
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
		Plan:           strings.TrimSpace(req.Plan),
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	if err := s.ents.Cancel(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetUsage reports the assist uses left today; -1 means unlimited.
func (s *Server) GetUsage(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"remaining": s.assist.Remaining(ctx),
		"quota":     s.settings.Get().DailyQuota,
	}})
}
