package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

type linkRequestBody struct {
	Message string `json:"message" binding:"max=2000"`
}

func (a *api) requestLink(c *gin.Context) {
	var body linkRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
	}

	req, err := a.svc.Promotion.RequestLink(c.Request.Context(), UserID(c), c.Param("id"), body.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (a *api) listWorkLinkRequests(c *gin.Context) {
	a.listLinkRequests(c, entities.LinkRequestFilter{WorkID: c.Param("id")})
}

func (a *api) listBranchLinkRequests(c *gin.Context) {
	a.listLinkRequests(c, entities.LinkRequestFilter{BranchID: c.Param("id")})
}

func (a *api) listLinkRequests(c *gin.Context, filter entities.LinkRequestFilter) {
	filter.Status = entities.LinkRequestStatus(strings.ToUpper(c.Query("status")))

	requests, err := a.svc.Promotion.LinkRequests(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if requests == nil {
		requests = []entities.LinkRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"link_requests": requests})
}

type reviewLinkBody struct {
	Comment string `json:"comment" binding:"max=2000"`
}

func (a *api) approveLink(c *gin.Context) {
	a.reviewLink(c, a.svc.Promotion.ApproveLink)
}

func (a *api) rejectLink(c *gin.Context) {
	a.reviewLink(c, a.svc.Promotion.RejectLink)
}

type reviewFunc func(ctx context.Context, actorID, requestID, comment string) (*entities.LinkRequest, error)

func (a *api) reviewLink(c *gin.Context, fn reviewFunc) {
	var body reviewLinkBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, err)
			return
		}
	}

	req, err := fn(c.Request.Context(), UserID(c), c.Param("id"), body.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
