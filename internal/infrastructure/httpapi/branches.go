package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

type createBranchRequest struct {
	ParentID         string `json:"parentId" binding:"required"`
	ForkPointChapter *int   `json:"forkPointChapter" binding:"required"`
	Kind             string `json:"kind" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Description      string `json:"description"`
	VoteThreshold    int    `json:"voteThreshold" binding:"gte=0"`
}

func (a *api) createBranch(c *gin.Context) {
	var req createBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	branch, err := a.svc.Branches.Create(c.Request.Context(), UserID(c), services.BranchCreateInput{
		ParentID:         req.ParentID,
		ForkPointChapter: *req.ForkPointChapter,
		Kind:             entities.BranchKind(strings.ToUpper(req.Kind)),
		Name:             req.Name,
		Description:      req.Description,
		VoteThreshold:    req.VoteThreshold,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, branch)
}

func (a *api) getBranch(c *gin.Context) {
	branch, err := a.svc.Branches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

type updateBranchRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	ExpectedVersion *int    `json:"expectedVersion"`
}

func (a *api) updateBranch(c *gin.Context) {
	var req updateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	branch, err := a.svc.Branches.Update(c.Request.Context(), UserID(c), c.Param("id"), services.BranchUpdateInput{
		Name:            req.Name,
		Description:     req.Description,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

func (a *api) deleteBranch(c *gin.Context) {
	if err := a.svc.Branches.Delete(c.Request.Context(), UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setVisibilityRequest struct {
	Visibility string `json:"visibility" binding:"required"`
}

func (a *api) setVisibility(c *gin.Context) {
	var req setVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	visibility := entities.Visibility(strings.ToUpper(req.Visibility))
	branch, err := a.svc.Branches.SetVisibility(c.Request.Context(), UserID(c), c.Param("id"), visibility)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

func (a *api) ancestry(c *gin.Context) {
	links, err := a.svc.Branches.Ancestry(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ancestry": links})
}

func (a *api) publishChapter(c *gin.Context) {
	count, err := a.svc.Works.PublishChapter(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chapter_count": count})
}

func (a *api) voteStatus(c *gin.Context) {
	a.vote(c, a.svc.Votes.Status)
}

func (a *api) castVote(c *gin.Context) {
	a.vote(c, a.svc.Votes.Cast)
}

func (a *api) withdrawVote(c *gin.Context) {
	a.vote(c, a.svc.Votes.Withdraw)
}

func (a *api) toggleVote(c *gin.Context) {
	a.vote(c, a.svc.Votes.Toggle)
}

type voteFunc func(ctx context.Context, userID, branchID string) (*entities.VoteResult, error)

func (a *api) vote(c *gin.Context, fn voteFunc) {
	result, err := fn(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *api) merge(c *gin.Context) {
	branch, err := a.svc.Promotion.Merge(c.Request.Context(), UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (a *api) reject(c *gin.Context) {
	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	branch, err := a.svc.Promotion.Reject(c.Request.Context(), UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, branch)
}
