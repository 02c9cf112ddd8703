package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

type createWorkRequest struct {
	Title string `json:"title" binding:"required"`
}

type createWorkResponse struct {
	Work       *entities.Work   `json:"work"`
	MainBranch *entities.Branch `json:"main_branch"`
}

func (a *api) createWork(c *gin.Context) {
	var req createWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	work, main, err := a.svc.Works.Create(c.Request.Context(), UserID(c), req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createWorkResponse{Work: work, MainBranch: main})
}

func (a *api) getWork(c *gin.Context) {
	work, err := a.svc.Works.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

type recordProgressRequest struct {
	Chapter *int `json:"chapter" binding:"required"`
}

func (a *api) recordProgress(c *gin.Context) {
	var req recordProgressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := a.svc.Works.RecordProgress(c.Request.Context(), UserID(c), c.Param("id"), *req.Chapter); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type setAllowBranchingRequest struct {
	AllowBranching *bool `json:"allowBranching" binding:"required"`
}

func (a *api) setAllowBranching(c *gin.Context) {
	var req setAllowBranchingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	work, err := a.svc.Works.SetAllowBranching(c.Request.Context(), UserID(c), c.Param("id"), *req.AllowBranching)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

func (a *api) listBranches(c *gin.Context) {
	filter, err := branchFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}

	seq, err := a.svc.Branches.List(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	branches := make([]entities.Branch, 0)
	for branch, err := range seq {
		if err != nil {
			writeError(c, err)
			return
		}
		branches = append(branches, branch)
	}
	c.JSON(http.StatusOK, gin.H{"branches": branches})
}

type spoilerGateRequest struct {
	WorkID        string `json:"workId" binding:"required"`
	RevealChapter *int   `json:"revealChapter" binding:"required"`
	RevealAnyway  bool   `json:"revealAnyway"`
}

type spoilerGateResponse struct {
	services.GateDecision
	Progress entities.ReaderProgress `json:"progress"`
}

func (a *api) spoilerGate(c *gin.Context) {
	var req spoilerGateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	progress, err := a.svc.Visibility.ReaderProgress(c.Request.Context(), UserID(c), req.WorkID, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, spoilerGateResponse{
		GateDecision: services.Gate(*req.RevealChapter, progress, req.RevealAnyway),
		Progress:     progress,
	})
}
