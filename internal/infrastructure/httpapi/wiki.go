package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/services"
)

func (a *api) listWiki(c *gin.Context) {
	ctx := c.Request.Context()
	branch, err := a.svc.Branches.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	progress, err := a.progressFor(c, branch.WorkID)
	if err != nil {
		writeError(c, err)
		return
	}

	views, err := a.svc.Visibility.ListVisibleEntries(ctx, UserID(c), branch.ID, progress, c.Query("tag"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": views, "progress": progress})
}

type createEntryRequest struct {
	Name            string   `json:"name" binding:"required"`
	FirstAppearance *int     `json:"firstAppearance"`
	ImageURL        string   `json:"imageUrl"`
	HiddenNote      string   `json:"hiddenNote"`
	Content         string   `json:"content"`
	ValidFrom       int      `json:"validFrom" binding:"gte=0"`
	TagIDs          []string `json:"tagIds"`
}

func (a *api) createEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := a.svc.Wiki.CreateEntry(c.Request.Context(), UserID(c), services.EntryInput{
		BranchID:        c.Param("id"),
		Name:            req.Name,
		FirstAppearance: req.FirstAppearance,
		ImageURL:        req.ImageURL,
		HiddenNote:      req.HiddenNote,
		Content:         req.Content,
		ValidFrom:       req.ValidFrom,
		TagIDs:          req.TagIDs,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (a *api) searchWiki(c *gin.Context) {
	if a.svc.Search == nil {
		writeError(c, fmt.Errorf("search: %w", errFeatureDisabled))
		return
	}

	ctx := c.Request.Context()
	branch, err := a.svc.Branches.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	progress, err := a.progressFor(c, branch.WorkID)
	if err != nil {
		writeError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	results, err := a.svc.Search.Search(ctx, UserID(c), branch.ID, c.Query("q"), progress, n)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "progress": progress})
}

func (a *api) listTags(c *gin.Context) {
	tags, err := a.svc.Wiki.ListTags(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

type createTagRequest struct {
	Name         string `json:"name" binding:"required"`
	Color        string `json:"color"`
	Description  string `json:"description"`
	DisplayOrder int    `json:"displayOrder"`
}

func (a *api) createTag(c *gin.Context) {
	var req createTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tag, err := a.svc.Wiki.CreateTag(c.Request.Context(), UserID(c), c.Param("id"), services.TagInput{
		Name:         req.Name,
		Color:        req.Color,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// getEntry resolves an entry for the caller. With ?branch= the entry is
// resolved from that branch's point of view, applying the fork boundary.
func (a *api) getEntry(c *gin.Context) {
	ctx := c.Request.Context()
	entryID := c.Param("id")
	workID, err := a.svc.Visibility.EntryWorkID(ctx, entryID)
	if err != nil {
		writeError(c, err)
		return
	}
	progress, err := a.progressFor(c, workID)
	if err != nil {
		writeError(c, err)
		return
	}

	var view *services.EntryView
	if branchID := c.Query("branch"); branchID != "" {
		view, err = a.svc.Visibility.ResolveInBranch(ctx, UserID(c), branchID, entryID, progress)
	} else {
		view, err = a.svc.Visibility.Resolve(ctx, UserID(c), entryID, progress)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (a *api) entryHistory(c *gin.Context) {
	ctx := c.Request.Context()
	entryID := c.Param("id")
	workID, err := a.svc.Visibility.EntryWorkID(ctx, entryID)
	if err != nil {
		writeError(c, err)
		return
	}
	progress, err := a.progressFor(c, workID)
	if err != nil {
		writeError(c, err)
		return
	}

	history, err := a.svc.Wiki.History(ctx, entryID, progress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": history, "progress": progress})
}

type appendSnapshotRequest struct {
	Content          string `json:"content" binding:"required"`
	ValidFromChapter *int   `json:"validFromChapter" binding:"required"`
}

func (a *api) appendSnapshot(c *gin.Context) {
	var req appendSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snapshot, err := a.svc.Wiki.AppendSnapshot(c.Request.Context(), UserID(c), c.Param("id"), services.SnapshotInput{
		Content:          req.Content,
		ValidFromChapter: *req.ValidFromChapter,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

type draftRequest struct {
	ChapterText string `json:"chapterText" binding:"required"`
	ValidFrom   *int   `json:"validFrom" binding:"required"`
}

func (a *api) draftSnapshot(c *gin.Context) {
	if a.svc.Assist == nil {
		writeError(c, fmt.Errorf("assist: %w", errFeatureDisabled))
		return
	}

	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	snapshot, err := a.svc.Assist.DraftSnapshot(c.Request.Context(), UserID(c), c.Param("id"), req.ChapterText, *req.ValidFrom)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

type setTagsRequest struct {
	TagIDs []string `json:"tagIds"`
}

func (a *api) setEntryTags(c *gin.Context) {
	var req setTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	entry, err := a.svc.Wiki.SetTags(c.Request.Context(), UserID(c), c.Param("id"), req.TagIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
