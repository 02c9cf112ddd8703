package httpapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (*int, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", entities.ErrInvalidInput, name)
	}
	return &v, nil
}

// branchFilter builds a listing filter from query parameters.
func branchFilter(c *gin.Context) (entities.BranchFilter, error) {
	filter := entities.BranchFilter{
		Kind:        entities.BranchKind(strings.ToUpper(c.Query("kind"))),
		CanonStatus: entities.CanonStatus(strings.ToUpper(c.Query("canon"))),
		Visibility:  entities.Visibility(strings.ToUpper(c.Query("visibility"))),
		Sort:        entities.BranchSort(strings.ToLower(c.Query("sort"))),
	}

	forkPoint, err := queryInt(c, "forkPoint")
	if err != nil {
		return filter, err
	}
	filter.ForkPointChapter = forkPoint

	limit, err := queryInt(c, "limit")
	if err != nil {
		return filter, err
	}
	if limit != nil {
		filter.Limit = *limit
	}
	return filter, nil
}

// progressFor resolves the reader progress of a GET request: an explicit
// asOfChapter wins, otherwise the caller's recorded progress on workID.
func (a *api) progressFor(c *gin.Context, workID string) (entities.ReaderProgress, error) {
	asOf, err := queryInt(c, "asOfChapter")
	if err != nil {
		return entities.ReaderProgress{}, err
	}
	return a.svc.Visibility.ReaderProgress(c.Request.Context(), UserID(c), workID, asOf)
}
