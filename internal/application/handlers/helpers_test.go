package handlers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/mocks"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

const author = "author-1"

// world is a work with a published main branch backed by the mock store.
type world struct {
	db         *mocks.RelationalDB
	works      *services.WorkService
	branches   *services.BranchService
	visibility *services.VisibilityService
	wiki       *services.WikiService
	main       *entities.Branch
}

func newWorld(t *testing.T, chapters int) *world {
	t.Helper()
	ctx := context.Background()
	db := mocks.NewRelationalDB()
	visibility := services.NewVisibilityService(db, services.NewStoredProgress(db), nil)
	w := &world{
		db:         db,
		works:      services.NewWorkService(db),
		branches:   services.NewBranchService(db, services.BranchSettings{}, nil),
		visibility: visibility,
		wiki:       services.NewWikiService(db, visibility, nil),
	}

	_, main, err := w.works.Create(ctx, author, "The Long Road")
	require.NoError(t, err)
	for range chapters {
		_, err := w.works.PublishChapter(ctx, author, main.ID)
		require.NoError(t, err)
	}
	w.main = main
	return w
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
