package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/mocks"
	"github.com/ersonp/forklore-core/internal/domain/services"
)

func newDraftFixture(t *testing.T) (*world, *mocks.SnapshotDrafter, *DraftHandler, *entities.WikiEntry) {
	t.Helper()
	w := newWorld(t, 3)
	drafter := &mocks.SnapshotDrafter{}
	handler := NewDraftHandler(services.NewAssistService(drafter, w.wiki, w.visibility))

	entry, err := w.wiki.CreateEntry(context.Background(), author, services.EntryInput{
		BranchID: w.main.ID,
		Name:     "Aria",
		Content:  "A wandering bard.",
	})
	require.NoError(t, err)
	return w, drafter, handler, entry
}

func TestDraftHandler_Handle(t *testing.T) {
	_, drafter, handler, entry := newDraftFixture(t)
	drafter.Result = "A bard who found her voice."
	path := writeFile(t, "chapter-03.txt", "Aria sang at the gates and the city listened.")

	result, err := handler.Handle(context.Background(), author, entry.ID, path, 3)

	require.NoError(t, err)
	assert.Equal(t, path, result.FilePath)
	assert.Equal(t, "A bard who found her voice.", result.Snapshot.Content)
	assert.Equal(t, 3, result.Snapshot.ValidFromChapter)
	assert.Equal(t, entities.ContributorAI, result.Snapshot.Contributor)

	require.Len(t, drafter.Requests, 1)
	assert.Equal(t, "A wandering bard.", drafter.Requests[0].CurrentContent)
	assert.Equal(t, "Aria", drafter.Requests[0].EntryName)
}

func TestDraftHandler_Handle_Directory(t *testing.T) {
	_, _, handler, entry := newDraftFixture(t)

	_, err := handler.Handle(context.Background(), author, entry.ID, t.TempDir(), 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestDraftHandler_Handle_FileNotFound(t *testing.T) {
	_, _, handler, entry := newDraftFixture(t)

	_, err := handler.Handle(context.Background(), author, entry.ID, "/nonexistent/chapter.txt", 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accessing file")
}

func TestDraftHandler_Handle_DrafterError(t *testing.T) {
	_, drafter, handler, entry := newDraftFixture(t)
	drafter.Err = errors.New("rate limited")
	path := writeFile(t, "chapter-03.txt", "Something happens.")

	_, err := handler.Handle(context.Background(), author, entry.ID, path, 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "drafting snapshot")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestDraftHandler_Handle_NotAuthor(t *testing.T) {
	_, drafter, handler, entry := newDraftFixture(t)
	drafter.Result = "changed"
	path := writeFile(t, "chapter-03.txt", "Something happens.")

	_, err := handler.Handle(context.Background(), "someone-else", entry.ID, path, 3)

	assert.ErrorIs(t, err, entities.ErrNotAuthor)
	assert.Empty(t, drafter.Requests)
}
