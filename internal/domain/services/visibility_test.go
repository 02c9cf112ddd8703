package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/forklore-core/internal/domain/entities"
	"github.com/ersonp/forklore-core/internal/domain/mocks"
)

func TestVisibilityService_ResolveInBranch_InheritedBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 20)
	aria := f.entry(t, main.ID, "Aria", nil, 1, 10, 15)
	child := f.fork(t, reader, main.ID, 12)

	tests := []struct {
		name        string
		branchID    string
		progress    entities.ReaderProgress
		wantContent string
		wantRedact  bool
	}{
		{
			name:        "child reader past the fork sees the fork-point revision",
			branchID:    child.ID,
			progress:    entities.KnownProgress(20),
			wantContent: "Aria as of chapter 10",
		},
		{
			name:        "child reader before a revision is redacted",
			branchID:    child.ID,
			progress:    entities.KnownProgress(5),
			wantContent: "Aria as of chapter 1",
			wantRedact:  true,
		},
		{
			name:        "anonymous child reader is capped at the fork",
			branchID:    child.ID,
			progress:    entities.AnonymousProgress(),
			wantContent: "Aria as of chapter 10",
		},
		{
			name:        "main reader sees later revisions",
			branchID:    main.ID,
			progress:    entities.KnownProgress(20),
			wantContent: "Aria as of chapter 15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.visibility.ResolveInBranch(ctx, "", tt.branchID, aria.ID, tt.progress)
			require.NoError(t, err)
			require.Equal(t, ResolutionVisible, view.Resolution.State)
			assert.Equal(t, tt.wantContent, view.Resolution.Snapshot.Content)
			assert.Equal(t, tt.wantRedact, view.Resolution.Redact)
		})
	}
}

func TestVisibilityService_NestedForks(t *testing.T) {
	type lookup struct {
		entry       string
		wantContent string
		wantErr     error
	}

	tests := []struct {
		name         string
		grandchildAt int
		lookups      []lookup
		wantListed   []string
	}{
		{
			name:         "grandchild leaves before the child's fork point",
			grandchildAt: 5,
			lookups: []lookup{
				{entry: "Aria", wantContent: "Aria as of chapter 1"},
				{entry: "Bran", wantContent: "Bran as of chapter 3"},
				{entry: "Late", wantErr: entities.ErrEntryNotInLineage},
				{entry: "Cole", wantErr: entities.ErrEntryNotInLineage},
			},
			wantListed: []string{"Aria", "Bran", "Dale"},
		},
		{
			name:         "grandchild leaves after the child's fork point",
			grandchildAt: 15,
			lookups: []lookup{
				{entry: "Aria", wantContent: "Aria as of chapter 10"},
				{entry: "Bran", wantContent: "Bran as of chapter 3"},
				{entry: "Late", wantContent: "Late as of chapter 8"},
				{entry: "Cole", wantContent: "Cole as of chapter 13"},
			},
			wantListed: []string{"Aria", "Bran", "Cole", "Dale", "Late"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			_, main := f.seedWork(t, 20)
			child := f.fork(t, reader, main.ID, 12)
			f.publish(t, reader, child.ID, 6)
			grandchild := f.fork(t, "fan", child.ID, tt.grandchildAt)

			ids := map[string]string{
				"Aria": f.entry(t, main.ID, "Aria", nil, 1, 10, 14).ID,
				"Late": f.entry(t, main.ID, "Late", intPtr(8), 8).ID,
				"Bran": f.entry(t, child.ID, "Bran", nil, 3).ID,
				"Cole": f.entry(t, child.ID, "Cole", nil, 13, 16).ID,
				"Dale": f.entry(t, grandchild.ID, "Dale", nil, 1).ID,
			}

			for _, l := range tt.lookups {
				view, err := f.visibility.ResolveInBranch(ctx, "", grandchild.ID, ids[l.entry], entities.KnownProgress(20))
				if l.wantErr != nil {
					require.ErrorIs(t, err, l.wantErr, l.entry)
					continue
				}
				require.NoError(t, err, l.entry)
				require.Equal(t, ResolutionVisible, view.Resolution.State, l.entry)
				assert.Equal(t, l.wantContent, view.Resolution.Snapshot.Content)
			}

			views, err := f.visibility.ListVisibleEntries(ctx, "", grandchild.ID, entities.KnownProgress(20), "")
			require.NoError(t, err)
			names := make([]string, len(views))
			for i, v := range views {
				names[i] = v.Entry.Name
			}
			assert.Equal(t, tt.wantListed, names)
		})
	}
}

func TestVisibilityService_ResolveInBranch_OutsideLineage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 20)
	child := f.fork(t, reader, main.ID, 12)
	sibling := f.fork(t, "other", main.ID, 3)

	late := f.entry(t, main.ID, "Late", intPtr(15), 15)
	afterFork := f.entry(t, main.ID, "After Fork", nil, 14)
	siblingOnly := f.entry(t, sibling.ID, "Sibling Only", nil, 4)

	for name, entryID := range map[string]string{
		"first appearance after the fork": late.ID,
		"content only after the fork":     afterFork.ID,
		"entry of a sibling branch":       siblingOnly.ID,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.visibility.ResolveInBranch(ctx, reader, child.ID, entryID, entities.KnownProgress(20))
			require.ErrorIs(t, err, entities.ErrEntryNotInLineage)
			assert.ErrorIs(t, err, entities.ErrNotFound)
		})
	}

	_, err := f.visibility.ResolveInBranch(ctx, reader, child.ID, "missing", entities.AnonymousProgress())
	require.ErrorIs(t, err, entities.ErrEntryNotFound)
	_, err = f.visibility.ResolveInBranch(ctx, reader, "missing", late.ID, entities.AnonymousProgress())
	require.ErrorIs(t, err, entities.ErrBranchNotFound)
}

func TestVisibilityService_ResolveInBranch_MergedChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 10)
	merged := f.candidate(t, main.ID)
	_, err := f.promotion.Merge(ctx, author, merged.ID)
	require.NoError(t, err)
	bran := f.entry(t, merged.ID, "Bran", nil, 3)

	view, err := f.visibility.ResolveInBranch(ctx, "", main.ID, bran.ID, entities.KnownProgress(5))
	require.NoError(t, err)
	assert.Equal(t, ResolutionVisible, view.Resolution.State)
	assert.Equal(t, "Bran as of chapter 3", view.Resolution.Snapshot.Content)

	laterFork := f.fork(t, "x", main.ID, 4)
	view, err = f.visibility.ResolveInBranch(ctx, "", laterFork.ID, bran.ID, entities.KnownProgress(9))
	require.NoError(t, err)
	assert.Equal(t, "Bran as of chapter 3", view.Resolution.Snapshot.Content)

	earlierFork := f.fork(t, "x", main.ID, 1)
	_, err = f.visibility.ResolveInBranch(ctx, "", earlierFork.ID, bran.ID, entities.KnownProgress(9))
	require.ErrorIs(t, err, entities.ErrEntryNotInLineage)

	views, err := f.visibility.ListVisibleEntries(ctx, "", main.ID, entities.AnonymousProgress(), "")
	require.NoError(t, err)
	assert.Empty(t, views, "merged children are resolved by ID, not listed")
}

func TestVisibilityService_ListVisibleEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 10)
	f.entry(t, main.ID, "Aria", nil, 1)
	f.entry(t, main.ID, "Cole", intPtr(7), 7)
	f.entry(t, main.ID, "Zed", nil, 2)
	child := f.fork(t, reader, main.ID, 5)
	f.entry(t, child.ID, "ARIA", nil, 6)

	names := func(views []EntryView) []string {
		out := make([]string, len(views))
		for i, v := range views {
			out[i] = v.Entry.Name
		}
		return out
	}

	tests := []struct {
		name     string
		branchID string
		progress entities.ReaderProgress
		want     []string
	}{
		{name: "main before an appearance", branchID: main.ID, progress: entities.KnownProgress(5), want: []string{"Aria", "Zed"}},
		{name: "main after an appearance", branchID: main.ID, progress: entities.KnownProgress(7), want: []string{"Aria", "Cole", "Zed"}},
		{name: "main anonymous", branchID: main.ID, progress: entities.AnonymousProgress(), want: []string{"Aria", "Cole", "Zed"}},
		{name: "child shadows by name", branchID: child.ID, progress: entities.KnownProgress(9), want: []string{"ARIA", "Zed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, err := f.visibility.ListVisibleEntries(ctx, "", tt.branchID, tt.progress, "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(views))
		})
	}

	views, err := f.visibility.ListVisibleEntries(ctx, "", child.ID, entities.KnownProgress(9), "")
	require.NoError(t, err)
	assert.Equal(t, child.ID, views[0].Entry.BranchID)
	assert.Equal(t, "ARIA as of chapter 6", views[0].Resolution.Snapshot.Content)
}

func TestVisibilityService_ListVisibleEntries_ByTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 10)
	tag, err := f.wiki.CreateTag(ctx, author, main.ID, TagInput{Name: "character"})
	require.NoError(t, err)

	aria := f.entry(t, main.ID, "Aria", nil, 1)
	f.entry(t, main.ID, "Harbor", nil, 1)
	_, err = f.wiki.SetTags(ctx, author, aria.ID, []string{tag.ID})
	require.NoError(t, err)

	child := f.fork(t, reader, main.ID, 5)
	views, err := f.visibility.ListVisibleEntries(ctx, "", child.ID, entities.AnonymousProgress(), tag.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Aria", views[0].Entry.Name)
	require.Len(t, views[0].Entry.Tags, 1)
	assert.Equal(t, "character", views[0].Entry.Tags[0].Name)
}

func TestVisibilityService_Resolve_Spoiler(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 10)
	traitor := f.entry(t, main.ID, "The Traitor", intPtr(8), 8)

	tests := []struct {
		name       string
		progress   entities.ReaderProgress
		wantState  ResolutionState
		wantGated  bool
		wantReason GateReason
	}{
		{name: "before the reveal", progress: entities.KnownProgress(5), wantState: ResolutionNotYetRevealed, wantGated: true, wantReason: GateNotReached},
		{name: "at the reveal", progress: entities.KnownProgress(8), wantState: ResolutionVisible, wantReason: GateReached},
		{name: "progress unavailable", progress: entities.UnavailableProgress(), wantState: ResolutionVisible, wantGated: true, wantReason: GateProgressUnavailable},
		{name: "anonymous", progress: entities.AnonymousProgress(), wantState: ResolutionVisible, wantReason: GateAnonymous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view, err := f.visibility.Resolve(ctx, reader, traitor.ID, tt.progress)
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, view.Resolution.State)
			assert.Equal(t, tt.wantGated, view.Spoiler.Gated)
			assert.Equal(t, tt.wantReason, view.Spoiler.Reason)
		})
	}
}

func TestVisibilityService_HiddenNote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 3)
	vault, err := f.wiki.CreateEntry(ctx, author, EntryInput{
		BranchID:   main.ID,
		Name:       "Vault",
		HiddenNote: "opens in chapter 9",
		Content:    "A sealed door.",
	})
	require.NoError(t, err)

	for actor, want := range map[string]string{
		author: "opens in chapter 9",
		reader: "",
		"":     "",
	} {
		view, err := f.visibility.Resolve(ctx, actor, vault.ID, entities.AnonymousProgress())
		require.NoError(t, err)
		assert.Equal(t, want, view.Entry.HiddenNote, "actor %q", actor)

		views, err := f.visibility.ListVisibleEntries(ctx, actor, main.ID, entities.AnonymousProgress(), "")
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, want, views[0].Entry.HiddenNote, "actor %q", actor)
	}
}

func TestVisibilityService_Resolve_DeletedBranch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, main := f.seedWork(t, 3)
	child := f.fork(t, reader, main.ID, 1)
	entry := f.entry(t, child.ID, "Ghost", nil, 1)
	require.NoError(t, f.branches.Delete(ctx, reader, child.ID))

	_, err := f.visibility.Resolve(ctx, reader, entry.ID, entities.AnonymousProgress())
	require.ErrorIs(t, err, entities.ErrEntryNotFound)
	_, err = f.visibility.Resolve(ctx, reader, "missing", entities.AnonymousProgress())
	require.ErrorIs(t, err, entities.ErrEntryNotFound)
}

func TestVisibilityService_ReaderProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, _ := f.seedWork(t, 10)
	require.NoError(t, f.works.RecordProgress(ctx, reader, work.ID, 6))

	tests := []struct {
		name    string
		svc     *VisibilityService
		userID  string
		asOf    *int
		want    entities.ReaderProgress
		wantErr error
	}{
		{name: "explicit chapter wins", svc: f.visibility, userID: reader, asOf: intPtr(4), want: entities.KnownProgress(4)},
		{name: "explicit chapter zero", svc: f.visibility, asOf: intPtr(0), want: entities.KnownProgress(0)},
		{name: "negative chapter", svc: f.visibility, asOf: intPtr(-1), wantErr: entities.ErrInvalidInput},
		{name: "anonymous reader", svc: f.visibility, want: entities.AnonymousProgress()},
		{name: "recorded progress", svc: f.visibility, userID: reader, want: entities.KnownProgress(6)},
		{name: "nothing recorded", svc: f.visibility, userID: "newcomer", want: entities.AnonymousProgress()},
		{
			name:   "lookup failure degrades",
			svc:    NewVisibilityService(f.db, &mocks.ProgressSource{Err: errors.New("timeout")}, nil),
			userID: reader,
			want:   entities.UnavailableProgress(),
		},
		{name: "no progress source", svc: NewVisibilityService(f.db, nil, nil), userID: reader, want: entities.AnonymousProgress()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.svc.ReaderProgress(ctx, tt.userID, work.ID, tt.asOf)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStoredProgress_StoreError(t *testing.T) {
	db := mocks.NewRelationalDB()
	db.Err = errors.New("closed")

	got, err := NewStoredProgress(db).Progress(context.Background(), reader, "w")
	require.Error(t, err)
	assert.Equal(t, entities.UnavailableProgress(), got)
}

func TestVisibilityService_EntryWorkID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	work, main := f.seedWork(t, 3)
	aria := f.entry(t, main.ID, "Aria", nil, 0)

	workID, err := f.visibility.EntryWorkID(ctx, aria.ID)
	require.NoError(t, err)
	assert.Equal(t, work.ID, workID)

	_, err = f.visibility.EntryWorkID(ctx, "missing")
	assert.ErrorIs(t, err, entities.ErrEntryNotFound)
}
