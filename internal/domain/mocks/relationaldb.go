package mocks

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ersonp/forklore-core/internal/domain/entities"
)

// RelationalDB is an in-memory implementation of ports.RelationalDB. It
// enforces the same invariants as the SQL store so services can be tested
// without a database. Setting Err makes every method fail.
type RelationalDB struct {
	mu sync.Mutex

	Works     map[string]*entities.Work
	Branches  map[string]*entities.Branch
	Votes     map[[2]string]bool // (user, branch)
	Entries   map[string]*entities.WikiEntry
	Snapshots map[string][]entities.WikiSnapshot // entry -> ascending
	Tags      map[string]*entities.TagDefinition
	EntryTags map[string][]string
	Links     map[string]*entities.LinkRequest
	Progress  map[[2]string]int // (user, work)
	Audit     []entities.AuditEntry

	Err error

	// Call tracking
	ListSnapshotsCallCount int
}

// NewRelationalDB creates a new mock RelationalDB.
func NewRelationalDB() *RelationalDB {
	return &RelationalDB{
		Works:     make(map[string]*entities.Work),
		Branches:  make(map[string]*entities.Branch),
		Votes:     make(map[[2]string]bool),
		Entries:   make(map[string]*entities.WikiEntry),
		Snapshots: make(map[string][]entities.WikiSnapshot),
		Tags:      make(map[string]*entities.TagDefinition),
		EntryTags: make(map[string][]string),
		Links:     make(map[string]*entities.LinkRequest),
		Progress:  make(map[[2]string]int),
	}
}

// EnsureSchema is a no-op.
func (m *RelationalDB) EnsureSchema(_ context.Context) error {
	return m.Err
}

// Close is a no-op.
func (m *RelationalDB) Close() error {
	return nil
}

// Work methods.

// CreateWork stores a work and its main branch.
func (m *RelationalDB) CreateWork(_ context.Context, work *entities.Work, main *entities.Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	w := *work
	b := *main
	m.Works[w.ID] = &w
	m.Branches[b.ID] = &b
	return nil
}

// FindWork returns a copy of a work with its main branch's chapter count.
func (m *RelationalDB) FindWork(_ context.Context, workID string) (*entities.Work, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	w, ok := m.Works[workID]
	if !ok {
		return nil, nil
	}
	work := *w
	if main := m.mainBranch(workID); main != nil {
		work.ChapterCount = main.ChapterCount
	}
	return &work, nil
}

// SetAllowBranching opens or closes a work to new forks.
func (m *RelationalDB) SetAllowBranching(_ context.Context, workID string, allow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	w, ok := m.Works[workID]
	if !ok {
		return entities.ErrWorkNotFound
	}
	w.AllowBranching = allow
	return nil
}

// Branch methods.

// FindBranch returns a copy of a branch.
func (m *RelationalDB) FindBranch(_ context.Context, branchID string) (*entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok {
		return nil, nil
	}
	branch := *b
	return &branch, nil
}

// FindMainBranch returns a copy of a work's root branch.
func (m *RelationalDB) FindMainBranch(_ context.Context, workID string) (*entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	main := m.mainBranch(workID)
	if main == nil {
		return nil, nil
	}
	branch := *main
	return &branch, nil
}

func (m *RelationalDB) mainBranch(workID string) *entities.Branch {
	for _, b := range m.Branches {
		if b.WorkID == workID && b.IsRoot() {
			return b
		}
	}
	return nil
}

// CreateBranch validates and stores a child branch.
func (m *RelationalDB) CreateBranch(_ context.Context, branch *entities.Branch, dedupSince time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if branch.ParentID == nil {
		return entities.ErrParentNotFound
	}
	parent, ok := m.Branches[*branch.ParentID]
	if !ok || parent.IsDeleted() || parent.WorkID != branch.WorkID {
		return entities.ErrParentNotFound
	}
	if w, ok := m.Works[branch.WorkID]; ok && !w.AllowBranching {
		return entities.ErrBranchingDisabled
	}
	if fp := branch.ForkPoint(); fp < 1 || fp > parent.ChapterCount {
		return entities.ErrInvalidForkPoint
	}
	for _, b := range m.Branches {
		if b.ParentID != nil && *b.ParentID == parent.ID && b.ForkPoint() == branch.ForkPoint() &&
			b.AuthorID == branch.AuthorID && !b.CreatedAt.Before(dedupSince) && !b.IsDeleted() {
			return entities.ErrConcurrentForkConflict
		}
	}
	branch.ChapterCount = branch.ForkPoint()
	b := *branch
	m.Branches[b.ID] = &b
	if w, ok := m.Works[b.WorkID]; ok {
		w.BranchCount++
	}
	return nil
}

// ListBranches returns a work's live branches filtered and ordered like the
// SQL store.
func (m *RelationalDB) ListBranches(_ context.Context, workID string, filter entities.BranchFilter) iter.Seq2[entities.Branch, error] {
	return func(yield func(entities.Branch, error) bool) {
		m.mu.Lock()
		if m.Err != nil {
			err := m.Err
			m.mu.Unlock()
			yield(entities.Branch{}, err)
			return
		}
		var matched []entities.Branch
		for _, b := range m.Branches {
			if b.WorkID != workID || b.IsDeleted() || !matchesFilter(b, filter) {
				continue
			}
			matched = append(matched, *b)
		}
		m.mu.Unlock()

		slices.SortFunc(matched, branchOrder(filter.Sort))
		if filter.Limit > 0 && len(matched) > filter.Limit {
			matched = matched[:filter.Limit]
		}
		for _, b := range matched {
			if !yield(b, nil) {
				return
			}
		}
	}
}

func matchesFilter(b *entities.Branch, f entities.BranchFilter) bool {
	if f.Kind != "" && b.Kind != f.Kind {
		return false
	}
	if f.CanonStatus != "" && b.CanonStatus != f.CanonStatus {
		return false
	}
	if f.Visibility != "" && b.Visibility != f.Visibility {
		return false
	}
	if f.ForkPointChapter != nil && (b.ForkPointChapter == nil || *b.ForkPointChapter != *f.ForkPointChapter) {
		return false
	}
	return true
}

func branchOrder(sort entities.BranchSort) func(a, b entities.Branch) int {
	return func(a, b entities.Branch) int {
		switch sort {
		case entities.SortByNewest:
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
		case entities.SortByOldest:
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		default:
			if a.VoteCount != b.VoteCount {
				return b.VoteCount - a.VoteCount
			}
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	}
}

// FindAncestry walks parent links up to the root.
func (m *RelationalDB) FindAncestry(_ context.Context, branchID string) ([]entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var chain []entities.Branch
	id := branchID
	for depth := 0; depth < 256; depth++ {
		b, ok := m.Branches[id]
		if !ok {
			break
		}
		chain = append(chain, *b)
		if b.ParentID == nil {
			break
		}
		id = *b.ParentID
	}
	return chain, nil
}

// FindMergedChildren returns live MERGED children of parentID.
func (m *RelationalDB) FindMergedChildren(_ context.Context, parentID string) ([]entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var children []entities.Branch
	for _, b := range m.Branches {
		if b.ParentID != nil && *b.ParentID == parentID && b.CanonStatus == entities.CanonMerged && !b.IsDeleted() {
			children = append(children, *b)
		}
	}
	slices.SortFunc(children, branchOrder(entities.SortByOldest))
	return children, nil
}

// UpdateBranch applies an update with a version check.
func (m *RelationalDB) UpdateBranch(_ context.Context, branchID string, update entities.BranchUpdate) (*entities.Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	if update.ExpectedVersion != nil && *update.ExpectedVersion != b.Version {
		return nil, entities.ErrVersionConflict
	}
	if update.Name != nil {
		b.Name = *update.Name
	}
	if update.Description != nil {
		b.Description = *update.Description
	}
	b.Version++
	branch := *b
	return &branch, nil
}

// SetBranchVisibility changes a live branch's visibility.
func (m *RelationalDB) SetBranchVisibility(_ context.Context, branchID string, visibility entities.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() {
		return entities.ErrBranchNotFound
	}
	m.adjustLinkedCount(b.WorkID, b.Visibility, visibility)
	b.Visibility = visibility
	b.Version++
	return nil
}

func (m *RelationalDB) adjustLinkedCount(workID string, prev, next entities.Visibility) {
	w, ok := m.Works[workID]
	if !ok {
		return
	}
	switch {
	case prev != entities.VisibilityLinked && next == entities.VisibilityLinked:
		w.LinkedBranchCount++
	case prev == entities.VisibilityLinked && next != entities.VisibilityLinked && w.LinkedBranchCount > 0:
		w.LinkedBranchCount--
	}
}

// SoftDeleteBranch marks a non-root branch deleted.
func (m *RelationalDB) SoftDeleteBranch(_ context.Context, branchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() || b.IsRoot() {
		return entities.ErrBranchNotFound
	}
	now := time.Now().UTC()
	b.DeletedAt = &now
	return nil
}

// IncrementChapterCount adds a chapter to a live branch.
func (m *RelationalDB) IncrementChapterCount(_ context.Context, branchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() {
		return 0, entities.ErrBranchNotFound
	}
	b.ChapterCount++
	return b.ChapterCount, nil
}

// TransitionCanon moves a non-root branch whose status is in from.
func (m *RelationalDB) TransitionCanon(_ context.Context, branchID string, from []entities.CanonStatus, next entities.CanonStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() || b.IsRoot() || !slices.Contains(from, b.CanonStatus) {
		return false, nil
	}
	b.CanonStatus = next
	return true, nil
}

// MergeBranch merges and links a CANDIDATE branch and approves its pending
// link request.
func (m *RelationalDB) MergeBranch(_ context.Context, branchID string, review entities.LinkReview) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if !m.merge(branchID) {
		return false, nil
	}
	for _, req := range m.Links {
		if req.BranchID == branchID && req.Status == entities.LinkPending {
			closeLinkRequest(req, entities.LinkReview{
				Status:     entities.LinkApproved,
				ReviewerID: review.ReviewerID,
				Comment:    review.Comment,
				ReviewedAt: review.ReviewedAt,
			})
		}
	}
	return true, nil
}

func (m *RelationalDB) merge(branchID string) bool {
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() || b.IsRoot() || b.CanonStatus != entities.CanonCandidate {
		return false
	}
	b.CanonStatus = entities.CanonMerged
	m.adjustLinkedCount(b.WorkID, b.Visibility, entities.VisibilityLinked)
	b.Visibility = entities.VisibilityLinked
	b.Version++
	return true
}

// PromoteIfThresholdMet promotes a NON_CANON branch at threshold.
func (m *RelationalDB) PromoteIfThresholdMet(_ context.Context, branchID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() || b.CanonStatus != entities.CanonNonCanon || b.VoteCount < b.VoteThreshold {
		return false, nil
	}
	b.CanonStatus = entities.CanonCandidate
	return true, nil
}

// Vote methods.

// ToggleVote flips a vote.
func (m *RelationalDB) ToggleVote(_ context.Context, userID, branchID string) (*entities.VoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, err := m.liveBranch(branchID)
	if err != nil {
		return nil, err
	}
	key := [2]string{userID, branchID}
	if m.Votes[key] {
		delete(m.Votes, key)
		if b.VoteCount > 0 {
			b.VoteCount--
		}
	} else {
		m.Votes[key] = true
		b.VoteCount++
	}
	return m.voteState(userID, b), nil
}

// CastVote adds a vote if absent.
func (m *RelationalDB) CastVote(_ context.Context, userID, branchID string) (*entities.VoteResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	b, err := m.liveBranch(branchID)
	if err != nil {
		return nil, false, err
	}
	key := [2]string{userID, branchID}
	if m.Votes[key] {
		return m.voteState(userID, b), false, nil
	}
	m.Votes[key] = true
	b.VoteCount++
	return m.voteState(userID, b), true, nil
}

// WithdrawVote removes a vote if present.
func (m *RelationalDB) WithdrawVote(_ context.Context, userID, branchID string) (*entities.VoteResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, false, m.Err
	}
	b, err := m.liveBranch(branchID)
	if err != nil {
		return nil, false, err
	}
	key := [2]string{userID, branchID}
	if !m.Votes[key] {
		return m.voteState(userID, b), false, nil
	}
	delete(m.Votes, key)
	if b.VoteCount > 0 {
		b.VoteCount--
	}
	return m.voteState(userID, b), true, nil
}

// FindVoteState returns the vote state.
func (m *RelationalDB) FindVoteState(_ context.Context, userID, branchID string) (*entities.VoteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	b, err := m.liveBranch(branchID)
	if err != nil {
		return nil, err
	}
	return m.voteState(userID, b), nil
}

// CountVotes counts vote rows for a branch.
func (m *RelationalDB) CountVotes(_ context.Context, branchID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for key := range m.Votes {
		if key[1] == branchID {
			count++
		}
	}
	return count, nil
}

func (m *RelationalDB) liveBranch(branchID string) (*entities.Branch, error) {
	b, ok := m.Branches[branchID]
	if !ok || b.IsDeleted() {
		return nil, entities.ErrBranchNotFound
	}
	return b, nil
}

func (m *RelationalDB) voteState(userID string, b *entities.Branch) *entities.VoteResult {
	return &entities.VoteResult{
		BranchID:    b.ID,
		Voted:       m.Votes[[2]string{userID, b.ID}],
		VoteCount:   b.VoteCount,
		CanonStatus: b.CanonStatus,
	}
}

// Wiki methods.

// CreateEntry stores an entry, an optional first snapshot and its tags.
// Nothing is stored when a tag is unknown.
func (m *RelationalDB) CreateEntry(_ context.Context, entry *entities.WikiEntry, initial *entities.WikiSnapshot, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, e := range m.Entries {
		if e.BranchID == entry.BranchID && e.Name == entry.Name {
			return entities.ErrDuplicateEntry
		}
	}
	if err := m.checkTags(entry.BranchID, tagIDs); err != nil {
		return err
	}
	e := *entry
	m.Entries[e.ID] = &e
	if initial != nil {
		m.Snapshots[e.ID] = []entities.WikiSnapshot{*initial}
	}
	if len(tagIDs) > 0 {
		m.EntryTags[e.ID] = slices.Clone(tagIDs)
	}
	return nil
}

// FindEntry returns a copy of an entry with its tags.
func (m *RelationalDB) FindEntry(_ context.Context, entryID string) (*entities.WikiEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	e, ok := m.Entries[entryID]
	if !ok {
		return nil, nil
	}
	return m.withTags(e), nil
}

// FindEntryByName returns an entry by branch and name.
func (m *RelationalDB) FindEntryByName(_ context.Context, branchID, name string) (*entities.WikiEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	for _, e := range m.Entries {
		if e.BranchID == branchID && e.Name == name {
			return m.withTags(e), nil
		}
	}
	return nil, nil
}

// ListEntries lists a branch's entries by name, optionally by tag.
func (m *RelationalDB) ListEntries(_ context.Context, branchID, tagID string) ([]entities.WikiEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var entries []entities.WikiEntry
	for _, e := range m.Entries {
		if e.BranchID != branchID {
			continue
		}
		if tagID != "" && !slices.Contains(m.EntryTags[e.ID], tagID) {
			continue
		}
		entries = append(entries, *m.withTags(e))
	}
	slices.SortFunc(entries, func(a, b entities.WikiEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return entries, nil
}

// AppendSnapshot adds a snapshot, rejecting duplicate chapters.
func (m *RelationalDB) AppendSnapshot(_ context.Context, snapshot *entities.WikiSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.Entries[snapshot.EntryID]; !ok {
		return entities.ErrEntryNotFound
	}
	existing := m.Snapshots[snapshot.EntryID]
	for _, s := range existing {
		if s.ValidFromChapter == snapshot.ValidFromChapter {
			return entities.ErrDuplicateSnapshot
		}
	}
	existing = append(existing, *snapshot)
	slices.SortFunc(existing, func(a, b entities.WikiSnapshot) int {
		return a.ValidFromChapter - b.ValidFromChapter
	})
	m.Snapshots[snapshot.EntryID] = existing
	return nil
}

// ListSnapshots returns a copy of an entry's snapshots, ascending.
func (m *RelationalDB) ListSnapshots(_ context.Context, entryID string) ([]entities.WikiSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListSnapshotsCallCount++
	if m.Err != nil {
		return nil, m.Err
	}
	return slices.Clone(m.Snapshots[entryID]), nil
}

// CreateTag stores a tag, rejecting duplicate names per branch.
func (m *RelationalDB) CreateTag(_ context.Context, tag *entities.TagDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, t := range m.Tags {
		if t.BranchID == tag.BranchID && t.Name == tag.Name {
			return entities.ErrDuplicateTag
		}
	}
	t := *tag
	m.Tags[t.ID] = &t
	return nil
}

// ListTags lists a branch's tags by display order.
func (m *RelationalDB) ListTags(_ context.Context, branchID string) ([]entities.TagDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var tags []entities.TagDefinition
	for _, t := range m.Tags {
		if t.BranchID == branchID {
			tags = append(tags, *t)
		}
	}
	slices.SortFunc(tags, compareTags)
	return tags, nil
}

// SetEntryTags replaces an entry's tags.
func (m *RelationalDB) SetEntryTags(_ context.Context, entryID string, tagIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	e, ok := m.Entries[entryID]
	if !ok {
		return entities.ErrEntryNotFound
	}
	if err := m.checkTags(e.BranchID, tagIDs); err != nil {
		return err
	}
	m.EntryTags[entryID] = slices.Clone(tagIDs)
	return nil
}

func (m *RelationalDB) checkTags(branchID string, tagIDs []string) error {
	for _, id := range tagIDs {
		t, ok := m.Tags[id]
		if !ok || t.BranchID != branchID {
			return entities.ErrTagNotFound
		}
	}
	return nil
}

func (m *RelationalDB) withTags(e *entities.WikiEntry) *entities.WikiEntry {
	entry := *e
	entry.Tags = nil
	for _, id := range m.EntryTags[e.ID] {
		if t, ok := m.Tags[id]; ok {
			entry.Tags = append(entry.Tags, *t)
		}
	}
	slices.SortFunc(entry.Tags, compareTags)
	return &entry
}

func compareTags(a, b entities.TagDefinition) int {
	if a.DisplayOrder != b.DisplayOrder {
		return a.DisplayOrder - b.DisplayOrder
	}
	return strings.Compare(a.Name, b.Name)
}

// Link request methods.

// CreateLinkRequest stores a pending request, one per branch.
func (m *RelationalDB) CreateLinkRequest(_ context.Context, req *entities.LinkRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, existing := range m.Links {
		if existing.BranchID == req.BranchID && existing.Status == entities.LinkPending {
			return entities.ErrPendingLinkRequest
		}
	}
	r := *req
	m.Links[r.ID] = &r
	return nil
}

// FindLinkRequest returns a copy of a request.
func (m *RelationalDB) FindLinkRequest(_ context.Context, requestID string) (*entities.LinkRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	req, ok := m.Links[requestID]
	if !ok {
		return nil, nil
	}
	r := *req
	return &r, nil
}

// ListLinkRequests lists matching requests newest first.
func (m *RelationalDB) ListLinkRequests(_ context.Context, filter entities.LinkRequestFilter) ([]entities.LinkRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.LinkRequest
	for _, req := range m.Links {
		if (filter.WorkID != "" && req.WorkID != filter.WorkID) ||
			(filter.BranchID != "" && req.BranchID != filter.BranchID) ||
			(filter.Status != "" && req.Status != filter.Status) {
			continue
		}
		out = append(out, *req)
	}
	slices.SortFunc(out, func(a, b entities.LinkRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

// ReviewLinkRequest closes a pending request, merging the branch on approval.
func (m *RelationalDB) ReviewLinkRequest(_ context.Context, requestID string, review entities.LinkReview) (*entities.LinkRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	req, ok := m.Links[requestID]
	if !ok {
		return nil, entities.ErrLinkRequestNotFound
	}
	if req.Status != entities.LinkPending {
		return nil, entities.ErrLinkRequestClosed
	}
	if review.Status == entities.LinkApproved && !m.merge(req.BranchID) {
		return nil, entities.ErrInvalidTransition
	}
	closeLinkRequest(req, review)
	r := *req
	return &r, nil
}

func closeLinkRequest(req *entities.LinkRequest, review entities.LinkReview) {
	reviewedAt := review.ReviewedAt
	req.Status = review.Status
	req.ReviewerID = review.ReviewerID
	req.ReviewComment = review.Comment
	req.ReviewedAt = &reviewedAt
}

// Progress methods.

// RecordProgress raises stored progress.
func (m *RelationalDB) RecordProgress(_ context.Context, userID, workID string, chapter int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := [2]string{userID, workID}
	if current, ok := m.Progress[key]; !ok || chapter > current {
		m.Progress[key] = chapter
	}
	return nil
}

// FindProgress returns stored progress.
func (m *RelationalDB) FindProgress(_ context.Context, userID, workID string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, false, m.Err
	}
	chapter, ok := m.Progress[[2]string{userID, workID}]
	return chapter, ok, nil
}

// Audit log methods.

// LogAction appends an audit entry.
func (m *RelationalDB) LogAction(_ context.Context, action, actorID, subjectID string, details map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Audit = append(m.Audit, entities.AuditEntry{
		ID:        int64(len(m.Audit) + 1),
		Action:    action,
		ActorID:   actorID,
		SubjectID: subjectID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// FindAuditLog returns entries for a subject, newest first.
func (m *RelationalDB) FindAuditLog(_ context.Context, subjectID string) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].SubjectID == subjectID {
			out = append(out, m.Audit[i])
		}
	}
	return out, nil
}

// FindAuditLogByAction returns entries for an action, newest first.
func (m *RelationalDB) FindAuditLogByAction(_ context.Context, action string, limit int) ([]entities.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var out []entities.AuditEntry
	for i := len(m.Audit) - 1; i >= 0; i-- {
		if m.Audit[i].Action == action {
			out = append(out, m.Audit[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
