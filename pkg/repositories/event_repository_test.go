//go:build integration

package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/eventpath"
	"github.com/ekaya-inc/finmon/pkg/models"
)

func TestEventRepository_CreateAndGet(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)
	a := f.child(root, "A", models.EventTypeFolder)

	got, err := f.events.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, eventpath.Child(root.Path, a.ID.String()), got.Path)
	assert.Equal(t, 1, got.Depth, "depth is generated from the path")
	assert.Equal(t, root.ID, *got.ParentID)
	assert.Equal(t, models.EventTypeFolder, got.EventType)
	assert.NotNil(t, got.Extra)

	gotRoot, err := f.events.GetRoot(f.ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, gotRoot.ID)
	assert.Equal(t, 0, gotRoot.Depth)

	_, err = f.events.Get(f.ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEventRepository_Create_SecondRootIsInvalidState(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	f.root(project.ID)

	id := uuid.New()
	err := f.events.Create(f.ctx, &models.ProjectEvent{
		ID:        id,
		ProjectID: project.ID,
		Name:      "second",
		EventType: models.EventTypeFolder,
		Path:      eventpath.Root(id.String()),
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
}

func TestEventRepository_Create_UnknownParent(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)

	id := uuid.New()
	missing := uuid.New()
	err := f.events.Create(f.ctx, &models.ProjectEvent{
		ID:        id,
		ProjectID: project.ID,
		ParentID:  &missing,
		Name:      "orphan",
		EventType: models.EventTypeFile,
		Path:      eventpath.Child(root.Path, id.String()),
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEventRepository_ListByProject_ParentsFirst(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)
	a := f.child(root, "A", models.EventTypeFolder)
	b := f.child(a, "B", models.EventTypeFolder)
	f.child(b, "F", models.EventTypeFile)
	f.child(root, "G", models.EventTypeFile)

	events, err := f.events.ListByProject(f.ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, events, 5)

	seen := map[uuid.UUID]bool{}
	for _, ev := range events {
		if ev.ParentID != nil {
			assert.True(t, seen[*ev.ParentID], "parent of %s must come first", ev.Name)
		}
		seen[ev.ID] = true
	}
}

func TestEventRepository_List_FilterAndPage(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)
	f.child(root, "Catering", models.EventTypeFile)
	f.child(root, "Venue", models.EventTypeFile)
	f.child(root, "Logistics", models.EventTypeFolder)

	files, total, err := f.events.List(f.ctx, project.ID, models.EventFilter{
		ListOptions: models.ListOptions{Page: 1, Limit: 1, Sort: "name", Order: "asc"},
		EventType:   models.EventTypeFile,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, files, 1)
	assert.Equal(t, "Catering", files[0].Name)

	found, total, err := f.events.List(f.ctx, project.ID, models.EventFilter{
		ListOptions: models.ListOptions{Page: 1, Limit: 10, Search: "venu"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Venue", found[0].Name)
}

func TestEventRepository_Update(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)
	a := f.child(root, "A", models.EventTypeFolder)

	a.Name = "Renamed"
	a.Note = "check with vendor"
	a.Extra = map[string]any{"color": "red"}
	require.NoError(t, f.events.Update(f.ctx, a))

	got, err := f.events.Get(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "check with vendor", got.Note)
	assert.Equal(t, "red", got.Extra["color"])
	assert.Equal(t, a.Path, got.Path, "metadata updates never move the event")

	assert.ErrorIs(t, f.events.Update(f.ctx, &models.ProjectEvent{ID: uuid.New()}), apperrors.ErrNotFound)
}

func TestEventRepository_DeleteSubtree(t *testing.T) {
	f := newRepoFixture(t)
	project := f.project("Expo")
	root := f.root(project.ID)
	a := f.child(root, "A", models.EventTypeFolder)
	b := f.child(a, "B", models.EventTypeFolder)
	file := f.file(b, "F", "USD", "10", "0")
	sibling := f.file(root, "G", "USD", "5", "0")

	n, err := f.events.DeleteSubtree(f.ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for _, id := range []uuid.UUID{a.ID, b.ID, file.ID} {
		_, err := f.events.Get(f.ctx, id)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	}
	_, err = f.costs.GetFileCost(f.ctx, file.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.events.Get(f.ctx, sibling.ID)
	assert.NoError(t, err)
	_, err = f.costs.GetFileCost(f.ctx, sibling.ID)
	assert.NoError(t, err)
}
