package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/models"
)

func TestProjectService_Create_AddsRootFolder(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()

	project, err := env.projects.Create(context.Background(), owner, &models.Project{Name: "  Expo 2026 "})
	require.NoError(t, err)

	assert.Equal(t, "Expo 2026", project.Name)
	assert.Equal(t, owner, project.UserID)
	assert.Equal(t, models.ProjectStatusDraft, project.Status)
	assert.Equal(t, models.ProjectTypeProject, project.Type)
	assert.Equal(t, 1, env.uow.calls)

	root := rootOf(t, env, project.ID)
	assert.Equal(t, models.RootEventName, root.Name)
	assert.Equal(t, models.EventTypeFolder, root.EventType)
	assert.Equal(t, root.ID.String(), root.Path)
	assert.Equal(t, 0, root.Depth)
	assert.Equal(t, models.CostSummary{}, env.store.summaries[root.ID])
}

func TestProjectService_Create_Validation(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()

	tests := []struct {
		name    string
		project models.Project
	}{
		{name: "empty name", project: models.Project{Name: " "}},
		{name: "bad type", project: models.Project{Name: "x", Type: "folder"}},
		{name: "bad status", project: models.Project{Name: "x", Status: "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.project
			_, err := env.projects.Create(context.Background(), owner, &p)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
	assert.Empty(t, env.store.projects)
}

func TestProjectService_Create_DuplicateNameRollsBack(t *testing.T) {
	env := newTestEnv(t, false)
	owner := uuid.New()

	_, err := env.projects.Create(context.Background(), owner, &models.Project{Name: "Expo"})
	require.NoError(t, err)

	_, err = env.projects.Create(context.Background(), owner, &models.Project{Name: "Expo"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Len(t, env.store.projects, 1)
	assert.Len(t, env.store.events, 1)

	// Another owner may reuse the name.
	_, err = env.projects.Create(context.Background(), uuid.New(), &models.Project{Name: "Expo"})
	assert.NoError(t, err)
}

func TestProjectService_Create_RootFailureRollsBack(t *testing.T) {
	env := newTestEnv(t, false)

	env.store.failOn = "summary.create"
	_, err := env.projects.Create(context.Background(), uuid.New(), &models.Project{Name: "Expo"})

	assert.ErrorIs(t, err, errInjected)
	assert.Empty(t, env.store.projects)
	assert.Empty(t, env.store.events)
}

func TestProjectService_GetTree(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	owner, project, root := newProjectWithRoot(t, env)

	a := createEvent(t, env, owner, project.ID, &root.ID, "A", models.EventTypeFolder, nil)
	f := createEvent(t, env, owner, project.ID, &a.ID, "F", models.EventTypeFile, costPatch("USD", "12.5", "2"))
	createEvent(t, env, owner, project.ID, &root.ID, "G", models.EventTypeFile, nil)

	tree, err := env.projects.GetTree(ctx, owner, project.ID)
	require.NoError(t, err)

	require.Len(t, tree.Events, 1)
	rootNode := tree.Events[0]
	assert.Equal(t, root.ID, rootNode.ID)
	assert.True(t, rootNode.Cost.(models.CostSummary)["USD"].BudgetIncome.Equal(dec("12.5")))
	require.Len(t, rootNode.Children, 2)

	var aNode *models.EventNode
	for _, c := range rootNode.Children {
		if c.ID == a.ID {
			aNode = c
		}
	}
	require.NotNil(t, aNode)
	require.Len(t, aNode.Children, 1)
	fNode := aNode.Children[0]
	assert.Equal(t, f.ID, fNode.ID)
	assert.True(t, fNode.Cost.(*models.FileCost).BudgetExpense.Equal(dec("2")))
	assert.NotNil(t, fNode.Children)

	_, err = env.projects.GetTree(ctx, uuid.New(), project.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProjectService_ListAndUpdate(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	owner := uuid.New()

	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := env.projects.Create(ctx, owner, &models.Project{Name: name})
		require.NoError(t, err)
	}
	_, err := env.projects.Create(ctx, uuid.New(), &models.Project{Name: "Other"})
	require.NoError(t, err)

	projects, meta, err := env.projects.List(ctx, owner, models.ListOptions{Limit: 2}, "")
	require.NoError(t, err)
	assert.Len(t, projects, 2)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)

	_, _, err = env.projects.List(ctx, owner, models.ListOptions{}, "open")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	status := models.ProjectStatusOngoing
	updated, err := env.projects.Update(ctx, owner, projects[0].ID, &models.ProjectPatch{
		Status: &status,
		Tags:   []string{"q3"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusOngoing, updated.Status)
	assert.Equal(t, []string{"q3"}, updated.Tags)

	ongoing, _, err := env.projects.List(ctx, owner, models.ListOptions{}, models.ProjectStatusOngoing)
	require.NoError(t, err)
	assert.Len(t, ongoing, 1)

	bad := "paused"
	_, err = env.projects.Update(ctx, owner, projects[0].ID, &models.ProjectPatch{Status: &bad})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = env.projects.Update(ctx, uuid.New(), projects[0].ID, &models.ProjectPatch{Status: &status})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestProjectService_Delete_RemovesEverything(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	owner, project, root := newProjectWithRoot(t, env)
	createEvent(t, env, owner, project.ID, &root.ID, "F", models.EventTypeFile, costPatch("USD", "1", "0"))

	assert.ErrorIs(t, env.projects.Delete(ctx, uuid.New(), project.ID), apperrors.ErrNotFound)

	require.NoError(t, env.projects.Delete(ctx, owner, project.ID))
	assert.Empty(t, env.store.projects)
	assert.Empty(t, env.store.events)
	assert.Empty(t, env.store.fileCosts)
	assert.Empty(t, env.store.summaries)
}
