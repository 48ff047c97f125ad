//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/finmon/pkg/eventpath"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/testhelpers"
)

// repoFixture creates rows through the repositories under test. Every test
// gets its own user, so tests never see each other's data.
type repoFixture struct {
	t        *testing.T
	ctx      context.Context
	users    UserRepository
	projects ProjectRepository
	events   EventRepository
	costs    CostRepository
	user     *models.User
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()
	testDB := testhelpers.GetTestDB(t)

	f := &repoFixture{
		t:        t,
		ctx:      testDB.Context(t),
		users:    NewUserRepository(),
		projects: NewProjectRepository(),
		events:   NewEventRepository(),
		costs:    NewCostRepository(),
	}

	f.user = &models.User{
		Email:        uuid.NewString() + "@example.com",
		Name:         "Test User",
		Role:         models.RoleUser,
		PasswordHash: "x",
	}
	require.NoError(t, f.users.Create(f.ctx, f.user))
	return f
}

func (f *repoFixture) project(name string) *models.Project {
	f.t.Helper()
	p := &models.Project{UserID: f.user.ID, Name: name}
	require.NoError(f.t, f.projects.Create(f.ctx, p))
	return p
}

func (f *repoFixture) root(projectID uuid.UUID) *models.ProjectEvent {
	f.t.Helper()
	id := uuid.New()
	ev := &models.ProjectEvent{
		ID:        id,
		ProjectID: projectID,
		Name:      models.RootEventName,
		EventType: models.EventTypeFolder,
		Path:      eventpath.Root(id.String()),
	}
	require.NoError(f.t, f.events.Create(f.ctx, ev))
	require.NoError(f.t, f.costs.CreateFolderSummary(f.ctx, ev.ID))
	return ev
}

func (f *repoFixture) child(parent *models.ProjectEvent, name string, typ models.EventType) *models.ProjectEvent {
	f.t.Helper()
	id := uuid.New()
	ev := &models.ProjectEvent{
		ID:        id,
		ProjectID: parent.ProjectID,
		ParentID:  &parent.ID,
		Name:      name,
		EventType: typ,
		Path:      eventpath.Child(parent.Path, id.String()),
	}
	require.NoError(f.t, f.events.Create(f.ctx, ev))
	if typ == models.EventTypeFolder {
		require.NoError(f.t, f.costs.CreateFolderSummary(f.ctx, ev.ID))
	}
	return ev
}

func (f *repoFixture) file(parent *models.ProjectEvent, name, currency, income, expense string) *models.ProjectEvent {
	f.t.Helper()
	ev := f.child(parent, name, models.EventTypeFile)
	require.NoError(f.t, f.costs.CreateFileCost(f.ctx, &models.FileCost{
		ProjectEventID:       ev.ID,
		BudgetIncomeCurrency: currency,
		BudgetIncome:         dec(income),
		BudgetExpense:        dec(expense),
	}))
	return ev
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
