package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/services"
)

// mockProjectService records the last call and returns canned values.
type mockProjectService struct {
	project *models.Project
	tree    *models.ProjectTree
	list    []*models.Project
	meta    models.PageMeta
	err     error

	gotUserID  uuid.UUID
	gotProject *models.Project
	gotPatch   *models.ProjectPatch
	gotOpts    models.ListOptions
	gotStatus  string
}

var _ services.ProjectService = (*mockProjectService)(nil)

func (m *mockProjectService) Create(ctx context.Context, userID uuid.UUID, project *models.Project) (*models.Project, error) {
	m.gotUserID, m.gotProject = userID, project
	if m.err != nil {
		return nil, m.err
	}
	project.ID = uuid.New()
	project.UserID = userID
	return project, nil
}

func (m *mockProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*models.Project, error) {
	m.gotUserID = userID
	return m.project, m.err
}

func (m *mockProjectService) GetTree(ctx context.Context, userID, projectID uuid.UUID) (*models.ProjectTree, error) {
	m.gotUserID = userID
	return m.tree, m.err
}

func (m *mockProjectService) List(ctx context.Context, userID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, models.PageMeta, error) {
	m.gotUserID, m.gotOpts, m.gotStatus = userID, opts, status
	return m.list, m.meta, m.err
}

func (m *mockProjectService) Update(ctx context.Context, userID, projectID uuid.UUID, patch *models.ProjectPatch) (*models.Project, error) {
	m.gotUserID, m.gotPatch = userID, patch
	return m.project, m.err
}

func (m *mockProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	m.gotUserID = userID
	return m.err
}

// mockEventService records the last call and returns canned values.
type mockEventService struct {
	event  *models.EventWithCost
	list   []*models.ProjectEvent
	meta   models.PageMeta
	err    error
	called string

	gotInput   *models.NewEventInput
	gotPatch   models.EventPatch
	gotCost    *models.FileCostPatch
	gotFilter  models.EventFilter
	gotEventID uuid.UUID
	gotUserID  uuid.UUID
}

var _ services.EventService = (*mockEventService)(nil)

func (m *mockEventService) Create(ctx context.Context, userID uuid.UUID, input *models.NewEventInput) (*models.EventWithCost, error) {
	m.called, m.gotUserID, m.gotInput = "create", userID, input
	return m.event, m.err
}

func (m *mockEventService) Get(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error) {
	m.called, m.gotUserID, m.gotEventID = "get", userID, eventID
	return m.event, m.err
}

func (m *mockEventService) List(ctx context.Context, userID, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, models.PageMeta, error) {
	m.called, m.gotUserID, m.gotFilter = "list", userID, filter
	return m.list, m.meta, m.err
}

func (m *mockEventService) Update(ctx context.Context, userID, eventID uuid.UUID, patch models.EventPatch, cost *models.FileCostPatch) (*models.EventWithCost, error) {
	m.called, m.gotUserID, m.gotEventID, m.gotPatch, m.gotCost = "update", userID, eventID, patch, cost
	return m.event, m.err
}

func (m *mockEventService) UpdateFileCost(ctx context.Context, userID, eventID uuid.UUID, patch models.FileCostPatch) (*models.EventWithCost, error) {
	m.called, m.gotUserID, m.gotEventID, m.gotCost = "cost", userID, eventID, &patch
	return m.event, m.err
}

func (m *mockEventService) Delete(ctx context.Context, userID, eventID uuid.UUID) error {
	m.called, m.gotUserID, m.gotEventID = "delete", userID, eventID
	return m.err
}

func (m *mockEventService) Recompute(ctx context.Context, userID, eventID uuid.UUID) (*models.EventWithCost, error) {
	m.called, m.gotUserID, m.gotEventID = "recompute", userID, eventID
	return m.event, m.err
}

// mockUserService returns canned values.
type mockUserService struct {
	user   *models.User
	result *services.LoginResult
	err    error

	gotEmail    string
	gotPassword string
}

var _ services.UserService = (*mockUserService)(nil)

func (m *mockUserService) Create(ctx context.Context, email, name, password, role string) (*models.User, error) {
	return m.user, m.err
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.user, m.err
}

func (m *mockUserService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	m.gotEmail, m.gotPassword = email, password
	return m.result, m.err
}

// mockAuthService returns the configured claims for every request.
type mockAuthService struct {
	claims *auth.Claims
	token  string
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	return m.claims, m.token, m.err
}

// withUser attaches claims for userID to the request context, as RequireAuth does.
func withUser(req *http.Request, userID uuid.UUID) *http.Request {
	claims := &auth.Claims{Email: "owner@example.com"}
	claims.Subject = userID.String()
	return req.WithContext(auth.WithClaims(req.Context(), claims, "test-token"))
}

// newAuthedRequest builds a request carrying claims for userID.
func newAuthedRequest(method, target, body string, userID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	return withUser(req, userID)
}
