package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/apperrors"
	"github.com/ekaya-inc/finmon/pkg/eventpath"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/repositories"
)

// memStore is an in-memory stand-in for the projects, project_events and
// projects_cost tables shared by the mock repositories below.
type memStore struct {
	projects  map[uuid.UUID]*models.Project
	events    map[uuid.UUID]*models.ProjectEvent
	fileCosts map[uuid.UUID]*models.FileCost
	summaries map[uuid.UUID]models.CostSummary
	users     map[uuid.UUID]*models.User

	// failOn makes the named operation return errInjected.
	failOn string
	// summaryWrites counts WriteFolderSummary calls per event.
	summaryWrites map[uuid.UUID]int
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		projects:      map[uuid.UUID]*models.Project{},
		events:        map[uuid.UUID]*models.ProjectEvent{},
		fileCosts:     map[uuid.UUID]*models.FileCost{},
		summaries:     map[uuid.UUID]models.CostSummary{},
		users:         map[uuid.UUID]*models.User{},
		summaryWrites: map[uuid.UUID]int{},
	}
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return errInjected
	}
	return nil
}

// snapshot deep-copies the table maps so a failed unit can be rolled back.
func (s *memStore) snapshot() *memStore {
	c := newMemStore()
	for k, v := range s.projects {
		p := *v
		c.projects[k] = &p
	}
	for k, v := range s.events {
		e := *v
		c.events[k] = &e
	}
	for k, v := range s.fileCosts {
		fc := *v
		c.fileCosts[k] = &fc
	}
	for k, v := range s.summaries {
		m := models.CostSummary{}
		for cur, t := range v {
			m[cur] = t
		}
		c.summaries[k] = m
	}
	for k, v := range s.users {
		u := *v
		c.users[k] = &u
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.projects = from.projects
	s.events = from.events
	s.fileCosts = from.fileCosts
	s.summaries = from.summaries
	s.users = from.users
}

// fakeUnitOfWork rolls the store back when fn fails.
type fakeUnitOfWork struct {
	store *memStore
	calls int
}

func (u *fakeUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	before := u.store.snapshot()
	if err := fn(ctx); err != nil {
		u.store.restore(before)
		return err
	}
	return nil
}

// ---- projects ----

type memProjectRepo struct{ s *memStore }

func (r *memProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if err := r.s.fail("project.create"); err != nil {
		return err
	}
	for _, p := range r.s.projects {
		if p.UserID == project.UserID && p.Name == project.Name {
			return apperrors.ErrConflict
		}
	}
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	if project.Status == "" {
		project.Status = models.ProjectStatusDraft
	}
	if project.Type == "" {
		project.Type = models.ProjectTypeProject
	}
	p := *project
	r.s.projects[p.ID] = &p
	return nil
}

func (r *memProjectRepo) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProjectRepo) List(ctx context.Context, ownerID uuid.UUID, opts models.ListOptions, status string) ([]*models.Project, int, error) {
	var out []*models.Project
	for _, p := range r.s.projects {
		if p.UserID != ownerID || (status != "" && p.Status != status) {
			continue
		}
		if opts.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(opts.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	total := len(out)
	start := opts.Offset()
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (r *memProjectRepo) Update(ctx context.Context, project *models.Project) error {
	if _, ok := r.s.projects[project.ID]; !ok {
		return apperrors.ErrNotFound
	}
	p := *project
	r.s.projects[p.ID] = &p
	return nil
}

func (r *memProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.s.projects[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.s.projects, id)
	for eid, e := range r.s.events {
		if e.ProjectID == id {
			delete(r.s.events, eid)
		}
	}
	return nil
}

// ---- events ----

type memEventRepo struct{ s *memStore }

func (r *memEventRepo) Create(ctx context.Context, event *models.ProjectEvent) error {
	if err := r.s.fail("event.create"); err != nil {
		return err
	}
	if event.ParentID != nil {
		if _, ok := r.s.events[*event.ParentID]; !ok {
			return apperrors.ErrNotFound
		}
	}
	event.Depth = eventpath.Depth(event.Path)
	e := *event
	r.s.events[e.ID] = &e
	return nil
}

func (r *memEventRepo) Get(ctx context.Context, id uuid.UUID) (*models.ProjectEvent, error) {
	e, ok := r.s.events[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) GetRoot(ctx context.Context, projectID uuid.UUID) (*models.ProjectEvent, error) {
	for _, e := range r.s.events {
		if e.ProjectID == projectID && e.ParentID == nil {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memEventRepo) Update(ctx context.Context, event *models.ProjectEvent) error {
	if _, ok := r.s.events[event.ID]; !ok {
		return apperrors.ErrNotFound
	}
	e := *event
	r.s.events[e.ID] = &e
	return nil
}

func (r *memEventRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectEvent, error) {
	out := []*models.ProjectEvent{}
	for _, e := range r.s.events {
		if e.ProjectID == projectID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *memEventRepo) List(ctx context.Context, projectID uuid.UUID, filter models.EventFilter) ([]*models.ProjectEvent, int, error) {
	all, _ := r.ListByProject(ctx, projectID)
	out := []*models.ProjectEvent{}
	for _, e := range all {
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *memEventRepo) DeleteSubtree(ctx context.Context, event *models.ProjectEvent) (int64, error) {
	if err := r.s.fail("event.delete"); err != nil {
		return 0, err
	}
	var n int64
	for id, e := range r.s.events {
		if e.ProjectID == event.ProjectID && (e.Path == event.Path || eventpath.IsDescendantOf(e.Path, event.Path)) {
			delete(r.s.events, id)
			delete(r.s.fileCosts, id)
			delete(r.s.summaries, id)
			n++
		}
	}
	if n == 0 {
		return 0, apperrors.ErrNotFound
	}
	return n, nil
}

// ---- costs ----

type memCostRepo struct{ s *memStore }

func (r *memCostRepo) CreateFileCost(ctx context.Context, cost *models.FileCost) error {
	if err := r.s.fail("cost.create"); err != nil {
		return err
	}
	if _, ok := r.s.fileCosts[cost.ProjectEventID]; ok {
		return apperrors.ErrConflict
	}
	c := *cost
	r.s.fileCosts[c.ProjectEventID] = &c
	return nil
}

func (r *memCostRepo) CreateFolderSummary(ctx context.Context, eventID uuid.UUID) error {
	if err := r.s.fail("summary.create"); err != nil {
		return err
	}
	r.s.summaries[eventID] = models.CostSummary{}
	return nil
}

func (r *memCostRepo) GetFileCost(ctx context.Context, eventID uuid.UUID) (*models.FileCost, error) {
	c, ok := r.s.fileCosts[eventID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCostRepo) UpdateFileCost(ctx context.Context, cost *models.FileCost) error {
	if err := r.s.fail("cost.update"); err != nil {
		return err
	}
	c := *cost
	r.s.fileCosts[c.ProjectEventID] = &c
	return nil
}

func (r *memCostRepo) GetFolderSummary(ctx context.Context, eventID uuid.UUID) (models.CostSummary, error) {
	s, ok := r.s.summaries[eventID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (r *memCostRepo) WriteFolderSummary(ctx context.Context, eventID uuid.UUID, summary models.CostSummary) error {
	if err := r.s.fail("summary.write"); err != nil {
		return err
	}
	r.s.summaries[eventID] = summary
	r.s.summaryWrites[eventID]++
	return nil
}

func (r *memCostRepo) ListDescendantFileCosts(ctx context.Context, projectID uuid.UUID, path string) ([]*models.FileCost, error) {
	out := []*models.FileCost{}
	for id, e := range r.s.events {
		if e.ProjectID != projectID || e.EventType != models.EventTypeFile || !eventpath.IsDescendantOf(e.Path, path) {
			continue
		}
		if c, ok := r.s.fileCosts[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCostRepo) ListByProject(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]models.Cost, error) {
	out := map[uuid.UUID]models.Cost{}
	for id, e := range r.s.events {
		if e.ProjectID != projectID {
			continue
		}
		if e.IsFolder() {
			if s, ok := r.s.summaries[id]; ok {
				out[id] = s
			}
			continue
		}
		if c, ok := r.s.fileCosts[id]; ok {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *memCostRepo) DeleteByProject(ctx context.Context, projectID uuid.UUID) error {
	for id, e := range r.s.events {
		if e.ProjectID == projectID {
			delete(r.s.fileCosts, id)
			delete(r.s.summaries, id)
		}
	}
	return nil
}

// ---- users ----

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	u := *user
	r.s.users[u.ID] = &u
	return nil
}

func (r *memUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

var (
	_ repositories.ProjectRepository = (*memProjectRepo)(nil)
	_ repositories.EventRepository   = (*memEventRepo)(nil)
	_ repositories.CostRepository    = (*memCostRepo)(nil)
	_ repositories.UserRepository    = (*memUserRepo)(nil)
)

// testEnv wires the real services over the in-memory store.
type testEnv struct {
	store      *memStore
	uow        *fakeUnitOfWork
	projects   ProjectService
	events     EventService
	aggregator CostAggregator
	propagator CostPropagator
}

func newTestEnv(t *testing.T, normalize bool) *testEnv {
	t.Helper()
	store := newMemStore()
	uow := &fakeUnitOfWork{store: store}
	logger := zap.NewNop()

	projectRepo := &memProjectRepo{s: store}
	eventRepo := &memEventRepo{s: store}
	costRepo := &memCostRepo{s: store}

	aggregator := NewCostAggregator(eventRepo, costRepo, logger)
	propagator := NewCostPropagator(eventRepo, aggregator, DefaultMaxTreeDepth, logger)

	return &testEnv{
		store:      store,
		uow:        uow,
		projects:   NewProjectService(projectRepo, eventRepo, costRepo, uow, logger),
		events:     NewEventService(projectRepo, eventRepo, costRepo, aggregator, propagator, uow, normalize, logger),
		aggregator: aggregator,
		propagator: propagator,
	}
}
