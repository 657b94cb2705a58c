package guidance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

const (
	openAssignment = "9c4a62f3-5a0e-4f7e-8f5e-3b1d00000001"
	pastAssignment = "9c4a62f3-5a0e-4f7e-8f5e-3b1d00000002"
)

var fixedNow = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

type memStore struct {
	rows map[string]Guidance
}

func (m *memStore) FindByAssignment(_ context.Context, assignmentID string) (Guidance, error) {
	g, ok := m.rows[assignmentID]
	if !ok {
		return Guidance{}, ErrNotFound
	}
	return g, nil
}

func (m *memStore) Create(_ context.Context, g Guidance) (Guidance, error) {
	if _, ok := m.rows[g.AssignmentID]; ok {
		return Guidance{}, ErrExists
	}
	m.rows[g.AssignmentID] = g
	return g, nil
}

func (m *memStore) Update(_ context.Context, g Guidance) (Guidance, error) {
	cur, ok := m.rows[g.AssignmentID]
	if !ok {
		return Guidance{}, ErrNotFound
	}
	if cur.Locked() {
		return Guidance{}, ErrLocked
	}
	cur.PermittedText = g.PermittedText
	cur.ProhibitedText = g.ProhibitedText
	cur.PermittedCategories = g.PermittedCategories
	cur.ProhibitedCategories = g.ProhibitedCategories
	cur.Examples = g.Examples
	m.rows[g.AssignmentID] = cur
	return cur, nil
}

func (m *memStore) Lock(_ context.Context, assignmentID string, at time.Time) (Guidance, error) {
	cur, ok := m.rows[assignmentID]
	if !ok {
		return Guidance{}, ErrNotFound
	}
	if cur.LockedAt == nil {
		cur.LockedAt = &at
		m.rows[assignmentID] = cur
	}
	return cur, nil
}

func (m *memStore) LockDue(context.Context, time.Time) (int64, error) {
	var n int64
	for id, g := range m.rows {
		if id == pastAssignment && g.LockedAt == nil {
			at := fixedNow
			g.LockedAt = &at
			m.rows[id] = g
			n++
		}
	}
	return n, nil
}

type stubAssignments struct{}

func (stubAssignments) Assignment(_ context.Context, id string) (enrolment.Assignment, error) {
	switch id {
	case openAssignment:
		return enrolment.Assignment{ID: id, CourseID: "c-1", DueDate: fixedNow.Add(72 * time.Hour)}, nil
	case pastAssignment:
		return enrolment.Assignment{ID: id, CourseID: "c-1", DueDate: fixedNow.Add(-time.Hour)}, nil
	}
	return enrolment.Assignment{}, enrolment.ErrAssignmentNotFound
}

func (stubAssignments) RequireInstructor(_ context.Context, userID, courseID string) error {
	if userID == "i-1" && courseID == "c-1" {
		return nil
	}
	return enrolment.ErrNotInstructor
}

func newTestService() (*Service, *memStore) {
	store := &memStore{rows: map[string]Guidance{}}
	svc := NewService(store, stubAssignments{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func validRequest() Request {
	return Request{
		PermittedText:        "Use AI to explain concepts.",
		ProhibitedText:       "Do not generate the essay.",
		PermittedCategories:  []declarations.Category{declarations.CategoryExplanation},
		ProhibitedCategories: []declarations.Category{declarations.CategoryRephrasing},
		Examples:             &Examples{Permitted: []string{"Ask for a definition"}},
	}
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, "i-1", openAssignment, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "i-1", created.CreatedBy)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.False(t, created.Locked())

	got, err := svc.Get(ctx, openAssignment)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Create(ctx, "i-1", openAssignment, validRequest())
	assert.ErrorIs(t, err, ErrExists)
	assert.ErrorIs(t, err, httpx.ErrConflict)
}

func TestCreateRequiresInstructorAndAssignment(t *testing.T) {
	svc, store := newTestService()
	_, err := svc.Create(context.Background(), "i-2", openAssignment, validRequest())
	assert.ErrorIs(t, err, enrolment.ErrNotInstructor)

	_, err = svc.Create(context.Background(), "i-1", "9c4a62f3-5a0e-4f7e-8f5e-3b1d00000099", validRequest())
	assert.ErrorIs(t, err, enrolment.ErrAssignmentNotFound)

	_, err = svc.Create(context.Background(), "i-1", "nope", validRequest())
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	assert.Empty(t, store.rows)
}

func TestValidationRules(t *testing.T) {
	svc, _ := newTestService()
	cases := map[string]func(*Request){
		"permittedText":        func(r *Request) { r.PermittedText = "   " },
		"prohibitedText":       func(r *Request) { r.ProhibitedText = strings.Repeat("x", 2001) },
		"permittedCategories":  func(r *Request) { r.PermittedCategories = make([]declarations.Category, 5) },
		"prohibitedCategories": func(r *Request) { r.ProhibitedCategories = r.PermittedCategories },
		"examples.permitted[0]": func(r *Request) {
			r.Examples = &Examples{Permitted: []string{strings.Repeat("y", 501)}}
		},
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.Create(context.Background(), "i-1", openAssignment, req)
			var verr *httpx.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, field)
		})
	}
}

func TestUpdateUntilLocked(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, "i-1", openAssignment, validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.PermittedText = "Revised."
	updated, err := svc.Update(ctx, "i-1", openAssignment, req)
	require.NoError(t, err)
	assert.Equal(t, "Revised.", updated.PermittedText)

	locked, err := svc.Lock(ctx, "i-1", openAssignment)
	require.NoError(t, err)
	require.NotNil(t, locked.LockedAt)

	_, err = svc.Update(ctx, "i-1", openAssignment, req)
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, err, httpx.ErrConflict)

	again, err := svc.Lock(ctx, "i-1", openAssignment)
	require.NoError(t, err)
	assert.Equal(t, *locked.LockedAt, *again.LockedAt)
}

func TestUpdatePastDueLocks(t *testing.T) {
	svc, store := newTestService()
	store.rows[pastAssignment] = Guidance{ID: "g-1", AssignmentID: pastAssignment, PermittedText: "a", ProhibitedText: "b"}

	_, err := svc.Update(context.Background(), "i-1", pastAssignment, validRequest())
	assert.ErrorIs(t, err, ErrLocked)
	assert.True(t, store.rows[pastAssignment].Locked())
	assert.Equal(t, "a", store.rows[pastAssignment].PermittedText)
}

func TestLockDue(t *testing.T) {
	svc, store := newTestService()
	store.rows[pastAssignment] = Guidance{ID: "g-1", AssignmentID: pastAssignment}
	n, err := svc.LockDue(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func newTestRouter(svc *Service) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, svc, rbac.Middleware{Gate: rbac.NewGate(nil, logger)}).MountRoutes(r)
	return r
}

func withPrincipal(t *testing.T, req *http.Request, id string, role rbac.Role) *http.Request {
	t.Helper()
	p, err := rbac.NewPrincipal(id, role, 1)
	require.NoError(t, err)
	return req.WithContext(rbac.WithPrincipal(req.Context(), p))
}

func TestHandlerLifecycle(t *testing.T) {
	svc, _ := newTestService()
	router := newTestRouter(svc)
	path := "/assignments/" + openAssignment + "/guidance"
	body, err := json.Marshal(validRequest())
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(t, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)), "s-1", rbac.RoleStudent))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(t, httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body)), "i-1", rbac.RoleInstructor))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(t, httptest.NewRequest(http.MethodGet, path, nil), "s-1", rbac.RoleStudent))
	require.Equal(t, http.StatusOK, rr.Code)
	var got Guidance
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Use AI to explain concepts.", got.PermittedText)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(t, httptest.NewRequest(http.MethodPost, path+"/lock", nil), "i-1", rbac.RoleInstructor))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, withPrincipal(t, httptest.NewRequest(http.MethodPut, path, bytes.NewReader(body)), "i-1", rbac.RoleInstructor))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerMissingGuidance(t *testing.T) {
	svc, _ := newTestService()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assignments/"+openAssignment+"/guidance", nil)
	newTestRouter(svc).ServeHTTP(rr, withPrincipal(t, req, "i-1", rbac.RoleInstructor))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
