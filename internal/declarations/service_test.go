package declarations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiusage/disclosure/internal/consent"
	"github.com/aiusage/disclosure/internal/enrolment"
	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
	"github.com/aiusage/disclosure/internal/retention"
)

const (
	assignmentOpen   = "5b7e9a51-0d1f-4c8e-9d55-0c2a1f000001"
	assignmentClosed = "5b7e9a51-0d1f-4c8e-9d55-0c2a1f000002"
	assignmentOther  = "5b7e9a51-0d1f-4c8e-9d55-0c2a1f000003"
	assignmentAbsent = "5b7e9a51-0d1f-4c8e-9d55-0c2a1f000009"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type memStore struct {
	rows      []Declaration
	createErr error
}

func (m *memStore) Create(_ context.Context, d Declaration) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.rows = append(m.rows, d)
	return nil
}

func (m *memStore) FindByID(_ context.Context, id string) (Declaration, error) {
	for _, d := range m.rows {
		if d.ID == id {
			return d, nil
		}
	}
	return Declaration{}, ErrNotFound
}

func (m *memStore) FindByStudentAndAssignment(_ context.Context, studentID, assignmentID string) (Declaration, bool, error) {
	for _, d := range m.rows {
		if d.StudentID == studentID && d.AssignmentID == assignmentID {
			return d, true, nil
		}
	}
	return Declaration{}, false, nil
}

func (m *memStore) ListByStudent(_ context.Context, studentID string) ([]Declaration, error) {
	var out []Declaration
	for _, d := range m.rows {
		if d.StudentID == studentID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out, nil
}

type stubAssignments struct {
	assignments map[string]enrolment.Assignment
	enrolled    map[string]bool
}

func (s stubAssignments) Assignment(_ context.Context, id string) (enrolment.Assignment, error) {
	a, ok := s.assignments[id]
	if !ok {
		return enrolment.Assignment{}, enrolment.ErrAssignmentNotFound
	}
	return a, nil
}

func (s stubAssignments) IsStudentEnrolled(_ context.Context, studentID, courseID string) (bool, error) {
	return s.enrolled[studentID+"/"+courseID], nil
}

type stubLedger struct {
	observed []string
	status   []consent.Status
	err      error
}

func (l *stubLedger) Observe(_ context.Context, studentID, courseID string) error {
	l.observed = append(l.observed, studentID+"/"+courseID)
	return l.err
}

func (l *stubLedger) Status(context.Context, string) ([]consent.Status, error) {
	return l.status, nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
}

type fixture struct {
	svc    *Service
	store  *memStore
	ledger *stubLedger
	cache  *countingCache
}

func newFixture() *fixture {
	f := &fixture{store: &memStore{}, ledger: &stubLedger{}, cache: &countingCache{}}
	assignments := stubAssignments{
		assignments: map[string]enrolment.Assignment{
			assignmentOpen:   {ID: assignmentOpen, CourseID: "c-1", Title: "Essay", DueDate: fixedNow.Add(48 * time.Hour)},
			assignmentClosed: {ID: assignmentClosed, CourseID: "c-1", Title: "Quiz", DueDate: fixedNow.Add(-time.Hour)},
			assignmentOther:  {ID: assignmentOther, CourseID: "c-2", Title: "Lab", DueDate: fixedNow.Add(48 * time.Hour)},
		},
		enrolled: map[string]bool{"s-1/c-1": true},
	}
	cfg := Config{PrivacyNoticeVersion: 2, Window: retention.DefaultWindow()}
	f.svc = NewService(f.store, assignments, f.ledger, f.cache, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func student(t *testing.T, id string, ack int) *rbac.Principal {
	t.Helper()
	p, err := rbac.NewPrincipal(id, rbac.RoleStudent, ack)
	require.NoError(t, err)
	return p
}

func validRequest(assignmentID string) SubmitRequest {
	return SubmitRequest{
		AssignmentID: assignmentID,
		ToolsUsed:    []string{" ChatGPT "},
		Categories:   []Category{CategoryExplanation, CategoryStructure},
		Frequency:    FrequencyLight,
	}
}

func TestSubmitStampsExpiryAndPolicy(t *testing.T) {
	f := newFixture()
	d, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	require.NoError(t, err)

	due := fixedNow.Add(48 * time.Hour)
	assert.Equal(t, due.AddDate(0, 0, retention.DefaultDays), d.ExpiresAt)
	assert.Equal(t, 2, d.PolicyVersion)
	assert.Equal(t, fixedNow, d.SubmittedAt)
	assert.Equal(t, []string{"ChatGPT"}, d.ToolsUsed)
	assert.Len(t, f.store.rows, 1)
	assert.Equal(t, []string{"s-1/c-1"}, f.ledger.observed)
	assert.Equal(t, 1, f.cache.bumps)
}

type fixedPolicy struct {
	version int
	err     error
}

func (p fixedPolicy) CurrentVersion(context.Context) (int, error) { return p.version, p.err }

func TestSubmitUsesPublishedPolicyVersion(t *testing.T) {
	f := newFixture()
	WithPolicyVersions(fixedPolicy{version: 7})(f.svc)
	d, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	require.NoError(t, err)
	assert.Equal(t, 7, d.PolicyVersion)

	f = newFixture()
	WithPolicyVersions(fixedPolicy{})(f.svc)
	d, err = f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	require.NoError(t, err)
	assert.Equal(t, 2, d.PolicyVersion)

	f = newFixture()
	WithPolicyVersions(fixedPolicy{err: errors.New("db down")})(f.svc)
	_, err = f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	assert.Error(t, err)
	assert.Empty(t, f.store.rows)
}

func TestSubmitRejections(t *testing.T) {
	cases := []struct {
		name       string
		ack        int
		assignment string
		want       error
	}{
		{name: "unknown assignment", ack: 2, assignment: assignmentAbsent, want: enrolment.ErrAssignmentNotFound},
		{name: "not enrolled", ack: 2, assignment: assignmentOther, want: ErrNotEnrolled},
		{name: "window closed", ack: 2, assignment: assignmentClosed, want: ErrWindowClosed},
		{name: "stale privacy acknowledgement", ack: 1, assignment: assignmentOpen, want: ErrPrivacyAck},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Submit(context.Background(), student(t, "s-1", tc.ack), validRequest(tc.assignment))
			assert.ErrorIs(t, err, tc.want)
			assert.Empty(t, f.store.rows)
			assert.Zero(t, f.cache.bumps)
		})
	}
}

func TestSubmitDuplicate(t *testing.T) {
	f := newFixture()
	p := student(t, "s-1", 2)
	_, err := f.svc.Submit(context.Background(), p, validRequest(assignmentOpen))
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), p, validRequest(assignmentOpen))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.ErrorIs(t, err, httpx.ErrConflict)
	assert.Len(t, f.store.rows, 1)
}

func TestSubmitDuplicateRaceFromStore(t *testing.T) {
	f := newFixture()
	f.store.createErr = ErrDuplicate
	_, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Empty(t, f.ledger.observed)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture()
	req := validRequest(assignmentOpen)
	req.Categories = []Category{"guessing"}
	req.Frequency = "sometimes"
	long := string(bytes.Repeat([]byte("x"), 501))
	req.ContextText = &long

	_, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), req)
	var verr *httpx.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "categories[0]")
	assert.Contains(t, verr.Fields, "frequency")
	assert.Contains(t, verr.Fields, "contextText")
}

func TestSubmitBlankContextIsDropped(t *testing.T) {
	f := newFixture()
	req := validRequest(assignmentOpen)
	blank := "   "
	req.ContextText = &blank
	d, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), req)
	require.NoError(t, err)
	assert.Nil(t, d.ContextText)
}

func TestSubmitObserveFailureIsTolerated(t *testing.T) {
	f := newFixture()
	f.ledger.err = errors.New("db hiccup")
	_, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	assert.NoError(t, err)
}

func TestGetForeignDeclaration(t *testing.T) {
	f := newFixture()
	d, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	require.NoError(t, err)

	_, err = f.svc.Get(context.Background(), "s-2", d.ID)
	assert.ErrorIs(t, err, ErrNotOwner)

	got, err := f.svc.Get(context.Background(), "s-1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = f.svc.Get(context.Background(), "s-1", "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboardCountsEachCategory(t *testing.T) {
	f := newFixture()
	f.store.rows = []Declaration{
		{ID: "d1", StudentID: "s-1", Categories: []Category{CategoryExplanation, CategoryStructure}, Frequency: FrequencyLight, SubmittedAt: fixedNow},
		{ID: "d2", StudentID: "s-1", Categories: []Category{CategoryExplanation}, Frequency: FrequencyExtensive, SubmittedAt: fixedNow.Add(time.Hour)},
		{ID: "d3", StudentID: "s-2", Categories: []Category{CategoryRephrasing}, Frequency: FrequencyNone, SubmittedAt: fixedNow},
	}
	out, err := f.svc.Dashboard(context.Background(), "s-1")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Summary.TotalDeclarations)
	assert.Equal(t, 2, out.Summary.ByCategory[CategoryExplanation])
	assert.Equal(t, 1, out.Summary.ByCategory[CategoryStructure])
	assert.Equal(t, 1, out.Summary.ByFrequency[FrequencyExtensive])
	assert.Equal(t, "d2", out.Declarations[0].ID)
}

func TestDashboardEmpty(t *testing.T) {
	out, err := newFixture().svc.Dashboard(context.Background(), "s-9")
	require.NoError(t, err)
	assert.NotNil(t, out.Declarations)
	assert.Zero(t, out.Summary.TotalDeclarations)
}

func TestExportBundlesDeclarationsAndSharing(t *testing.T) {
	f := newFixture()
	f.ledger.status = []consent.Status{{StudentID: "s-1", CourseID: "c-1", IsShared: false}}
	_, err := f.svc.Submit(context.Background(), student(t, "s-1", 2), validRequest(assignmentOpen))
	require.NoError(t, err)

	out, err := f.svc.Export(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "s-1", out.Student.ID)
	assert.Equal(t, fixedNow, out.ExportedAt)
	assert.Len(t, out.Declarations, 1)
	require.Len(t, out.SharingPreferences, 1)
	assert.False(t, out.SharingPreferences[0].IsShared)
}

func newTestRouter(svc *Service, exportLimit int) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	NewHandler(logger, svc, rbac.Middleware{Gate: rbac.NewGate(nil, logger)}, exportLimit).MountRoutes(r)
	return r
}

func asPrincipal(req *http.Request, p *rbac.Principal) *http.Request {
	return req.WithContext(rbac.WithPrincipal(req.Context(), p))
}

func TestHandlerSubmit(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f.svc, 0)
	body, err := json.Marshal(validRequest(assignmentOpen))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPost, "/declarations/", bytes.NewReader(body)), student(t, "s-1", 2)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var got Declaration
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, assignmentOpen, got.AssignmentID)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPost, "/declarations/", bytes.NewReader(body)), student(t, "s-1", 2)))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
}

func TestHandlerSubmitRejectsUnknownFields(t *testing.T) {
	router := newTestRouter(newFixture().svc, 0)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/declarations/", bytes.NewBufferString(`{"assignmentId":"x","studentId":"s-2"}`))
	router.ServeHTTP(rr, asPrincipal(req, student(t, "s-1", 2)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerInstructorCannotSubmit(t *testing.T) {
	router := newTestRouter(newFixture().svc, 0)
	instructor, err := rbac.NewPrincipal("i-1", rbac.RoleInstructor, 2)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodPost, "/declarations/", bytes.NewBufferString(`{}`)), instructor))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/student", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerExportAttachmentAndRateLimit(t *testing.T) {
	router := newTestRouter(newFixture().svc, 1)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/export", nil), student(t, "s-1", 2)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), `ai-usage-export-s-1.json`)

	var out Export
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, "s-1", out.Student.ID)
	assert.NotNil(t, out.Declarations)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/export", nil), student(t, "s-1", 2)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, asPrincipal(httptest.NewRequest(http.MethodGet, "/export", nil), student(t, "s-2", 2)))
	assert.Equal(t, http.StatusOK, rr.Code)
}
