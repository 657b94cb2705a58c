package policy

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiusage/disclosure/internal/declarations"
	"github.com/aiusage/disclosure/internal/guidance"
	"github.com/aiusage/disclosure/internal/platform/httpx"
	"github.com/aiusage/disclosure/internal/rbac"
)

var fixedNow = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	docs      []Document
	templates []Template
}

func (m *memStore) Current(context.Context) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.IsCurrent {
			return d, nil
		}
	}
	return Document{}, ErrNoCurrent
}

func (m *memStore) Publish(_ context.Context, d Document) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.docs {
		if m.docs[i].IsCurrent && d.Version <= m.docs[i].Version {
			return Document{}, ErrStaleVersion
		}
	}
	for i := range m.docs {
		m.docs[i].IsCurrent = false
	}
	d.IsCurrent = true
	m.docs = append(m.docs, d)
	return d, nil
}

func (m *memStore) VersionExists(_ context.Context, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.Version == version {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateTemplate(_ context.Context, t Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates = append(m.templates, t)
	return nil
}

func (m *memStore) TemplatesForVersion(_ context.Context, version int) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Template
	for _, t := range m.templates {
		if t.PolicyVersion == version {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubDeclarations map[string]declarations.Declaration

func (s stubDeclarations) Get(_ context.Context, studentID, declarationID string) (declarations.Declaration, error) {
	d, ok := s[declarationID]
	if !ok {
		return declarations.Declaration{}, declarations.ErrNotFound
	}
	if d.StudentID != studentID {
		return declarations.Declaration{}, declarations.ErrNotOwner
	}
	return d, nil
}

type stubGuidance map[string]guidance.Guidance

func (s stubGuidance) Get(_ context.Context, assignmentID string) (guidance.Guidance, error) {
	g, ok := s[assignmentID]
	if !ok {
		return guidance.Guidance{}, guidance.ErrNotFound
	}
	return g, nil
}

func category(c declarations.Category) *declarations.Category { return &c }

func newTestService(store *memStore) *Service {
	svc := NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestUploadRequiresIncreasingVersion(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	v, err := svc.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Zero(t, v)

	d, err := svc.Upload(ctx, "admin-1", UploadRequest{Version: 1, Title: " Acceptable use v1 ", DocumentURL: "https://policies.example.edu/ai-v1.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Acceptable use v1", d.Title)
	assert.True(t, d.IsCurrent)
	require.NotNil(t, d.DocumentURL)

	_, err = svc.Upload(ctx, "admin-1", UploadRequest{Version: 1, Title: "again"})
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.ErrorIs(t, err, httpx.ErrConflict)

	_, err = svc.Upload(ctx, "admin-1", UploadRequest{Version: 3, Title: "Acceptable use v3"})
	require.NoError(t, err)
	v, err = svc.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = svc.Upload(ctx, "admin-1", UploadRequest{Version: 2, Title: "late"})
	assert.ErrorIs(t, err, ErrStaleVersion)

	cur, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Version)
	assert.Nil(t, cur.DocumentURL)
}

func TestUploadValidation(t *testing.T) {
	svc := newTestService(&memStore{})
	_, err := svc.Upload(context.Background(), "admin-1", UploadRequest{Version: 0, Title: "x", DocumentURL: "nope"})

	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "version")
	assert.Contains(t, verr.Fields, "documentUrl")
}

func TestAddTemplateNeedsRegisteredVersion(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store)
	ctx := context.Background()

	req := TemplateRequest{
		Category:         category(declarations.CategoryCodeAssistance),
		TriggerCondition: "code assistance declared",
		TemplateText:     "Cite generated code in comments.",
		PolicyVersion:    1,
	}
	_, err := svc.AddTemplate(ctx, "admin-1", req)
	assert.ErrorIs(t, err, ErrUnknownVersion)

	_, err = svc.Upload(ctx, "admin-1", UploadRequest{Version: 1, Title: "v1"})
	require.NoError(t, err)
	tpl, err := svc.AddTemplate(ctx, "admin-1", req)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, tpl.CreatedAt)
	assert.Len(t, store.templates, 1)

	bad := req
	bad.Category = category("poetry")
	_, err = svc.AddTemplate(ctx, "admin-1", bad)
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

const declID = "5d1f6b0e-3c2a-4f55-9a51-000000000001"

func feedbackFixture() (*memStore, *FeedbackService) {
	store := &memStore{
		docs: []Document{
			{Version: 1, Title: "v1"},
			{Version: 2, Title: "v2", IsCurrent: true, DocumentURL: strPtr("https://policies.example.edu/ai-v2.pdf")},
		},
		templates: []Template{
			{ID: "t-any", TriggerCondition: "any declaration", TemplateText: "Keep your prompts.", PolicyVersion: 1},
			{ID: "t-expl", Category: category(declarations.CategoryExplanation), TriggerCondition: "explanation", TemplateText: "Explain in your own words.", PolicyVersion: 1},
			{ID: "t-code", Category: category(declarations.CategoryCodeAssistance), TriggerCondition: "code", TemplateText: "Cite generated code.", PolicyVersion: 1},
			{ID: "t-v2", TriggerCondition: "any declaration", TemplateText: "Newer advice.", PolicyVersion: 2},
		},
	}
	decls := stubDeclarations{declID: {
		ID:            declID,
		StudentID:     "s-1",
		AssignmentID:  "a-1",
		Categories:    []declarations.Category{declarations.CategoryExplanation},
		Frequency:     declarations.FrequencyModerate,
		PolicyVersion: 1,
	}}
	guide := stubGuidance{"a-1": {
		AssignmentID:   "a-1",
		PermittedText:  "Use AI to explain concepts.",
		ProhibitedText: "Do not submit generated prose.",
		Examples:       &guidance.Examples{Permitted: []string{"asking for an analogy"}},
	}}
	return store, NewFeedbackService(store, decls, guide)
}

func strPtr(s string) *string { return &s }

func TestFeedbackFiltersTemplatesByCategoryAndVersion(t *testing.T) {
	_, fb := feedbackFixture()

	out, err := fb.Feedback(context.Background(), "s-1", declID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.PolicyVersion)
	assert.Equal(t, declarations.FrequencyModerate, out.Frequency)
	require.NotNil(t, out.Guidance)
	assert.Equal(t, "Use AI to explain concepts.", out.Guidance.PermittedText)
	require.NotNil(t, out.PolicyDocumentURL)
	assert.Equal(t, "https://policies.example.edu/ai-v2.pdf", *out.PolicyDocumentURL)

	var texts []string
	for _, tpl := range out.FeedbackTemplates {
		texts = append(texts, tpl.TemplateText)
	}
	assert.Equal(t, []string{"Keep your prompts.", "Explain in your own words."}, texts)
}

func TestFeedbackWithoutGuidanceOrTemplates(t *testing.T) {
	store, _ := feedbackFixture()
	store.templates = nil
	fb := NewFeedbackService(store, stubDeclarations{declID: {ID: declID, StudentID: "s-1", AssignmentID: "a-9", PolicyVersion: 1}}, stubGuidance{})

	out, err := fb.Feedback(context.Background(), "s-1", declID)
	require.NoError(t, err)
	assert.Nil(t, out.Guidance)
	assert.NotNil(t, out.FeedbackTemplates)
	assert.Empty(t, out.FeedbackTemplates)
}

func TestFeedbackErrors(t *testing.T) {
	store, fb := feedbackFixture()
	ctx := context.Background()

	_, err := fb.Feedback(ctx, "s-2", declID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = fb.Feedback(ctx, "s-1", "5d1f6b0e-3c2a-4f55-9a51-000000000099")
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	store.docs = nil
	_, err = fb.Feedback(ctx, "s-1", declID)
	assert.ErrorIs(t, err, ErrNoCurrent)
}

func newTestRouter(store *memStore, fb *FeedbackService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	// Declarations own the /declarations subtree; feedback must still resolve.
	r.Route("/declarations", func(r chi.Router) {
		r.Get("/{declarationID}", func(w http.ResponseWriter, _ *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"route": "declaration"})
		})
	})
	NewHandler(logger, newTestService(store), fb, rbac.Middleware{Gate: rbac.NewGate(nil, logger)}).MountRoutes(r)
	return r
}

func requestAs(t *testing.T, method, target, body, userID string, role rbac.Role) *http.Request {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID == "" {
		return req
	}
	p, err := rbac.NewPrincipal(userID, role, 1)
	require.NoError(t, err)
	return req.WithContext(rbac.WithPrincipal(req.Context(), p))
}

func TestHandlerUploadGatedOnPolicyWrite(t *testing.T) {
	store := &memStore{}
	_, fb := feedbackFixture()
	router := newTestRouter(store, fb)
	body := `{"version":1,"title":"AI use policy"}`

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodPost, "/policy/upload", body, "i-1", rbac.RoleInstructor))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodPost, "/policy/upload", body, "admin-1", rbac.RoleAdmin))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodPost, "/policy/upload", body, "admin-1", rbac.RoleAdmin))
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "greater than the current version")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/policy/current", "", "s-1", rbac.RoleStudent))
	require.Equal(t, http.StatusOK, rr.Code)
	var doc Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	assert.Equal(t, 1, doc.Version)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/policy/current", "", "", ""))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerCurrentWithoutPolicy(t *testing.T) {
	_, fb := feedbackFixture()
	router := newTestRouter(&memStore{}, fb)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/policy/current", "", "s-1", rbac.RoleStudent))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerFeedbackBesideDeclarationRoutes(t *testing.T) {
	store, fb := feedbackFixture()
	router := newTestRouter(store, fb)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/declarations/"+declID+"/feedback", "", "s-1", rbac.RoleStudent))
	require.Equal(t, http.StatusOK, rr.Code)
	var out Feedback
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	assert.Equal(t, declID, out.DeclarationID)
	assert.Len(t, out.FeedbackTemplates, 2)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/declarations/"+declID, "", "s-1", rbac.RoleStudent))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"route":"declaration"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, requestAs(t, http.MethodGet, "/declarations/"+declID+"/feedback", "", "i-1", rbac.RoleInstructor))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
