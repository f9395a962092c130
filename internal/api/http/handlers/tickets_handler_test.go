package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	httptransport "github.com/opsdesk/callback-service/internal/api/http"
	"github.com/opsdesk/callback-service/internal/api/http/handlers"
	"github.com/opsdesk/callback-service/internal/auth"
	"github.com/opsdesk/callback-service/internal/directory"
	"github.com/opsdesk/callback-service/internal/domain"
	"github.com/opsdesk/callback-service/internal/observability"
	"github.com/opsdesk/callback-service/internal/persistence"
	"github.com/opsdesk/callback-service/internal/repository"
	"github.com/opsdesk/callback-service/internal/service"
	apperrors "github.com/opsdesk/callback-service/pkg/util/errorutil"
)

type memTicketRepo struct {
	tickets    map[string]*domain.Ticket
	lastFilter repository.TicketFilter
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (m *memTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = uuid.NewString()
	ticket.CreatedOn = time.Now().UTC()
	ticket.Notes = []domain.Note{}
	copied := *ticket
	m.tickets[ticket.ID] = &copied
	return nil
}

func (m *memTicketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	stored, ok := m.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	copied := *ticket
	copied.Notes = stored.Notes
	m.tickets[ticket.ID] = &copied
	return nil
}

func (m *memTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := m.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (m *memTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	m.lastFilter = filter
	var out []domain.Ticket
	for _, t := range m.tickets {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTicketRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.tickets, id)
	return nil
}

func (m *memTicketRepo) CountByStatusDepartment(ctx context.Context) ([]repository.StatusCount, error) {
	return nil, nil
}

func (m *memTicketRepo) CountCreatedSince(ctx context.Context, since time.Time) ([]repository.StatusCount, error) {
	return nil, nil
}

type memNoteRepo struct {
	notes map[string]*domain.Note
}

func newMemNoteRepo() *memNoteRepo {
	return &memNoteRepo{notes: map[string]*domain.Note{}}
}

func (m *memNoteRepo) Create(ctx context.Context, note *domain.Note) error {
	note.Timestamp = time.Now().UTC()
	copied := *note
	m.notes[note.ID] = &copied
	return nil
}

func (m *memNoteRepo) DeleteFromTicket(ctx context.Context, ticketID, noteID string) error {
	note, ok := m.notes[noteID]
	if !ok || note.TicketID != ticketID {
		return pgx.ErrNoRows
	}
	delete(m.notes, noteID)
	return nil
}

type memDirectoryClient struct {
	users []domain.DirectoryUser
	err   error
}

func (m *memDirectoryClient) ListUsers(ctx context.Context) ([]domain.DirectoryUser, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

type testEnv struct {
	app     *fiber.App
	tickets *memTicketRepo
	notes   *memNoteRepo
	graph   *memDirectoryClient
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tickets := newMemTicketRepo()
	notes := newMemNoteRepo()
	graph := &memDirectoryClient{}

	logger := zap.NewNop()
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		NoteRepo:   notes,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", &persistence.Postgres{}, &persistence.Redis{}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(directory.NewCache(graph, nil, logger)),
		AuthMiddleware: auth.NewMiddleware(nil, true, logger),
	})

	return &testEnv{app: app, tickets: tickets, notes: notes, graph: graph}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var decoded map[string]any
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}
	return resp, decoded
}

var validTicket = map[string]any{
	"fullName":    "Jo",
	"phoneNumber": "555",
	"email":       "jo@x.com",
	"reason":      "billing",
	"priority":    "Low",
	"status":      "Open Call",
	"assignedTo":  "Kim",
	"reportedBy":  "Sam",
	"department":  "CRP",
}

func TestCreateTicketReturnsCreatedRecord(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodPost, "/tickets", validTicket)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", resp.StatusCode, body)
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data envelope: %v", body)
	}
	if data["id"] == "" || data["id"] == nil {
		t.Fatalf("id not generated: %v", data)
	}
	if data["createdOn"] == "" || data["createdOn"] == nil {
		t.Fatalf("createdOn not set: %v", data)
	}
	if data["status"] != "Open Call" || data["department"] != "CRP" {
		t.Fatalf("enums not in display form: %v", data)
	}
	notes, ok := data["notes"].([]any)
	if !ok || len(notes) != 0 {
		t.Fatalf("notes = %v, want empty array", data["notes"])
	}
}

func TestCreateTicketRejectsIncompletePayload(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]any{"fullName": "Jo"}
	resp, body := env.do(t, http.MethodPost, "/tickets", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if _, ok := body["error"]; !ok {
		t.Fatalf("missing error envelope: %v", body)
	}
}

func TestCreateTicketRejectsUnknownEnumValue(t *testing.T) {
	env := newTestEnv(t)

	payload := map[string]any{}
	for k, v := range validTicket {
		payload[k] = v
	}
	payload["status"] = "Reopened"

	resp, _ := env.do(t, http.MethodPost, "/tickets", payload)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestGetTicketUnknownIDReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/tickets/"+uuid.NewString(), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetTicketMalformedIDReturnsBadRequest(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/tickets/not-a-uuid", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListTicketsRejectsInvalidFilter(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/tickets?status=Reopened", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListTicketsMapsFiltersToStorageForm(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/tickets?status=Open+Call&department=Education%2FMigration&search=alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	filter := env.tickets.lastFilter
	if filter.Status == nil || *filter.Status != domain.TicketStatusOpenCall {
		t.Fatalf("status filter = %v", filter.Status)
	}
	if filter.Department == nil || *filter.Department != domain.DepartmentEducationMigration {
		t.Fatalf("department filter = %v", filter.Department)
	}
	if filter.Search != "alice" {
		t.Fatalf("search filter = %q", filter.Search)
	}
}

func TestPatchTicketChangesOnlyPresentFields(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(t, http.MethodPost, "/tickets", validTicket)
	id := created["data"].(map[string]any)["id"].(string)

	resp, body := env.do(t, http.MethodPatch, "/tickets/"+id, map[string]any{"status": "Closed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %v)", resp.StatusCode, body)
	}

	data := body["data"].(map[string]any)
	if data["status"] != "Closed" {
		t.Fatalf("status = %v, want Closed", data["status"])
	}
	if data["fullName"] != "Jo" || data["priority"] != "Low" || data["assignedTo"] != "Kim" {
		t.Fatalf("untouched fields changed: %v", data)
	}
}

func TestPatchUnknownTicketReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPatch, "/tickets/"+uuid.NewString(), map[string]any{"status": "Closed"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteTicketReturnsNoContentThenNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(t, http.MethodPost, "/tickets", validTicket)
	id := created["data"].(map[string]any)["id"].(string)

	resp, _ := env.do(t, http.MethodDelete, "/tickets/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/tickets/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/tickets/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("second delete = %d, want 404", resp.StatusCode)
	}
}

func TestAddNoteToTicket(t *testing.T) {
	env := newTestEnv(t)

	_, created := env.do(t, http.MethodPost, "/tickets", validTicket)
	id := created["data"].(map[string]any)["id"].(string)

	resp, body := env.do(t, http.MethodPost, "/tickets/"+id+"/notes", map[string]any{
		"content": "call back tomorrow",
		"author":  "Kim",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %v)", resp.StatusCode, body)
	}

	data := body["data"].(map[string]any)
	if data["id"] == nil || data["timestamp"] == nil {
		t.Fatalf("server-assigned fields missing: %v", data)
	}
	if data["content"] != "call back tomorrow" || data["author"] != "Kim" {
		t.Fatalf("note fields = %v", data)
	}
}

func TestAddNoteToUnknownTicketReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/tickets/"+uuid.NewString()+"/notes", map[string]any{
		"content": "x", "author": "y",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestDeleteNoteRequiresMatchingTicket(t *testing.T) {
	env := newTestEnv(t)

	_, first := env.do(t, http.MethodPost, "/tickets", validTicket)
	firstID := first["data"].(map[string]any)["id"].(string)
	_, second := env.do(t, http.MethodPost, "/tickets", validTicket)
	secondID := second["data"].(map[string]any)["id"].(string)

	_, note := env.do(t, http.MethodPost, "/tickets/"+firstID+"/notes", map[string]any{
		"content": "x", "author": "y",
	})
	noteID := note["data"].(map[string]any)["id"].(string)

	resp, _ := env.do(t, http.MethodDelete, "/tickets/"+secondID+"/notes/"+noteID, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("mismatched delete = %d, want 404", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/tickets/"+firstID+"/notes/"+noteID, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("matched delete = %d, want 204", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
	if body["timestamp"] == nil {
		t.Fatalf("missing timestamp: %v", body)
	}
}

func TestListUsersServesDirectory(t *testing.T) {
	env := newTestEnv(t)
	env.graph.users = []domain.DirectoryUser{
		{ID: "1", DisplayName: "Ana", Email: "ana@corp.com", UserPrincipalName: "ana@corp.com"},
	}

	resp, body := env.do(t, http.MethodGet, "/users", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	data, ok := body["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v", body["data"])
	}
}

func TestListUsersUpstreamFailureReturnsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.graph.err = apperrors.NewUpstreamError("directory graph request failed", nil)

	resp, _ := env.do(t, http.MethodGet, "/users", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestStatsEndpointZeroFillsAllBuckets(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/tickets/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	data := body["data"].(map[string]any)
	byStatus := data["byStatus"].(map[string]any)
	for _, status := range []string{"Open Call", "In Progress", "Closed"} {
		if _, ok := byStatus[status]; !ok {
			t.Fatalf("byStatus missing %q: %v", status, byStatus)
		}
	}
	byStatusDepartment := data["byStatusDepartment"].(map[string]any)
	open := byStatusDepartment["Open Call"].(map[string]any)
	for _, department := range []string{"CRP", "Education/Migration", "Skill Assessment"} {
		if _, ok := open[department]; !ok {
			t.Fatalf("byStatusDepartment missing %q: %v", department, open)
		}
	}
}
