package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/api/http/handlers"
	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/observability"
	"github.com/spec-kit/grievance-desk/internal/repository"
	"github.com/spec-kit/grievance-desk/internal/service"
)

type routeUsers struct {
	repository.UserRepository
	users  map[int64]*domain.User
	nextID int64
}

func (r *routeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (r *routeUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.EmailValue() == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *routeUsers) FirstOrCreateByEmail(ctx context.Context, user *domain.User) (bool, error) {
	if existing, err := r.GetByEmail(ctx, user.EmailValue()); err == nil {
		*user = *existing
		return false, nil
	}
	r.nextID++
	user.ID = r.nextID
	cp := *user
	r.users[user.ID] = &cp
	return true, nil
}

type routeTickets struct {
	repository.TicketRepository
	tickets map[int64]*domain.Ticket
	seq     int64
}

func (r *routeTickets) NextSequence(context.Context) (int64, error) {
	r.seq++
	return r.seq, nil
}

func (r *routeTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	ticket.ID = int64(100 + len(r.tickets))
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *routeTickets) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *routeTickets) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

type routeCategories struct {
	repository.CategoryRepository
}

func (routeCategories) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	if id != 1 {
		return nil, pgx.ErrNoRows
	}
	return &domain.Category{ID: 1, Name: "Roads", Slug: "roads", IsActive: true}, nil
}

type routeAttachments struct {
	repository.AttachmentRepository
	created []domain.TicketAttachment
}

func (r *routeAttachments) Create(_ context.Context, att *domain.TicketAttachment) error {
	att.ID = int64(len(r.created) + 1)
	r.created = append(r.created, *att)
	return nil
}

type routeHistory struct {
	repository.TicketHistoryRepository
	entries []domain.TicketHistory
}

func (r *routeHistory) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.entries = append(r.entries, *entry)
	return nil
}

// routeProcessor records what reached it instead of touching the disk.
type routeProcessor struct {
	seen []string
}

func (p *routeProcessor) Process(_ context.Context, upload media.Upload, ticketID, ownerID int64) (*domain.TicketAttachment, error) {
	p.seen = append(p.seen, upload.Filename()+"|"+upload.ContentType())
	return &domain.TicketAttachment{
		TicketID:     ticketID,
		UserID:       ownerID,
		Path:         fmt.Sprintf("%s/images/%s", media.TicketDir(ticketID), upload.Filename()),
		OriginalName: upload.Filename(),
		MimeType:     upload.ContentType(),
		Size:         upload.Size(),
		Kind:         domain.AttachmentKindImage,
	}, nil
}

type routeFixture struct {
	app         *fiber.App
	tokens      *auth.TokenManager
	users       *routeUsers
	tickets     *routeTickets
	attachments *routeAttachments
	processor   *routeProcessor
	publicRoot  string
}

var (
	routeAdmin   = &domain.User{ID: 2, Name: "Admin", Email: strPtr("admin@ucc.test"), Role: domain.RoleAdmin}
	routeAgent   = &domain.User{ID: 3, Name: "Agent", Email: strPtr("agent@ucc.test"), Role: domain.RoleSupportAgent}
	routeCitizen = &domain.User{ID: 4, Name: "Citizen", Email: strPtr("citizen@ucc.test"), Role: domain.RoleEndUser}
)

func strPtr(s string) *string { return &s }

func newRouteFixture(t *testing.T) *routeFixture {
	t.Helper()
	agentID := routeAgent.ID
	f := &routeFixture{
		tokens: auth.NewTokenManager("route-secret", 30),
		users: &routeUsers{
			users:  map[int64]*domain.User{2: routeAdmin, 3: routeAgent, 4: routeCitizen},
			nextID: 10,
		},
		tickets: &routeTickets{tickets: map[int64]*domain.Ticket{
			7: {ID: 7, TicketNumber: "UCC-20250314-0007", RequesterID: 4, CategoryID: 1, AssigneeID: &agentID,
				Subject: "Pothole", Description: "Deep", Priority: domain.TicketPriorityMedium,
				Status: domain.TicketStatusOpen, Source: domain.TicketSourceWeb},
		}},
		attachments: &routeAttachments{},
		processor:   &routeProcessor{},
		publicRoot:  t.TempDir(),
	}
	history := &routeHistory{}

	lifecycle := service.NewLifecycleManager(service.LifecycleDependencies{
		TicketRepo:  f.tickets,
		HistoryRepo: history,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  f.tickets,
		UserRepo:    f.users,
		HistoryRepo: history,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     f.tickets,
		UserRepo:       f.users,
		CategoryRepo:   routeCategories{},
		AttachmentRepo: f.attachments,
		HistoryRepo:    history,
		Processor:      f.processor,
		Lifecycle:      lifecycle,
		Assignments:    assignments,
		Config: config.TicketConfig{
			NumberPrefix:       "UCC",
			DueDays:            3,
			MaxAttachments:     10,
			MaxAttachmentBytes: 50 << 20,
		},
		BcryptCost: 4,
	})

	metrics := observability.NewMetrics()
	f.app = fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler,
		ProxyHeader:  fiber.HeaderXForwardedFor,
	})
	RegisterMiddlewares(f.app, zap.NewNop(), metrics, 0)
	RegisterRoutes(f.app, RouteConfig{
		Health:         handlers.NewHealthHandler("grievance-desk", "test"),
		Auth:           handlers.NewAuthHandler(nil),
		Tickets:        handlers.NewTicketsHandler(tickets, nil, nil),
		StaffTickets:   handlers.NewStaffTicketsHandler(tickets),
		Staff:          handlers.NewStaffHandler(nil, nil),
		AuthMiddleware: auth.NewAuthMiddleware(f.tokens, f.users),
		Metrics:        metrics,
		PublicRoot:     f.publicRoot,
	})
	return f
}

func (f *routeFixture) bearer(t *testing.T, user *domain.User) string {
	t.Helper()
	token, _, err := f.tokens.GenerateToken(user)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *routeFixture) patchJSON(t *testing.T, user *domain.User, path, body string) (int, errorBody) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPatch, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, f.bearer(t, user))
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out errorBody
	_ = json.Unmarshal(raw, &out)
	return resp.StatusCode, out
}

func TestUpdateStatusRoutes(t *testing.T) {
	tests := []struct {
		name         string
		actor        *domain.User
		path         string
		body         string
		wantStatus   int
		wantTicket   domain.TicketStatus
		wantAssignee int64
	}{
		{
			name:         "admin route with assigned_user_id",
			actor:        routeAdmin,
			path:         "/admin/tickets/7/update-status",
			body:         `{"status":"closed","assigned_user_id":2}`,
			wantStatus:   fiber.StatusOK,
			wantTicket:   domain.TicketStatusClosed,
			wantAssignee: 2,
		},
		{
			name:         "support agent may update status",
			actor:        routeAgent,
			path:         "/admin/tickets/7/update-status",
			body:         `{"status":"in_progress"}`,
			wantStatus:   fiber.StatusOK,
			wantTicket:   domain.TicketStatusInProgress,
			wantAssignee: 3,
		},
		{
			name:         "short route keeps assigned_to",
			actor:        routeAdmin,
			path:         "/tickets/7/status",
			body:         `{"status":"resolved","assigned_to":2}`,
			wantStatus:   fiber.StatusOK,
			wantTicket:   domain.TicketStatusResolved,
			wantAssignee: 2,
		},
		{
			name:         "short route accepts assigned_user_id",
			actor:        routeAdmin,
			path:         "/tickets/7/status",
			body:         `{"status":"resolved","assigned_user_id":2}`,
			wantStatus:   fiber.StatusOK,
			wantTicket:   domain.TicketStatusResolved,
			wantAssignee: 2,
		},
		{
			name:         "end user forbidden",
			actor:        routeCitizen,
			path:         "/admin/tickets/7/update-status",
			body:         `{"status":"closed"}`,
			wantStatus:   fiber.StatusForbidden,
			wantTicket:   domain.TicketStatusOpen,
			wantAssignee: 3,
		},
		{
			name:         "unknown assignee rejected",
			actor:        routeAdmin,
			path:         "/admin/tickets/7/update-status",
			body:         `{"status":"closed","assigned_user_id":999}`,
			wantStatus:   fiber.StatusBadRequest,
			wantTicket:   domain.TicketStatusOpen,
			wantAssignee: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouteFixture(t)

			status, _ := f.patchJSON(t, tt.actor, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)

			stored := f.tickets.tickets[7]
			assert.Equal(t, tt.wantTicket, stored.Status)
			require.NotNil(t, stored.AssigneeID)
			assert.Equal(t, tt.wantAssignee, *stored.AssigneeID)
		})
	}
}

type formFile struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, values map[string]string, files []formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, file := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.name))
		h.Set(fiber.HeaderContentType, file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func ticketForm() map[string]string {
	return map[string]string{
		"name":        "Asha",
		"email":       "asha@example.com",
		"phone":       "9998887770",
		"subject":     "Streetlight out",
		"description": "Dark since Monday",
		"priority":    "high",
		"category":    "1",
	}
}

func TestCreateTicketFromMultipartForm(t *testing.T) {
	f := newRouteFixture(t)
	body, contentType := multipartBody(t, ticketForm(), []formFile{
		{field: "attachments[]", name: "photo.jpg", contentType: "image/jpeg", data: []byte{0xff, 0xd8, 0xff, 0xe0}},
		{field: "attachments", name: "clip.mp4", contentType: "video/mp4", data: []byte("mp4")},
	})

	req := httptest.NewRequest(fiber.MethodPost, "/tickets", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, f.bearer(t, routeAgent))
	req.Header.Set(fiber.HeaderUserAgent, "grievance-test/1.0")
	req.Header.Set(fiber.HeaderXForwardedFor, "203.0.113.9")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var out struct {
		Data struct {
			ID           int64  `json:"id"`
			TicketNumber string `json:"ticket_number"`
			Attachments  []struct {
				OriginalName string `json:"original_name"`
			} `json:"attachments"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Regexp(t, `^UCC-\d{8}-0001$`, out.Data.TicketNumber)
	require.Len(t, out.Data.Attachments, 2)

	assert.Equal(t, []string{"photo.jpg|image/jpeg", "clip.mp4|video/mp4"}, f.processor.seen)

	stored := f.tickets.tickets[out.Data.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "203.0.113.9", stored.IPAddress)
	assert.Equal(t, "grievance-test/1.0", stored.UserAgent)
	assert.Equal(t, int64(1), stored.CategoryID)
	assert.Equal(t, domain.TicketPriorityHigh, stored.Priority)
	require.NotNil(t, stored.CreatedByID)
	assert.Equal(t, routeAgent.ID, *stored.CreatedByID)

	requester, err := f.users.GetByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, requester.ID, stored.RequesterID)
}

func TestCreateTicketRejectsMalformedCategory(t *testing.T) {
	f := newRouteFixture(t)
	values := ticketForm()
	values["category"] = "roads"
	body, contentType := multipartBody(t, values, nil)

	req := httptest.NewRequest(fiber.MethodPost, "/tickets", body)
	req.Header.Set(fiber.HeaderContentType, contentType)
	req.Header.Set(fiber.HeaderAuthorization, f.bearer(t, routeAgent))
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	var out errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "VALIDATION_FAILED", out.Error.Code)
	fields, ok := out.Error.Details["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "category")
	assert.Len(t, f.tickets.tickets, 1, "only the seeded ticket exists")
	assert.Empty(t, f.processor.seen)
}

func TestStoredAttachmentsServedByExtension(t *testing.T) {
	f := newRouteFixture(t)
	dir := filepath.Join(f.publicRoot, "tickets", "7", "images")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	markup := []byte("<html><script>alert(1)</script></html>")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "evil-abcdefgh.bin"), markup, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip-abcdefgh.mp4"), markup, 0o644))

	tests := []struct {
		path            string
		wantType        string
		wantDisposition string
	}{
		{"/tickets/7/images/evil-abcdefgh.bin", "application/octet-stream", "attachment"},
		{"/tickets/7/images/clip-abcdefgh.mp4", "video/mp4", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := f.app.Test(httptest.NewRequest(fiber.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, fiber.StatusOK, resp.StatusCode)
			assert.Equal(t, tt.wantType, resp.Header.Get(fiber.HeaderContentType))
			assert.Equal(t, "nosniff", resp.Header.Get(fiber.HeaderXContentTypeOptions))
			assert.Equal(t, tt.wantDisposition, resp.Header.Get(fiber.HeaderContentDisposition))
		})
	}
}
