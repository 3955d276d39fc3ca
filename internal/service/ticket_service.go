package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/grievance-desk/internal/auth"
	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/repository"
	apperrors "github.com/spec-kit/grievance-desk/pkg/util/errorutil"
	"github.com/spec-kit/grievance-desk/pkg/util/sanitize"
	"github.com/spec-kit/grievance-desk/pkg/util/validation"
)

const (
	adminTicketsPerPage = 10
	dashboardPageSize   = 50
	latestTicketsCount  = 5
)

// AttachmentProcessor converts one upload into an unsaved attachment record.
type AttachmentProcessor interface {
	Process(ctx context.Context, upload media.Upload, ticketID, ownerID int64) (*domain.TicketAttachment, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets     repository.TicketRepository
	users       repository.UserRepository
	categories  repository.CategoryRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	history     repository.TicketHistoryRepository
	processor   AttachmentProcessor
	store       media.Store
	lifecycle   *LifecycleManager
	assignments *AssignmentService
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	cfg         config.TicketConfig
	bcryptCost  int
	hashSecret  func(cost int) (string, error)
	now         func() time.Time
}

// TicketDependencies bundles repositories and collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	UserRepo       repository.UserRepository
	CategoryRepo   repository.CategoryRepository
	CommentRepo    repository.CommentRepository
	AttachmentRepo repository.AttachmentRepository
	HistoryRepo    repository.TicketHistoryRepository
	Processor      AttachmentProcessor
	Store          media.Store
	Lifecycle      *LifecycleManager
	Assignments    *AssignmentService
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	Config         config.TicketConfig
	BcryptCost     int
	Clock          func() time.Time
}

// TicketSubmission is the intake form.
type TicketSubmission struct {
	Name          string                `json:"name" validate:"required,max=100"`
	Email         string                `json:"email" validate:"required,email,max=150"`
	Phone         string                `json:"phone" validate:"required,max=20"`
	Subject       string                `json:"subject" validate:"required,max=255"`
	Description   string                `json:"description" validate:"required"`
	Priority      domain.TicketPriority `json:"priority" validate:"required,oneof=low medium high"`
	CategoryID    int64                 `json:"category" validate:"required,gt=0"`
	SubCategoryID *int64                `json:"sub_category" validate:"omitempty,gt=0"`
	Attachments   []media.Upload        `json:"attachments"`
	IPAddress     string                `json:"-"`
	UserAgent     string                `json:"-"`
}

// TicketUpdateInput describes editable ticket fields.
type TicketUpdateInput struct {
	Subject     string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	AssigneeID  *int64 `json:"assigned_user_id" validate:"omitempty,gt=0"`
}

// TicketListOptions narrows dashboard listings.
type TicketListOptions struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Search     *string
	Page       int
	PerPage    int
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Items   []domain.Ticket
	Total   int64
	Page    int
	PerPage int
}

// AdminDashboard aggregates figures for administrators.
type AdminDashboard struct {
	Stats         *domain.TicketStats
	LatestTickets []domain.Ticket
	NewUsersToday int64
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cost := deps.BcryptCost
	if cost <= 0 {
		cost = 12
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		users:       deps.UserRepo,
		categories:  deps.CategoryRepo,
		comments:    deps.CommentRepo,
		attachments: deps.AttachmentRepo,
		history:     deps.HistoryRepo,
		processor:   deps.Processor,
		store:       deps.Store,
		lifecycle:   deps.Lifecycle,
		assignments: deps.Assignments,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		cfg:         deps.Config,
		bcryptCost:  cost,
		hashSecret:  auth.UnusablePasswordHash,
		now:         clock,
	}
}

// CreateTicket validates a submission, resolves the requester, persists the ticket,
// processes each attachment in order and sends the confirmation SMS. Only validation,
// requester resolution and the ticket insert can fail the call.
func (s *TicketService) CreateTicket(ctx context.Context, sub TicketSubmission, actor *domain.User) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	normalizeSubmission(&sub)
	if err := s.validateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	requester, err := s.resolveRequester(ctx, sub, actor)
	if err != nil {
		return nil, err
	}

	now := s.now()
	seq, err := s.tickets.NextSequence(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	due := now.AddDate(0, 0, s.dueDays())
	ticket := &domain.Ticket{
		TicketNumber:  FormatTicketNumber(s.cfg.NumberPrefix, now, seq),
		RequesterID:   requester.ID,
		CategoryID:    sub.CategoryID,
		SubCategoryID: sub.SubCategoryID,
		AssigneeID:    s.defaultAssignee(ctx),
		Subject:       sub.Subject,
		Description:   sub.Description,
		Priority:      sub.Priority,
		Status:        domain.TicketStatusOpen,
		Source:        domain.TicketSourceWeb,
		IPAddress:     sub.IPAddress,
		UserAgent:     sub.UserAgent,
		DueDate:       &due,
		Requester:     requester,
	}
	if actor.ID != requester.ID {
		ticket.CreatedByID = int64Ptr(actor.ID)
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	ticket.Attachments = s.storeAttachments(ctx, ticket, requester.ID, sub.Attachments)

	phone := requester.PhoneValue()
	if phone == "" {
		phone = sub.Phone
	}
	publishEvent(ctx, s.dispatcher, s.logger, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  int64Ptr(actor.ID),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			RequesterID:  requester.ID,
			Phone:        phone,
			Priority:     ticket.Priority,
			Subject:      ticket.Subject,
		},
	})
	return ticket, nil
}

// FormatTicketNumber renders PREFIX-YYYYMMDD-NNNN from a sequence value.
func FormatTicketNumber(prefix string, at time.Time, seq int64) string {
	if prefix == "" {
		prefix = "UCC"
	}
	return fmt.Sprintf("%s-%s-%04d", strings.ToUpper(prefix), at.Format("20060102"), seq)
}

func normalizeSubmission(sub *TicketSubmission) {
	sub.Name = sanitize.Text(sub.Name)
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	sub.Phone = strings.TrimSpace(sub.Phone)
	sub.Subject = sanitize.Text(sub.Subject)
	sub.Description = sanitize.Text(sub.Description)
	sub.Priority = domain.TicketPriority(strings.ToLower(strings.TrimSpace(string(sub.Priority))))
	if sub.SubCategoryID != nil && *sub.SubCategoryID == 0 {
		sub.SubCategoryID = nil
	}
}

func (s *TicketService) validateSubmission(ctx context.Context, sub TicketSubmission) error {
	fields := map[string]string{}
	if err := validation.Struct(sub); err != nil {
		var domainErr *apperrors.DomainError
		if !errors.As(err, &domainErr) {
			return err
		}
		if f, ok := domainErr.Details["fields"].(map[string]string); ok {
			for k, v := range f {
				fields[k] = v
			}
		}
	}

	maxFiles := s.cfg.MaxAttachments
	if maxFiles <= 0 {
		maxFiles = 10
	}
	if len(sub.Attachments) > maxFiles {
		fields["attachments"] = fmt.Sprintf("attachments may contain at most %d items", maxFiles)
	}
	maxBytes := s.cfg.MaxAttachmentBytes
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	for i, upload := range sub.Attachments {
		if upload == nil {
			continue
		}
		key := fmt.Sprintf("attachments.%d", i)
		if !media.IsAllowed(upload.Filename(), upload.ContentType()) {
			fields[key] = "file must be one of: " + strings.Join(media.AllowedExtensions(), ", ")
			continue
		}
		if upload.Size() > maxBytes {
			fields[key] = fmt.Sprintf("file may not be larger than %d KiB", maxBytes>>10)
		}
	}

	if _, failed := fields["category"]; !failed && sub.CategoryID > 0 {
		if field, msg := s.checkCategory(ctx, sub.CategoryID, sub.SubCategoryID); field != "" {
			fields[field] = msg
		}
	}

	if len(fields) > 0 {
		return apperrors.NewValidationError("validation failed", map[string]any{"fields": fields})
	}
	return nil
}

// checkCategory names the offending field when the category pair is unusable.
func (s *TicketService) checkCategory(ctx context.Context, categoryID int64, subCategoryID *int64) (string, string) {
	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil || !category.IsActive || !category.IsTopLevel() {
		return "category", "selected category is invalid"
	}
	if subCategoryID == nil {
		return "", ""
	}
	sub, err := s.categories.GetByID(ctx, *subCategoryID)
	if err != nil || !sub.IsActive || sub.ParentID == nil || *sub.ParentID != category.ID {
		return "sub_category", "selected sub category does not belong to the category"
	}
	return "", ""
}

// resolveRequester returns the account the ticket belongs to. End users file for
// themselves and only have blank profile fields filled in; staff file on behalf of
// someone identified by email, who is created on first sight.
func (s *TicketService) resolveRequester(ctx context.Context, sub TicketSubmission, actor *domain.User) (*domain.User, error) {
	if actor.Role == domain.RoleEndUser {
		changed := false
		if strings.TrimSpace(actor.Name) == "" && sub.Name != "" {
			actor.Name = sub.Name
			changed = true
		}
		if actor.EmailValue() == "" && sub.Email != "" {
			email := sub.Email
			actor.Email = &email
			changed = true
		}
		if actor.PhoneValue() == "" && sub.Phone != "" {
			phone := sub.Phone
			actor.Phone = &phone
			changed = true
		}
		if changed {
			if err := s.users.Update(ctx, actor); err != nil {
				return nil, duplicateAsConflict(err, "profile details already belong to another account")
			}
		}
		return actor, nil
	}

	existing, err := s.users.GetByEmail(ctx, sub.Email)
	if err == nil {
		return existing, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := s.hashSecret(s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	email, phone := sub.Email, sub.Phone
	user := &domain.User{
		Name:         sub.Name,
		Email:        &email,
		Phone:        &phone,
		PasswordHash: hash,
		Role:         domain.RoleEndUser,
	}
	created, err := s.users.FirstOrCreateByEmail(ctx, user)
	if err != nil {
		return nil, duplicateAsConflict(err, "phone number already belongs to another account")
	}
	if created {
		s.logger.Info("requester account created", zap.Int64("user_id", user.ID))
		publishEvent(ctx, s.dispatcher, s.logger, events.Event{
			Type:    events.EventUserWelcomed,
			ActorID: int64Ptr(actor.ID),
			Payload: events.UserWelcomedPayload{UserID: user.ID, Name: user.Name, Phone: user.PhoneValue()},
		})
	}
	return user, nil
}

func (s *TicketService) defaultAssignee(ctx context.Context) *int64 {
	if s.cfg.DefaultAssigneeID <= 0 {
		return nil
	}
	if _, err := s.users.GetByID(ctx, s.cfg.DefaultAssigneeID); err != nil {
		s.logger.Warn("default assignee unavailable", zap.Int64("user_id", s.cfg.DefaultAssigneeID), zap.Error(err))
		return nil
	}
	return int64Ptr(s.cfg.DefaultAssigneeID)
}

func (s *TicketService) dueDays() int {
	if s.cfg.DueDays <= 0 {
		return 3
	}
	return s.cfg.DueDays
}

// storeAttachments processes uploads sequentially; a failure only loses that upload.
func (s *TicketService) storeAttachments(ctx context.Context, ticket *domain.Ticket, ownerID int64, uploads []media.Upload) []domain.TicketAttachment {
	stored := make([]domain.TicketAttachment, 0, len(uploads))
	if s.processor == nil {
		return stored
	}
	for i, upload := range uploads {
		if upload == nil || !upload.Valid() {
			s.logger.Warn("skipping invalid uploaded file", zap.Int64("ticket_id", ticket.ID), zap.Int("index", i))
			continue
		}
		att, err := s.processor.Process(ctx, upload, ticket.ID, ownerID)
		if err != nil {
			s.logger.Error("attachment processing failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("file", upload.Filename()),
				zap.Error(err))
			continue
		}
		if err := s.attachments.Create(ctx, att); err != nil {
			s.logger.Error("attachment record failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("path", att.Path),
				zap.Error(err))
			continue
		}
		stored = append(stored, *att)
	}
	return stored
}

// ListDashboard returns tickets visible to the actor, newest first: end users see their
// own, support agents the ones they created or are assigned, administrators all.
func (s *TicketService) ListDashboard(ctx context.Context, actor *domain.User, opts TicketListOptions) (*TicketPage, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = dashboardPageSize
	}
	filter := repository.TicketFilter{
		Statuses:   opts.Statuses,
		Priorities: opts.Priorities,
		SearchTerm: opts.Search,
	}
	switch actor.Role {
	case domain.RoleEndUser:
		filter.RequesterID = int64Ptr(actor.ID)
	case domain.RoleSupportAgent:
		filter.InvolvedUserID = int64Ptr(actor.ID)
	}
	return s.listPage(ctx, filter, opts.Page, perPage)
}

// ListAdminTickets pages through all tickets for administrators.
func (s *TicketService) ListAdminTickets(ctx context.Context, actor *domain.User, page int) (*TicketPage, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.listPage(ctx, repository.TicketFilter{}, page, adminTicketsPerPage)
}

func (s *TicketService) listPage(ctx context.Context, filter repository.TicketFilter, page, perPage int) (*TicketPage, error) {
	if page < 1 {
		page = 1
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	items, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	total, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachPeople(ctx, items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Ticket{}
	}
	return &TicketPage{Items: items, Total: total, Page: page, PerPage: perPage}, nil
}

// GetTicket loads a ticket with its people, categories, comments and attachments.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	single := []domain.Ticket{*ticket}
	if err := s.attachPeople(ctx, single); err != nil {
		return nil, err
	}
	ticket = &single[0]

	if ticket.Category, err = s.optionalCategory(ctx, &ticket.CategoryID); err != nil {
		return nil, err
	}
	if ticket.SubCategory, err = s.optionalCategory(ctx, ticket.SubCategoryID); err != nil {
		return nil, err
	}
	if ticket.Comments, err = s.comments.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	if ticket.Attachments, err = s.attachments.ListByTicket(ctx, ticket.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket.
func (s *TicketService) ListHistory(ctx context.Context, actor *domain.User, ticketID int64) ([]domain.TicketHistory, error) {
	if _, err := s.loadVisible(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// UpdateTicket edits subject and description; staff may also change the assignee,
// which is kept when absent.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID int64, input TicketUpdateInput) (*domain.Ticket, error) {
	input.Subject = sanitize.Text(input.Subject)
	input.Description = sanitize.Text(input.Description)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if input.AssigneeID != nil && !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("only staff may change the assignee")
	}

	ticket.Subject = input.Subject
	ticket.Description = input.Description
	if input.AssigneeID != nil && !sameID(ticket.AssigneeID, input.AssigneeID) {
		if s.assignments == nil {
			return nil, apperrors.NewInternalError(errors.New("assignment service not configured"))
		}
		assignee, err := s.assignments.loadAssignee(ctx, *input.AssigneeID)
		if err != nil {
			return nil, err
		}
		if err := s.assignments.apply(ctx, actor, ticket, assignee); err != nil {
			return nil, err
		}
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// AssignTicket delegates to the assignment service.
func (s *TicketService) AssignTicket(ctx context.Context, actor *domain.User, ticketID, assigneeID int64) (*domain.Ticket, error) {
	if s.assignments == nil {
		return nil, apperrors.NewInternalError(errors.New("assignment service not configured"))
	}
	return s.assignments.AssignTicket(ctx, actor, ticketID, assigneeID)
}

// UpdateStatus is the staff entry point into the lifecycle manager.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.User, ticketID int64, status domain.TicketStatus, assigneeID *int64) (*domain.Ticket, error) {
	if err := requireStaff(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewFieldError("status", "status must be one of [open in_progress resolved closed reopened]")
	}
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if assigneeID != nil && s.assignments != nil {
		if _, err := s.assignments.loadAssignee(ctx, *assigneeID); err != nil {
			return nil, err
		}
	}
	if err := s.lifecycle.SetStatus(ctx, ticket, status, assigneeID, int64Ptr(actor.ID)); err != nil {
		return nil, err
	}
	return ticket, nil
}

// DeleteTicket removes the ticket, its comments and attachment rows, and the files
// stored under its directory. Requesters may delete their own tickets.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID int64) error {
	ticket, err := s.loadVisible(ctx, actor, ticketID)
	if err != nil {
		return err
	}
	if actor.Role == domain.RoleSupportAgent {
		return apperrors.NewForbidden("support agents cannot delete tickets")
	}
	if err := s.tickets.Delete(ctx, ticket.ID); err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return apperrors.MapError(err)
	}
	if s.store != nil {
		if err := s.store.RemoveAll(ctx, media.TicketDir(ticket.ID)); err != nil {
			s.logger.Error("remove ticket files failed", zap.Int64("ticket_id", ticket.ID), zap.Error(err))
		}
	}
	return nil
}

// Dashboard returns administrator figures.
func (s *TicketService) Dashboard(ctx context.Context, actor *domain.User) (*AdminDashboard, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	stats, err := s.tickets.Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	latest, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{Limit: latestTicketsCount})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.attachPeople(ctx, latest); err != nil {
		return nil, err
	}
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	newUsers, err := s.users.CountCreatedSince(ctx, midnight)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if latest == nil {
		latest = []domain.Ticket{}
	}
	return &AdminDashboard{Stats: stats, LatestTickets: latest, NewUsersToday: newUsers}, nil
}

func (s *TicketService) loadVisible(ctx context.Context, actor *domain.User, ticketID int64) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role == domain.RoleEndUser && ticket.RequesterID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

// attachPeople fills requester and assignee on each ticket, loading each user once.
func (s *TicketService) attachPeople(ctx context.Context, tickets []domain.Ticket) error {
	cache := map[int64]*domain.User{}
	load := func(id int64) (*domain.User, error) {
		if u, ok := cache[id]; ok {
			return u, nil
		}
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				cache[id] = nil
				return nil, nil
			}
			return nil, apperrors.MapError(err)
		}
		cache[id] = u
		return u, nil
	}
	for i := range tickets {
		var err error
		if tickets[i].Requester, err = load(tickets[i].RequesterID); err != nil {
			return err
		}
		if tickets[i].AssigneeID != nil {
			if tickets[i].Assignee, err = load(*tickets[i].AssigneeID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *TicketService) optionalCategory(ctx context.Context, id *int64) (*domain.Category, error) {
	if id == nil {
		return nil, nil
	}
	category, err := s.categories.GetByID(ctx, *id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

func duplicateAsConflict(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return apperrors.NewConflict(message, nil)
	}
	return apperrors.MapError(err)
}
