package service

import (
	"context"

	"github.com/spec-kit/grievance-desk/internal/config"
	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/events"
)

var (
	superAdmin = &domain.User{ID: 1, Name: "Root", Email: strPtr("root@ucc.test"), Role: domain.RoleSuperAdmin}
	admin      = &domain.User{ID: 2, Name: "Admin", Email: strPtr("admin@ucc.test"), Phone: strPtr("9000000002"), Role: domain.RoleAdmin}
	agent      = &domain.User{ID: 3, Name: "Agent", Email: strPtr("agent@ucc.test"), Phone: strPtr("9000000003"), Role: domain.RoleSupportAgent}
	citizen    = &domain.User{ID: 4, Name: "Citizen", Email: strPtr("citizen@ucc.test"), Phone: strPtr("9000000004"), Role: domain.RoleEndUser}
	neighbour  = &domain.User{ID: 5, Name: "Neighbour", Phone: strPtr("9000000005"), Role: domain.RoleEndUser}
)

func strPtr(s string) *string { return &s }

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	return &cp
}

func testCategories() []domain.Category {
	parent := int64(1)
	return []domain.Category{
		{ID: 1, Name: "Roads", Slug: "roads", IsActive: true},
		{ID: 2, Name: "Potholes", Slug: "potholes", ParentID: &parent, IsActive: true},
		{ID: 3, Name: "Water", Slug: "water", IsActive: true},
		{ID: 4, Name: "Archived", Slug: "archived", IsActive: false},
	}
}

type ticketHarness struct {
	users       *fakeUserRepo
	tickets     *fakeTicketRepo
	categories  *fakeCategoryRepo
	comments    *fakeCommentRepo
	attachments *fakeAttachmentRepo
	history     *fakeHistoryRepo
	processor   *fakeProcessor
	store       *fakeStore
	sender      *recordingSender
	dispatcher  events.Dispatcher
	published   []events.Event

	lifecycle   *LifecycleManager
	assignments *AssignmentService
	ticketSvc   *TicketService
	commentSvc  *CommentService
	categorySvc *CategoryService
}

func newTicketHarness(cfg config.TicketConfig, seedTickets ...*domain.Ticket) *ticketHarness {
	h := &ticketHarness{
		users:       newFakeUserRepo(superAdmin, admin, agent, citizen, neighbour),
		tickets:     newFakeTicketRepo(seedTickets...),
		categories:  newFakeCategoryRepo(testCategories()...),
		comments:    &fakeCommentRepo{},
		attachments: &fakeAttachmentRepo{},
		history:     &fakeHistoryRepo{},
		processor:   &fakeProcessor{failFor: map[string]bool{}},
		store:       &fakeStore{},
		sender:      &recordingSender{},
		dispatcher:  events.NewInMemoryDispatcher(),
	}
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventUserWelcomed,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventCommentAdded,
	} {
		h.dispatcher.Subscribe(eventType, h.record)
	}

	smsCfg := config.SMSConfig{
		OTPTemplateID:           "tpl-otp",
		WelcomeTemplateID:       "tpl-welcome",
		TicketCreatedTemplateID: "tpl-ticket",
	}
	NewNotificationService(h.dispatcher, h.sender, nil, nil, smsCfg).RegisterHandlers()

	h.lifecycle = NewLifecycleManager(LifecycleDependencies{
		TicketRepo:  h.tickets,
		HistoryRepo: h.history,
		Dispatcher:  h.dispatcher,
		Clock:       fixedClock,
	})
	h.assignments = NewAssignmentService(AssignmentDependencies{
		TicketRepo:  h.tickets,
		UserRepo:    h.users,
		HistoryRepo: h.history,
		Dispatcher:  h.dispatcher,
	})
	h.ticketSvc = NewTicketService(TicketDependencies{
		TicketRepo:     h.tickets,
		UserRepo:       h.users,
		CategoryRepo:   h.categories,
		CommentRepo:    h.comments,
		AttachmentRepo: h.attachments,
		HistoryRepo:    h.history,
		Processor:      h.processor,
		Store:          h.store,
		Lifecycle:      h.lifecycle,
		Assignments:    h.assignments,
		Dispatcher:     h.dispatcher,
		Config:         cfg,
		BcryptCost:     4,
		Clock:          fixedClock,
	})
	h.commentSvc = NewCommentService(CommentDependencies{
		TicketRepo:  h.tickets,
		CommentRepo: h.comments,
		Lifecycle:   h.lifecycle,
		Dispatcher:  h.dispatcher,
	})
	h.categorySvc = NewCategoryService(h.categories)
	return h
}

func (h *ticketHarness) record(_ context.Context, event events.Event) error {
	h.published = append(h.published, event)
	return nil
}

func (h *ticketHarness) eventsOf(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range h.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func defaultTicketConfig() config.TicketConfig {
	return config.TicketConfig{
		NumberPrefix:       "UCC",
		DueDays:            3,
		MaxAttachments:     10,
		MaxAttachmentBytes: 50 << 20,
	}
}

func ticketFixture(id, requesterID int64, status domain.TicketStatus) *domain.Ticket {
	return &domain.Ticket{
		ID:           id,
		TicketNumber: FormatTicketNumber("UCC", testNow, id),
		RequesterID:  requesterID,
		CategoryID:   1,
		Subject:      "Streetlight out",
		Description:  "Dark at night",
		Priority:     domain.TicketPriorityMedium,
		Status:       status,
		Source:       domain.TicketSourceWeb,
	}
}
