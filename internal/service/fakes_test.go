package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/grievance-desk/internal/domain"
	"github.com/spec-kit/grievance-desk/internal/media"
	"github.com/spec-kit/grievance-desk/internal/repository"
	"github.com/spec-kit/grievance-desk/internal/sms"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo(seed ...*domain.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int64]*domain.User{}}
	for _, u := range seed {
		cp := *u
		r.users[u.ID] = &cp
		if u.ID > r.nextID {
			r.nextID = u.ID
		}
	}
	return r
}

func (r *fakeUserRepo) conflict(user *domain.User) error {
	for _, existing := range r.users {
		if existing.ID == user.ID {
			continue
		}
		if user.Email != nil && existing.EmailValue() == *user.Email {
			return fmt.Errorf("%w: users_email_key", repository.ErrDuplicate)
		}
		if user.Phone != nil && existing.PhoneValue() == *user.Phone {
			return fmt.Errorf("%w: users_phone_key", repository.ErrDuplicate)
		}
	}
	return nil
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.conflict(user); err != nil {
		return err
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = testNow
	user.UpdatedAt = testNow
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) FirstOrCreateByEmail(ctx context.Context, user *domain.User) (bool, error) {
	r.mu.Lock()
	for _, existing := range r.users {
		if user.Email != nil && existing.EmailValue() == *user.Email {
			*user = *existing
			r.mu.Unlock()
			return false, nil
		}
	}
	r.mu.Unlock()
	if err := r.Create(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := r.conflict(user); err != nil {
		return err
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.EmailValue() == email })
}

func (r *fakeUserRepo) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.PhoneValue() == phone })
}

func (r *fakeUserRepo) ListByRoles(_ context.Context, roles []domain.Role) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.User
	for _, u := range r.users {
		for _, role := range roles {
			if u.Role == role {
				out = append(out, *u)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeUserRepo) CountCreatedSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if !u.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *fakeUserRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int64
	nextID  int64
	tickets map[int64]*domain.Ticket
	updates int
}

func newFakeTicketRepo(seed ...*domain.Ticket) *fakeTicketRepo {
	r := &fakeTicketRepo{tickets: map[int64]*domain.Ticket{}}
	for _, t := range seed {
		cp := *t
		r.tickets[t.ID] = &cp
		if t.ID > r.nextID {
			r.nextID = t.ID
		}
	}
	return r
}

func (r *fakeTicketRepo) NextSequence(context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	return r.seq, nil
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ticket.ID = r.nextID
	ticket.CreatedAt = testNow
	ticket.UpdatedAt = testNow
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.updates++
	cp := *ticket
	r.tickets[ticket.ID] = &cp
	return nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.tickets, id)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTicketRepo) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tickets {
		if t.TicketNumber == number {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) matching(filter repository.TicketFilter) []domain.Ticket {
	var out []domain.Ticket
	for _, t := range r.tickets {
		if filter.RequesterID != nil && t.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.InvolvedUserID != nil && !sameID(t.CreatedByID, filter.InvolvedUserID) && !sameID(t.AssigneeID, filter.InvolvedUserID) {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(filter)
	if filter.Offset >= len(all) {
		return nil, nil
	}
	all = all[filter.Offset:]
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (r *fakeTicketRepo) Count(_ context.Context, filter repository.TicketFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *fakeTicketRepo) Stats(context.Context) (*domain.TicketStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := &domain.TicketStats{
		ByStatus:   map[domain.TicketStatus]int64{},
		ByPriority: map[domain.TicketPriority]int64{},
	}
	for _, t := range r.tickets {
		stats.Total++
		stats.ByStatus[t.Status]++
		stats.ByPriority[t.Priority]++
	}
	return stats, nil
}

type fakeCategoryRepo struct {
	mu         sync.Mutex
	nextID     int64
	categories map[int64]*domain.Category
	referenced map[int64]bool
}

func newFakeCategoryRepo(seed ...domain.Category) *fakeCategoryRepo {
	r := &fakeCategoryRepo{categories: map[int64]*domain.Category{}, referenced: map[int64]bool{}}
	for i := range seed {
		cp := seed[i]
		r.categories[cp.ID] = &cp
		if cp.ID > r.nextID {
			r.nextID = cp.ID
		}
	}
	return r
}

func (r *fakeCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.categories {
		if c.Slug == category.Slug {
			return fmt.Errorf("%w: categories_slug_key", repository.ErrDuplicate)
		}
	}
	r.nextID++
	category.ID = r.nextID
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, category *domain.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *category
	r.categories[category.ID] = &cp
	return nil
}

func (r *fakeCategoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return pgx.ErrNoRows
	}
	if r.referenced[id] {
		return fmt.Errorf("%w: tickets_category_id_fkey", repository.ErrReferenced)
	}
	delete(r.categories, id)
	for cid, c := range r.categories {
		if c.ParentID != nil && *c.ParentID == id {
			delete(r.categories, cid)
		}
	}
	return nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCategoryRepo) List(_ context.Context, activeOnly bool) ([]domain.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Category
	for _, c := range r.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeCategoryRepo) CountChildren(_ context.Context, id int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

type fakeCommentRepo struct {
	mu       sync.Mutex
	comments []domain.TicketComment
}

func (r *fakeCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = int64(len(r.comments) + 1)
	comment.CreatedAt = testNow
	r.comments = append(r.comments, *comment)
	return nil
}

func (r *fakeCommentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketComment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketComment
	for _, c := range r.comments {
		if c.TicketID == ticketID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeAttachmentRepo struct {
	mu          sync.Mutex
	attachments []domain.TicketAttachment
}

func (r *fakeAttachmentRepo) Create(_ context.Context, att *domain.TicketAttachment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	att.ID = int64(len(r.attachments) + 1)
	r.attachments = append(r.attachments, *att)
	return nil
}

func (r *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketAttachment
	for _, a := range r.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (r *fakeHistoryRepo) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) byType(changeType domain.TicketChangeType) []domain.TicketHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TicketHistory
	for _, e := range r.entries {
		if e.ChangeType == changeType {
			out = append(out, e)
		}
	}
	return out
}

type fakeOTPRepo struct {
	mu   sync.Mutex
	otps map[string]domain.OTP
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{otps: map[string]domain.OTP{}}
}

func (r *fakeOTPRepo) Upsert(_ context.Context, otp *domain.OTP) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.otps[otp.Mobile] = *otp
	return nil
}

func (r *fakeOTPRepo) GetByMobile(_ context.Context, mobile string) (*domain.OTP, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	otp, ok := r.otps[mobile]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &otp, nil
}

func (r *fakeOTPRepo) DeleteByMobile(_ context.Context, mobile string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.otps, mobile)
	return nil
}

func (r *fakeOTPRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for mobile, otp := range r.otps {
		if otp.ExpiresAt.Before(before) {
			delete(r.otps, mobile)
			n++
		}
	}
	return n, nil
}

// fakeProcessor stores every upload as-is and fails for the named files.
type fakeProcessor struct {
	mu      sync.Mutex
	failFor map[string]bool
	seen    []string
}

func (p *fakeProcessor) Process(_ context.Context, upload media.Upload, ticketID, ownerID int64) (*domain.TicketAttachment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, upload.Filename())
	if p.failFor[upload.Filename()] {
		return nil, fmt.Errorf("store %s: disk full", upload.Filename())
	}
	return &domain.TicketAttachment{
		TicketID:     ticketID,
		UserID:       ownerID,
		Path:         fmt.Sprintf("tickets/%d/images/%s", ticketID, upload.Filename()),
		OriginalName: upload.Filename(),
		MimeType:     upload.ContentType(),
		Size:         upload.Size(),
		Kind:         domain.AttachmentKindImage,
	}, nil
}

type fakeStore struct {
	mu      sync.Mutex
	removed []string
}

func (s *fakeStore) Put(context.Context, string, io.Reader) (int64, error) { return 0, nil }

func (s *fakeStore) RemoveAll(_ context.Context, relDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, relDir)
	return nil
}

func (s *fakeStore) Root() string { return "/srv/public" }

type recordingSender struct {
	mu       sync.Mutex
	messages []sms.Message
	err      error
}

func (s *recordingSender) Send(_ context.Context, msg sms.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSender) sent() []sms.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sms.Message(nil), s.messages...)
}

type fakeThrottle struct {
	mu      sync.Mutex
	limit   int
	hits    map[string]int
	cleared []string
}

func newFakeThrottle(limit int) *fakeThrottle {
	return &fakeThrottle{limit: limit, hits: map[string]int{}}
}

func (t *fakeThrottle) Blocked(_ context.Context, key string) (time.Duration, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.hits[key] >= t.limit {
		return 42 * time.Second, true, nil
	}
	return 0, false, nil
}

func (t *fakeThrottle) Hit(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits[key]++
	return nil
}

func (t *fakeThrottle) Clear(_ context.Context, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hits, key)
	t.cleared = append(t.cleared, key)
	return nil
}
