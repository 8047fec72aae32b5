package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/BradenHooton/mithaq/internal/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockMemberStore implements every member-facing store interface for testing
type MockMemberStore struct {
	GetByIDFunc                func(ctx context.Context, id string) (*models.Member, error)
	GetByEmailFunc             func(ctx context.Context, email string) (*models.Member, error)
	CreateFunc                 func(ctx context.Context, m *models.Member) (*models.Member, error)
	SuspendFunc                func(ctx context.Context, id string, until time.Time, reason string) (*models.Member, error)
	BanFunc                    func(ctx context.Context, id string, reason string, at time.Time) (*models.Member, error)
	ReactivateFunc             func(ctx context.Context, id string) (*models.Member, error)
	LiftSuspensionFunc         func(ctx context.Context, id string, now time.Time) (*models.Member, error)
	ListExpiredSuspensionsFunc func(ctx context.Context, now time.Time, limit int) ([]*models.Member, error)
	AddWarningFunc             func(ctx context.Context, w *models.Warning) (*models.Warning, error)
	ListWarningsFunc           func(ctx context.Context, memberID string) ([]models.Warning, error)
}

// membersByID returns a GetByIDFunc backed by a fixed set of members.
func membersByID(members ...*models.Member) func(ctx context.Context, id string) (*models.Member, error) {
	byID := make(map[string]*models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	return func(_ context.Context, id string) (*models.Member, error) {
		if m, ok := byID[id]; ok {
			cp := *m
			return &cp, nil
		}
		return nil, models.ErrNotFound
	}
}

func (m *MockMemberStore) GetByID(ctx context.Context, id string) (*models.Member, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMemberStore) GetByEmail(ctx context.Context, email string) (*models.Member, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockMemberStore) Create(ctx context.Context, member *models.Member) (*models.Member, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, member)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMemberStore) Suspend(ctx context.Context, id string, until time.Time, reason string) (*models.Member, error) {
	if m.SuspendFunc != nil {
		return m.SuspendFunc(ctx, id, until, reason)
	}
	return &models.Member{ID: id, SuspendUntil: &until, SuspensionReason: reason}, nil
}

func (m *MockMemberStore) Ban(ctx context.Context, id string, reason string, at time.Time) (*models.Member, error) {
	if m.BanFunc != nil {
		return m.BanFunc(ctx, id, reason, at)
	}
	return &models.Member{ID: id, IsBanned: true, BannedAt: &at, SuspensionReason: reason}, nil
}

func (m *MockMemberStore) Reactivate(ctx context.Context, id string) (*models.Member, error) {
	if m.ReactivateFunc != nil {
		return m.ReactivateFunc(ctx, id)
	}
	return &models.Member{ID: id, IsActive: true}, nil
}

func (m *MockMemberStore) LiftSuspension(ctx context.Context, id string, now time.Time) (*models.Member, error) {
	if m.LiftSuspensionFunc != nil {
		return m.LiftSuspensionFunc(ctx, id, now)
	}
	return &models.Member{ID: id, IsActive: true}, nil
}

func (m *MockMemberStore) ListExpiredSuspensions(ctx context.Context, now time.Time, limit int) ([]*models.Member, error) {
	if m.ListExpiredSuspensionsFunc != nil {
		return m.ListExpiredSuspensionsFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *MockMemberStore) AddWarning(ctx context.Context, w *models.Warning) (*models.Warning, error) {
	if m.AddWarningFunc != nil {
		return m.AddWarningFunc(ctx, w)
	}
	w.ID = "warning-1"
	return w, nil
}

func (m *MockMemberStore) ListWarnings(ctx context.Context, memberID string) ([]models.Warning, error) {
	if m.ListWarningsFunc != nil {
		return m.ListWarningsFunc(ctx, memberID)
	}
	return nil, nil
}

// MockGuardianStore implements ActiveGuardianFinder and GuardianStore for testing
type MockGuardianStore struct {
	FindActiveFunc               func(ctx context.Context, userID string) (*models.Guardian, error)
	CreateFunc                   func(ctx context.Context, g *models.Guardian) (*models.Guardian, error)
	GetByIDFunc                  func(ctx context.Context, id string) (*models.Guardian, error)
	ListByUserFunc               func(ctx context.Context, userID string) ([]*models.Guardian, error)
	ExistsOpenWithEmailFunc      func(ctx context.Context, userID, email string) (bool, error)
	ReviewFunc                   func(ctx context.Context, id string, review repositories.GuardianReview) (*models.Guardian, error)
	UpdateNotifyOnNewMessageFunc func(ctx context.Context, id string, notify bool) (*models.Guardian, error)
	SetAuthenticatorFunc         func(ctx context.Context, id string, encryptedSecret, nonce []byte) error
	MarkAuthenticatorUsedFunc    func(ctx context.Context, id string, at time.Time) error
}

// activeGuardians returns a FindActiveFunc serving one guardian per ward.
func activeGuardians(guardians ...*models.Guardian) func(ctx context.Context, userID string) (*models.Guardian, error) {
	byWard := make(map[string]*models.Guardian, len(guardians))
	for _, g := range guardians {
		byWard[g.UserID] = g
	}
	return func(_ context.Context, userID string) (*models.Guardian, error) {
		if g, ok := byWard[userID]; ok {
			return g, nil
		}
		return nil, models.ErrNotFound
	}
}

func (m *MockGuardianStore) FindActive(ctx context.Context, userID string) (*models.Guardian, error) {
	if m.FindActiveFunc != nil {
		return m.FindActiveFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianStore) Create(ctx context.Context, g *models.Guardian) (*models.Guardian, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, g)
	}
	g.ID = "guardian-1"
	g.Status = models.GuardianStatusPending
	return g, nil
}

func (m *MockGuardianStore) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianStore) ListByUser(ctx context.Context, userID string) ([]*models.Guardian, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockGuardianStore) ExistsOpenWithEmail(ctx context.Context, userID, email string) (bool, error) {
	if m.ExistsOpenWithEmailFunc != nil {
		return m.ExistsOpenWithEmailFunc(ctx, userID, email)
	}
	return false, nil
}

func (m *MockGuardianStore) Review(ctx context.Context, id string, review repositories.GuardianReview) (*models.Guardian, error) {
	if m.ReviewFunc != nil {
		return m.ReviewFunc(ctx, id, review)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianStore) UpdateNotifyOnNewMessage(ctx context.Context, id string, notify bool) (*models.Guardian, error) {
	if m.UpdateNotifyOnNewMessageFunc != nil {
		return m.UpdateNotifyOnNewMessageFunc(ctx, id, notify)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianStore) SetAuthenticator(ctx context.Context, id string, encryptedSecret, nonce []byte) error {
	if m.SetAuthenticatorFunc != nil {
		return m.SetAuthenticatorFunc(ctx, id, encryptedSecret, nonce)
	}
	return nil
}

func (m *MockGuardianStore) MarkAuthenticatorUsed(ctx context.Context, id string, at time.Time) error {
	if m.MarkAuthenticatorUsedFunc != nil {
		return m.MarkAuthenticatorUsedFunc(ctx, id, at)
	}
	return nil
}

// MockConversationStore implements ConversationStore and ConversationPurger for testing
type MockConversationStore struct {
	GetOrCreateFunc         func(ctx context.Context, memberA, memberB string, approvedByWali bool) (*models.Conversation, bool, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.Conversation, error)
	ListByMemberFunc        func(ctx context.Context, memberID string, limit, offset int) ([]*models.Conversation, error)
	RefreshLastMessageFunc  func(ctx context.Context, id string) error
	DeleteByParticipantFunc func(ctx context.Context, memberID string) (int64, error)
}

func (m *MockConversationStore) GetOrCreate(ctx context.Context, memberA, memberB string, approvedByWali bool) (*models.Conversation, bool, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, memberA, memberB, approvedByWali)
	}
	low, high := models.CanonicalPair(memberA, memberB)
	return &models.Conversation{ID: "conv-1", ParticipantLow: low, ParticipantHigh: high, IsApprovedByWali: approvedByWali}, true, nil
}

func (m *MockConversationStore) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockConversationStore) ListByMember(ctx context.Context, memberID string, limit, offset int) ([]*models.Conversation, error) {
	if m.ListByMemberFunc != nil {
		return m.ListByMemberFunc(ctx, memberID, limit, offset)
	}
	return nil, nil
}

func (m *MockConversationStore) RefreshLastMessage(ctx context.Context, id string) error {
	if m.RefreshLastMessageFunc != nil {
		return m.RefreshLastMessageFunc(ctx, id)
	}
	return nil
}

func (m *MockConversationStore) DeleteByParticipant(ctx context.Context, memberID string) (int64, error) {
	if m.DeleteByParticipantFunc != nil {
		return m.DeleteByParticipantFunc(ctx, memberID)
	}
	return 0, nil
}

// MockMessageStore implements MessageStore and MessagePurger for testing.
// Without AppendFunc, Append runs the screening check against PriorCount.
type MockMessageStore struct {
	PriorCount                  int
	AppendFunc                  func(ctx context.Context, msg *models.Message, preview string, check repositories.PriorCountCheck) (*models.Message, error)
	GetByIDFunc                 func(ctx context.Context, id string) (*models.Message, error)
	ListByConversationFunc      func(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	MarkReadFunc                func(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
	SetBlockedFunc              func(ctx context.Context, id string, blocked bool, reason *string) (*models.Message, error)
	SoftDeleteFunc              func(ctx context.Context, id string) (*models.Message, error)
	DeleteBySenderFunc          func(ctx context.Context, senderID string) (int64, error)
	DeleteInConversationsOfFunc func(ctx context.Context, memberID string) (int64, error)
}

func (m *MockMessageStore) Append(ctx context.Context, msg *models.Message, preview string, check repositories.PriorCountCheck) (*models.Message, error) {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, msg, preview, check)
	}
	if check != nil {
		if err := check(m.PriorCount); err != nil {
			return nil, err
		}
	}
	msg.ID = "msg-1"
	msg.CreatedAt = time.Now()
	return msg, nil
}

func (m *MockMessageStore) GetByID(ctx context.Context, id string) (*models.Message, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMessageStore) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error) {
	if m.ListByConversationFunc != nil {
		return m.ListByConversationFunc(ctx, conversationID, limit, offset)
	}
	return nil, nil
}

func (m *MockMessageStore) MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	if m.MarkReadFunc != nil {
		return m.MarkReadFunc(ctx, conversationID, readerID, at)
	}
	return 0, nil
}

func (m *MockMessageStore) SetBlocked(ctx context.Context, id string, blocked bool, reason *string) (*models.Message, error) {
	if m.SetBlockedFunc != nil {
		return m.SetBlockedFunc(ctx, id, blocked, reason)
	}
	return nil, models.ErrNotFound
}

func (m *MockMessageStore) SoftDelete(ctx context.Context, id string) (*models.Message, error) {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockMessageStore) DeleteBySender(ctx context.Context, senderID string) (int64, error) {
	if m.DeleteBySenderFunc != nil {
		return m.DeleteBySenderFunc(ctx, senderID)
	}
	return 0, nil
}

func (m *MockMessageStore) DeleteInConversationsOf(ctx context.Context, memberID string) (int64, error) {
	if m.DeleteInConversationsOfFunc != nil {
		return m.DeleteInConversationsOfFunc(ctx, memberID)
	}
	return 0, nil
}

// MockReportStore implements ReportStore for testing
type MockReportStore struct {
	CreateFunc     func(ctx context.Context, rep *models.Report) (*models.Report, error)
	GetByIDFunc    func(ctx context.Context, id string) (*models.Report, error)
	ListFunc       func(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, error)
	TransitionFunc func(ctx context.Context, id string, t repositories.ReportTransition) (*models.Report, error)
}

func (m *MockReportStore) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rep)
	}
	rep.ID = "report-1"
	rep.Status = models.ReportStatusPending
	return rep, nil
}

func (m *MockReportStore) GetByID(ctx context.Context, id string) (*models.Report, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockReportStore) List(ctx context.Context, status models.ReportStatus, limit, offset int) ([]*models.Report, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, status, limit, offset)
	}
	return nil, nil
}

func (m *MockReportStore) Transition(ctx context.Context, id string, t repositories.ReportTransition) (*models.Report, error) {
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, id, t)
	}
	return nil, models.ErrNotFound
}

// MockBanCascadeStore implements BanCascadeStore for testing and records the
// steps it was told about
type MockBanCascadeStore struct {
	mu        sync.Mutex
	Steps     []string
	Errors    []string
	Completed bool

	StartFunc func(ctx context.Context, memberID string) error
}

func (m *MockBanCascadeStore) Start(ctx context.Context, memberID string) error {
	m.mu.Lock()
	m.Steps = nil
	m.Completed = false
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx, memberID)
	}
	return nil
}

func (m *MockBanCascadeStore) MarkStep(_ context.Context, _ string, step string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Steps = append(m.Steps, step)
	return nil
}

func (m *MockBanCascadeStore) RecordError(_ context.Context, _ string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors = append(m.Errors, message)
	return nil
}

func (m *MockBanCascadeStore) Complete(context.Context, string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = true
	return nil
}

func (m *MockBanCascadeStore) Get(_ context.Context, memberID string) (*models.BanCascade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bc := &models.BanCascade{MemberID: memberID, StepsCompleted: append([]string(nil), m.Steps...)}
	if m.Completed {
		now := time.Now()
		bc.CompletedAt = &now
	}
	return bc, nil
}

// MockLikeStore implements LikeStore and LikePurger for testing
type MockLikeStore struct {
	CreateFunc               func(ctx context.Context, fromID, toID string, mutual bool) (*models.Like, bool, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.Like, error)
	GetByPairFunc            func(ctx context.Context, fromID, toID string) (*models.Like, error)
	ListAwaitingGuardianFunc func(ctx context.Context, toID string) ([]*models.Like, error)
	SetMutualFunc            func(ctx context.Context, id string) error
	ApproveFunc              func(ctx context.Context, id string) (*models.Like, bool, error)
	DeleteFunc               func(ctx context.Context, id string) error
	DeleteByMemberFunc       func(ctx context.Context, memberID string) (int64, error)
}

func (m *MockLikeStore) Create(ctx context.Context, fromID, toID string, mutual bool) (*models.Like, bool, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, fromID, toID, mutual)
	}
	return &models.Like{ID: "like-1", FromID: fromID, ToID: toID, MutualMatch: mutual}, true, nil
}

func (m *MockLikeStore) GetByID(ctx context.Context, id string) (*models.Like, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockLikeStore) GetByPair(ctx context.Context, fromID, toID string) (*models.Like, error) {
	if m.GetByPairFunc != nil {
		return m.GetByPairFunc(ctx, fromID, toID)
	}
	return nil, models.ErrNotFound
}

func (m *MockLikeStore) ListAwaitingGuardian(ctx context.Context, toID string) ([]*models.Like, error) {
	if m.ListAwaitingGuardianFunc != nil {
		return m.ListAwaitingGuardianFunc(ctx, toID)
	}
	return nil, nil
}

func (m *MockLikeStore) SetMutual(ctx context.Context, id string) error {
	if m.SetMutualFunc != nil {
		return m.SetMutualFunc(ctx, id)
	}
	return nil
}

func (m *MockLikeStore) Approve(ctx context.Context, id string) (*models.Like, bool, error) {
	if m.ApproveFunc != nil {
		return m.ApproveFunc(ctx, id)
	}
	return nil, false, models.ErrNotFound
}

func (m *MockLikeStore) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockLikeStore) DeleteByMember(ctx context.Context, memberID string) (int64, error) {
	if m.DeleteByMemberFunc != nil {
		return m.DeleteByMemberFunc(ctx, memberID)
	}
	return 0, nil
}

// MockAuditRecorder collects recorded entries
type MockAuditRecorder struct {
	mu      sync.Mutex
	Entries []AuditEntry
}

func (m *MockAuditRecorder) Record(_ context.Context, e AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, e)
}

func (m *MockAuditRecorder) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Action
	}
	return out
}

// MockNotifier implements MessageNotifier, MemberNotifier and LikeNotifier
// and records each call by kind
type MockNotifier struct {
	mu    sync.Mutex
	Calls []string
}

func (m *MockNotifier) record(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, kind)
}

func (m *MockNotifier) NotifyNewMessage(*models.Conversation, string, string) {
	m.record(NotificationNewMessage)
}

func (m *MockNotifier) NotifyIncomingLike(*models.Like) { m.record(NotificationIncomingLike) }

func (m *MockNotifier) NotifySuspended(*models.Member, string, time.Time) {
	m.record(NotificationSuspended)
}

func (m *MockNotifier) NotifyWarned(*models.Member, string) { m.record(NotificationWarned) }

func (m *MockNotifier) NotifyBanned(*models.Member, string) { m.record(NotificationBanned) }

// MockEnqueuer collects notification jobs. Full makes every Enqueue fail.
type MockEnqueuer struct {
	mu   sync.Mutex
	Jobs []NotificationJob
	Full bool
}

func (m *MockEnqueuer) Enqueue(job NotificationJob) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Full {
		return false
	}
	m.Jobs = append(m.Jobs, job)
	return true
}

// MockMailSender implements MailSender for testing
type MockMailSender struct {
	mu       sync.Mutex
	Sent     []Email
	SendFunc func(ctx context.Context, to, subject, html string) error
}

func (m *MockMailSender) Send(ctx context.Context, to, subject, html string) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, to, subject, html); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Email{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *MockMailSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockEventPublisher records published live events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []realtime.Event
}

func (m *MockEventPublisher) Publish(_ context.Context, _ string, event realtime.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct{}

func (MockTokenIssuer) GenerateAccessToken(member *models.Member) (string, time.Time, error) {
	return "access-" + member.ID, time.Now().Add(time.Hour), nil
}

func (MockTokenIssuer) GenerateGuardianToken(guardian *models.Guardian) (string, time.Time, error) {
	return "guardian-" + guardian.ID, time.Now().Add(time.Hour), nil
}

// MockAuthenticator implements Authenticator for testing
type MockAuthenticator struct {
	EnrollFunc func(accountName string) (*auth.Enrollment, error)
	VerifyFunc func(encrypted, nonce []byte, code string, lastUsedAt *time.Time, now time.Time) error
}

func (m *MockAuthenticator) Enroll(accountName string) (*auth.Enrollment, error) {
	if m.EnrollFunc != nil {
		return m.EnrollFunc(accountName)
	}
	return &auth.Enrollment{EncryptedSecret: []byte("enc"), Nonce: []byte("nonce"), Secret: "SECRET"}, nil
}

func (m *MockAuthenticator) Verify(encrypted, nonce []byte, code string, lastUsedAt *time.Time, now time.Time) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(encrypted, nonce, code, lastUsedAt, now)
	}
	return auth.ErrInvalidCode
}
