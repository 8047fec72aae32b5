package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithCaller authenticates req as caller
func WithCaller(req *http.Request, caller models.CallerContext) *http.Request {
	return req.WithContext(auth.WithCaller(req.Context(), caller))
}

// WithURLParams adds chi route parameters to req
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface and GuardianSignInService for testing
type MockAuthService struct {
	RegisterFunc func(ctx context.Context, in services.RegisterInput) (*services.Session, error)
	LoginFunc    func(ctx context.Context, email, password, ip string) (*services.Session, error)
	SignInFunc   func(ctx context.Context, guardianID, code, ip string) (*services.Session, error)
}

func (m *MockAuthService) Register(ctx context.Context, in services.RegisterInput) (*services.Session, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockAuthService) Login(ctx context.Context, email, password, ip string) (*services.Session, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, ip)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) SignIn(ctx context.Context, guardianID, code, ip string) (*services.Session, error) {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, guardianID, code, ip)
	}
	return nil, models.ErrUnauthorized
}

// MockMessagingService implements MessagingServiceInterface and LiveAuthorizer for testing
type MockMessagingService struct {
	StartConversationFunc func(ctx context.Context, caller models.CallerContext, participantID string) (*models.Conversation, error)
	ListConversationsFunc func(ctx context.Context, caller models.CallerContext, limit, offset int) ([]*models.Conversation, error)
	FetchMessagesFunc     func(ctx context.Context, caller models.CallerContext, conversationID string, limit, offset int) ([]*models.Message, error)
	SendMessageFunc       func(ctx context.Context, caller models.CallerContext, conversationID, text string) (*models.Message, error)
	DeleteMessageFunc     func(ctx context.Context, caller models.CallerContext, messageID string) (*models.Message, error)
	ModerateMessageFunc   func(ctx context.Context, caller models.CallerContext, messageID string, blocked bool, reason string) (*models.Message, error)
	LiveConversationFunc  func(ctx context.Context, caller models.CallerContext, conversationID string) (*models.Conversation, error)
}

func (m *MockMessagingService) StartConversation(ctx context.Context, caller models.CallerContext, participantID string) (*models.Conversation, error) {
	if m.StartConversationFunc != nil {
		return m.StartConversationFunc(ctx, caller, participantID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMessagingService) ListConversations(ctx context.Context, caller models.CallerContext, limit, offset int) ([]*models.Conversation, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, caller, limit, offset)
	}
	return nil, nil
}

func (m *MockMessagingService) FetchMessages(ctx context.Context, caller models.CallerContext, conversationID string, limit, offset int) ([]*models.Message, error) {
	if m.FetchMessagesFunc != nil {
		return m.FetchMessagesFunc(ctx, caller, conversationID, limit, offset)
	}
	return nil, nil
}

func (m *MockMessagingService) SendMessage(ctx context.Context, caller models.CallerContext, conversationID, text string) (*models.Message, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, caller, conversationID, text)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMessagingService) DeleteMessage(ctx context.Context, caller models.CallerContext, messageID string) (*models.Message, error) {
	if m.DeleteMessageFunc != nil {
		return m.DeleteMessageFunc(ctx, caller, messageID)
	}
	return nil, models.ErrNotFound
}

func (m *MockMessagingService) ModerateMessage(ctx context.Context, caller models.CallerContext, messageID string, blocked bool, reason string) (*models.Message, error) {
	if m.ModerateMessageFunc != nil {
		return m.ModerateMessageFunc(ctx, caller, messageID, blocked, reason)
	}
	return nil, models.ErrNotFound
}

func (m *MockMessagingService) LiveConversation(ctx context.Context, caller models.CallerContext, conversationID string) (*models.Conversation, error) {
	if m.LiveConversationFunc != nil {
		return m.LiveConversationFunc(ctx, caller, conversationID)
	}
	return nil, models.ErrNotFound
}

// MockModerationService implements ModerationServiceInterface for testing
type MockModerationService struct {
	CreateReportFunc      func(ctx context.Context, caller models.CallerContext, in services.ReportInput) (*models.Report, error)
	ListReportsFunc       func(ctx context.Context, caller models.CallerContext, status models.ReportStatus, limit, offset int) ([]*models.Report, error)
	InvestigateReportFunc func(ctx context.Context, caller models.CallerContext, reportID string, severity models.ReportSeverity) (*models.Report, error)
	ApproveReportFunc     func(ctx context.Context, caller models.CallerContext, reportID string, in services.ResolveInput) (*models.Report, error)
	DismissReportFunc     func(ctx context.Context, caller models.CallerContext, reportID, resolution string) (*models.Report, error)
	SuspendMemberFunc     func(ctx context.Context, caller models.CallerContext, memberID, reason string, durationDays int) (*models.Member, error)
	WarnMemberFunc        func(ctx context.Context, caller models.CallerContext, memberID, reason string) (*models.Member, error)
	BanMemberFunc         func(ctx context.Context, caller models.CallerContext, memberID, reason string) (*services.BanResult, error)
	UnblockMemberFunc     func(ctx context.Context, caller models.CallerContext, memberID string) (*models.Member, error)
}

func (m *MockModerationService) CreateReport(ctx context.Context, caller models.CallerContext, in services.ReportInput) (*models.Report, error) {
	if m.CreateReportFunc != nil {
		return m.CreateReportFunc(ctx, caller, in)
	}
	return nil, models.ErrInternalServer
}

func (m *MockModerationService) ListReports(ctx context.Context, caller models.CallerContext, status models.ReportStatus, limit, offset int) ([]*models.Report, error) {
	if m.ListReportsFunc != nil {
		return m.ListReportsFunc(ctx, caller, status, limit, offset)
	}
	return nil, nil
}

func (m *MockModerationService) InvestigateReport(ctx context.Context, caller models.CallerContext, reportID string, severity models.ReportSeverity) (*models.Report, error) {
	if m.InvestigateReportFunc != nil {
		return m.InvestigateReportFunc(ctx, caller, reportID, severity)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) ApproveReport(ctx context.Context, caller models.CallerContext, reportID string, in services.ResolveInput) (*models.Report, error) {
	if m.ApproveReportFunc != nil {
		return m.ApproveReportFunc(ctx, caller, reportID, in)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) DismissReport(ctx context.Context, caller models.CallerContext, reportID, resolution string) (*models.Report, error) {
	if m.DismissReportFunc != nil {
		return m.DismissReportFunc(ctx, caller, reportID, resolution)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) SuspendMember(ctx context.Context, caller models.CallerContext, memberID, reason string, durationDays int) (*models.Member, error) {
	if m.SuspendMemberFunc != nil {
		return m.SuspendMemberFunc(ctx, caller, memberID, reason, durationDays)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) WarnMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*models.Member, error) {
	if m.WarnMemberFunc != nil {
		return m.WarnMemberFunc(ctx, caller, memberID, reason)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) BanMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*services.BanResult, error) {
	if m.BanMemberFunc != nil {
		return m.BanMemberFunc(ctx, caller, memberID, reason)
	}
	return nil, models.ErrNotFound
}

func (m *MockModerationService) UnblockMember(ctx context.Context, caller models.CallerContext, memberID string) (*models.Member, error) {
	if m.UnblockMemberFunc != nil {
		return m.UnblockMemberFunc(ctx, caller, memberID)
	}
	return nil, models.ErrNotFound
}

// MockMatchService implements MatchServiceInterface for testing
type MockMatchService struct {
	CreateLikeFunc       func(ctx context.Context, caller models.CallerContext, toID string) (*models.Like, error)
	ListPendingLikesFunc func(ctx context.Context, caller models.CallerContext) ([]*models.Like, error)
	ApproveLikeFunc      func(ctx context.Context, caller models.CallerContext, likeID string) (*models.Like, error)
	RejectLikeFunc       func(ctx context.Context, caller models.CallerContext, likeID string) error
}

func (m *MockMatchService) CreateLike(ctx context.Context, caller models.CallerContext, toID string) (*models.Like, error) {
	if m.CreateLikeFunc != nil {
		return m.CreateLikeFunc(ctx, caller, toID)
	}
	return nil, models.ErrInternalServer
}

func (m *MockMatchService) ListPendingLikes(ctx context.Context, caller models.CallerContext) ([]*models.Like, error) {
	if m.ListPendingLikesFunc != nil {
		return m.ListPendingLikesFunc(ctx, caller)
	}
	return nil, nil
}

func (m *MockMatchService) ApproveLike(ctx context.Context, caller models.CallerContext, likeID string) (*models.Like, error) {
	if m.ApproveLikeFunc != nil {
		return m.ApproveLikeFunc(ctx, caller, likeID)
	}
	return nil, models.ErrNotFound
}

func (m *MockMatchService) RejectLike(ctx context.Context, caller models.CallerContext, likeID string) error {
	if m.RejectLikeFunc != nil {
		return m.RejectLikeFunc(ctx, caller, likeID)
	}
	return models.ErrNotFound
}

// MockGuardianService implements GuardianServiceInterface for testing
type MockGuardianService struct {
	RequestGuardianFunc     func(ctx context.Context, caller models.CallerContext, req services.GuardianRequest) (*models.Guardian, error)
	ListGuardiansFunc       func(ctx context.Context, caller models.CallerContext) ([]*models.Guardian, error)
	UpdatePreferencesFunc   func(ctx context.Context, caller models.CallerContext, guardianID string, notify bool) (*models.Guardian, error)
	ReviewFunc              func(ctx context.Context, caller models.CallerContext, guardianID string, d services.GuardianDecision) (*models.Guardian, error)
	EnrollAuthenticatorFunc func(ctx context.Context, caller models.CallerContext, guardianID string) (*auth.Enrollment, error)
}

func (m *MockGuardianService) RequestGuardian(ctx context.Context, caller models.CallerContext, req services.GuardianRequest) (*models.Guardian, error) {
	if m.RequestGuardianFunc != nil {
		return m.RequestGuardianFunc(ctx, caller, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockGuardianService) ListGuardians(ctx context.Context, caller models.CallerContext) ([]*models.Guardian, error) {
	if m.ListGuardiansFunc != nil {
		return m.ListGuardiansFunc(ctx, caller)
	}
	return nil, nil
}

func (m *MockGuardianService) UpdatePreferences(ctx context.Context, caller models.CallerContext, guardianID string, notify bool) (*models.Guardian, error) {
	if m.UpdatePreferencesFunc != nil {
		return m.UpdatePreferencesFunc(ctx, caller, guardianID, notify)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianService) Review(ctx context.Context, caller models.CallerContext, guardianID string, d services.GuardianDecision) (*models.Guardian, error) {
	if m.ReviewFunc != nil {
		return m.ReviewFunc(ctx, caller, guardianID, d)
	}
	return nil, models.ErrNotFound
}

func (m *MockGuardianService) EnrollAuthenticator(ctx context.Context, caller models.CallerContext, guardianID string) (*auth.Enrollment, error) {
	if m.EnrollAuthenticatorFunc != nil {
		return m.EnrollAuthenticatorFunc(ctx, caller, guardianID)
	}
	return nil, models.ErrNotFound
}

// MockAuditLister implements AuditLister for testing
type MockAuditLister struct {
	ListFunc func(ctx context.Context, caller models.CallerContext, targetID, eventType string, limit, offset int) ([]*models.AuditLog, error)
}

func (m *MockAuditLister) List(ctx context.Context, caller models.CallerContext, targetID, eventType string, limit, offset int) ([]*models.AuditLog, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, caller, targetID, eventType, limit, offset)
	}
	return nil, nil
}
