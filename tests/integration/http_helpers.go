//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/mithaq/internal/auth"
	"github.com/BradenHooton/mithaq/internal/database"
	"github.com/BradenHooton/mithaq/internal/handlers"
	"github.com/BradenHooton/mithaq/internal/metrics"
	middlewareCustom "github.com/BradenHooton/mithaq/internal/middleware"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/BradenHooton/mithaq/internal/repositories"
	"github.com/BradenHooton/mithaq/internal/routes"
	"github.com/BradenHooton/mithaq/internal/services"
)

const (
	testJWTSecret          = "test-secret-32-characters-long-for-testing"
	testScreeningThreshold = 3
)

// SentEmail is a captured notification
type SentEmail struct {
	To      string
	Subject string
	HTML    string
}

// CapturingMailSender records outgoing mail for assertions
type CapturingMailSender struct {
	mu   sync.Mutex
	sent []SentEmail
}

func (m *CapturingMailSender) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, HTML: html})
	return nil
}

// Sent returns a copy of every captured email
func (m *CapturingMailSender) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}

// TestServer wraps httptest.Server with the real service graph
type TestServer struct {
	Server *httptest.Server
	DB     *database.DB
	Mail   *CapturingMailSender

	cancel context.CancelFunc
	done   chan struct{}
}

// NewTestServer wires repositories, services and routes against db. Mail is
// captured in memory and live events stay in process.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	m := metrics.New(nil)

	memberRepo := repositories.NewMemberRepository(db)
	guardianRepo := repositories.NewGuardianRepository(db)
	conversationRepo := repositories.NewConversationRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	reportRepo := repositories.NewReportRepository(db)
	likeRepo := repositories.NewLikeRepository(db)
	cascadeRepo := repositories.NewBanCascadeRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)

	tokenManager := auth.NewTokenManager(testJWTSecret, 15*time.Minute, time.Hour)
	broker := realtime.NewLocalBroker()

	mail := &CapturingMailSender{}
	dispatcher := services.NewDispatcher(mail, services.DispatcherConfig{
		Workers:    1,
		QueueSize:  32,
		RetryDelay: 10 * time.Millisecond,
	}, m, logger)
	notifier := services.NewNotifier(dispatcher, memberRepo, guardianRepo, "http://localhost:3000")
	auditService := services.NewAuditService(auditRepo, logger)
	gate := services.NewMessagingGate(guardianRepo, testScreeningThreshold, m, logger)

	authService := services.NewAuthService(memberRepo, tokenManager, logger)
	guardianService := services.NewGuardianService(memberRepo, guardianRepo, nil, tokenManager, auditService, logger)
	messagingService := services.NewMessagingService(services.MessagingDeps{
		Members:       memberRepo,
		Guardians:     guardianRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		Gate:          gate,
		Notifier:      notifier,
		Events:        broker,
		Audit:         auditService,
	}, 1000, m, logger)
	moderationService := services.NewModerationService(services.ModerationDeps{
		Members:       memberRepo,
		Reports:       reportRepo,
		Cascades:      cascadeRepo,
		Messages:      messageRepo,
		Conversations: conversationRepo,
		Likes:         likeRepo,
		Notifier:      notifier,
		Audit:         auditService,
	}, 7, m, logger)
	matchService := services.NewMatchService(memberRepo, guardianRepo, likeRepo, notifier, auditService, logger)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(r, routes.Handlers{
		Auth:          handlers.NewAuthHandler(authService, guardianService, nil),
		Conversations: handlers.NewConversationHandler(messagingService),
		Live:          handlers.NewLiveHandler(messagingService, broker, nil, m, logger),
		Moderation:    handlers.NewModerationHandler(moderationService),
		Likes:         handlers.NewLikeHandler(matchService),
		Guardians:     handlers.NewGuardianHandler(guardianService),
		Audit:         handlers.NewAuditHandler(auditService),
	}, routes.Limits{
		Auth:    middlewareCustom.PerMinute(1000),
		Send:    middlewareCustom.PerMinute(1000),
		Reports: middlewareCustom.PerMinute(1000),
	}, tokenManager, memberRepo, guardianRepo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = dispatcher.Run(ctx)
	}()

	return &TestServer{
		Server: httptest.NewServer(r),
		DB:     db,
		Mail:   mail,
		cancel: cancel,
		done:   done,
	}
}

// Close shuts down the server and the notification workers
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
	ts.cancel()
	<-ts.done
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body any, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes a request carrying a bearer token
func (ts *TestServer) RequestWithAuth(method, path, accessToken string, body any) (*http.Response, error) {
	return ts.Request(method, path, body, map[string]string{
		"Authorization": "Bearer " + accessToken,
	})
}

// Login signs a member in and returns the access token
func (ts *TestServer) Login(email, password string) (string, error) {
	resp, err := ts.Request(http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, nil)
	if err != nil {
		return "", err
	}

	var session handlers.SessionResponse
	if err := ParseJSONResponse(resp, &session); err != nil {
		return "", err
	}
	return session.AccessToken, nil
}

// ParseJSONResponse decodes the response body into target and closes it
func ParseJSONResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}
