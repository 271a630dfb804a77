package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/http/handler"
	"pdflux-api/internal/http/middleware"
	"pdflux-api/internal/http/router"
	"pdflux-api/internal/repository"
	"pdflux-api/internal/security"
	"pdflux-api/internal/service"
)

const (
	testWebhookSecret = "sk_test_integration_secret"
	testPassword      = "correct-horse-battery"
)

type testEnv struct {
	baseURL string
	client  *http.Client
	db      *gorm.DB
	mailer  *capturingMailer
	gateway *scriptedGateway
	blobs   *memoryBlobStore
}

// envelope mirrors the API response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection serializes writers, which sqlite needs under the
	// concurrent submit tests.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.User{}, &domain.Conversion{}, &domain.Payment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	users := repository.NewUserRepository(db)
	conversions := repository.NewConversionRepository(db)
	payments := repository.NewPaymentRepository(db)

	jwtMgr := security.NewJWTManager("pdflux-api", "pdflux-clients", "integration-secret-0123456789abcd")
	mailer := &capturingMailer{}
	blobs := newMemoryBlobStore()
	gateway := &scriptedGateway{verifyResults: map[string]service.VerifyResult{}}

	authSvc := service.NewAuthService(users, mailer, jwtMgr, service.AuthConfig{
		SecretPepper:   "integration-pepper",
		SessionTTL:     time.Hour,
		VerifyTokenTTL: time.Hour,
		LoginCodeTTL:   15 * time.Minute,
		ClientURL:      "https://app.pdflux.test",
	}, logger)
	subSvc := service.NewSubscriptionService(users, logger)
	convSvc := service.NewConversionService(conversions, subSvc, blobs, &instantConverter{store: blobs}, logger)
	paySvc := service.NewPaymentService(payments, users, gateway, mailer, logger)

	authLimiter := middleware.NewDistributedRateLimiter(
		middleware.NewLocalFixedWindowLimiter(), 10_000, time.Minute, middleware.FailClosed, "auth",
	)
	apiLimiter := middleware.NewDistributedRateLimiterWithKey(
		middleware.NewLocalFixedWindowLimiter(), 10_000, time.Minute, middleware.FailClosed, "api",
		middleware.SubjectOrIPKeyFunc(jwtMgr),
	)

	mux := router.New(router.Dependencies{
		Logger:        logger,
		Auth:          handler.NewAuthHandler(authSvc),
		Users:         handler.NewUserHandler(authSvc, subSvc),
		Conversions:   handler.NewConversionHandler(convSvc),
		Payments:      handler.NewPaymentHandler(paySvc, testWebhookSecret),
		Authenticator: middleware.NewAuthenticator(jwtMgr, users),
		AuthLimiter:   authLimiter,
		APILimiter:    apiLimiter,
		DB:            db,
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{
		baseURL: srv.URL,
		client:  srv.Client(),
		db:      db,
		mailer:  mailer,
		gateway: gateway,
		blobs:   blobs,
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.baseURL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode envelope from %q: %v", raw, err)
		}
	}
	return resp, env
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// registerVerified walks the signup flow and returns a session token.
func (e *testEnv) registerVerified(t *testing.T, name, email string) string {
	t.Helper()
	resp, env := e.doJSON(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
		"name":     name,
		"email":    email,
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d (%+v)", email, resp.StatusCode, env.Error)
	}

	token := e.mailer.latestVerificationToken(email)
	if token == "" {
		t.Fatalf("no verification mail captured for %s", email)
	}
	resp, env = e.doJSON(t, http.MethodGet, "/api/v1/auth/verify/"+token, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify %s: expected 200, got %d (%+v)", email, resp.StatusCode, env.Error)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode verify payload: %v", err)
	}
	if out.Token == "" {
		t.Fatal("expected a session token on verification")
	}
	return out.Token
}

func (e *testEnv) submitConversion(t *testing.T, session, fileName, toFormat string, priority bool) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreatePart(map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName)},
		"Content-Type":        {"application/pdf"},
	})
	if err != nil {
		t.Fatalf("create multipart file part: %v", err)
	}
	if _, err := part.Write([]byte("%PDF-1.7 test document")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.WriteField("to_format", toFormat); err != nil {
		t.Fatalf("write to_format field: %v", err)
	}
	if priority {
		if err := mw.WriteField("priority", "true"); err != nil {
			t.Fatalf("write priority field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/api/v1/conversions", &buf)
	if err != nil {
		t.Fatalf("build submit request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+session)

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("submit conversion: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read submit response: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode submit envelope from %q: %v", raw, err)
		}
	}
	return resp, env
}

// awaitConversionStatus polls until the job reaches a terminal status.
func (e *testEnv) awaitConversionStatus(t *testing.T, session string, id uint) envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, env := e.doJSON(t, http.MethodGet, fmt.Sprintf("/api/v1/conversions/%d", id), nil, bearer(session))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status poll: expected 200, got %d (%+v)", resp.StatusCode, env.Error)
		}
		var view struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &view); err != nil {
			t.Fatalf("decode status payload: %v", err)
		}
		if view.Status == string(domain.ConversionCompleted) || view.Status == string(domain.ConversionFailed) {
			return env
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("conversion did not reach a terminal status in time")
	return envelope{}
}

func (e *testEnv) deliverWebhook(t *testing.T, payload []byte, secret string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.baseURL+"/api/v1/payments/webhook", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build webhook request: %v", err)
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	req.Header.Set("X-Paystack-Signature", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("deliver webhook: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read webhook response: %v", err)
	}
	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode webhook envelope from %q: %v", raw, err)
		}
	}
	return resp, env
}

// capturingMailer records outbound mail for assertions.
type capturingMailer struct {
	mu            sync.Mutex
	verifications []service.VerificationMail
	codes         []service.LoginCodeMail
	receipts      []service.ReceiptMail
}

func (m *capturingMailer) SendVerificationLink(_ context.Context, mail service.VerificationMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, mail)
	return nil
}

func (m *capturingMailer) SendLoginCode(_ context.Context, mail service.LoginCodeMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, mail)
	return nil
}

func (m *capturingMailer) SendPaymentReceipt(_ context.Context, mail service.ReceiptMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, mail)
	return nil
}

func (m *capturingMailer) latestVerificationToken(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.verifications) - 1; i >= 0; i-- {
		if m.verifications[i].Email == email {
			return m.verifications[i].Token
		}
	}
	return ""
}

func (m *capturingMailer) latestLoginCode(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.codes[i].Email == email {
			return m.codes[i].Code
		}
	}
	return ""
}

func (m *capturingMailer) receiptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

// memoryBlobStore keeps objects in a map and hands out fake download URLs.
type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	seq     int
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string][]byte{}}
}

func (s *memoryBlobStore) UploadSource(_ context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error) {
	if contentType != "application/pdf" {
		return "", service.ErrInvalidFileType
	}
	data, err := io.ReadAll(io.LimitReader(file, fileSize))
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	key := fmt.Sprintf("sources/%d/object-%d.pdf", userID, s.seq)
	s.objects[key] = data
	return key, nil
}

func (s *memoryBlobStore) OutputKey(inputKey, extension string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(inputKey, "sources/"), ".pdf")
	return "outputs/" + trimmed + extension
}

func (s *memoryBlobStore) CopyToOutput(_ context.Context, inputKey, outputKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[inputKey]
	if !ok {
		return fmt.Errorf("source object %q not found", inputKey)
	}
	s.objects[outputKey] = data
	return nil
}

func (s *memoryBlobStore) PresignOutput(_ context.Context, objectKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[objectKey]; !ok {
		return "", fmt.Errorf("output object %q not found", objectKey)
	}
	return "https://blobs.pdflux.test/" + objectKey, nil
}

// instantConverter materializes the output immediately.
type instantConverter struct {
	store *memoryBlobStore
}

func (c *instantConverter) Convert(ctx context.Context, input service.ConvertInput) (string, error) {
	outputKey := c.store.OutputKey(input.InputKey, input.ToFormat.OutputExtension())
	if err := c.store.CopyToOutput(ctx, input.InputKey, outputKey); err != nil {
		return "", err
	}
	return outputKey, nil
}

// scriptedGateway returns canned verify results keyed by reference.
type scriptedGateway struct {
	mu            sync.Mutex
	verifyResults map[string]service.VerifyResult
	initialized   []service.InitializeRequest
	verifyCalls   int
}

func (g *scriptedGateway) Initialize(_ context.Context, req service.InitializeRequest) (service.InitializeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initialized = append(g.initialized, req)
	return service.InitializeResult{
		AuthorizationURL: "https://checkout.paystack.test/" + req.Reference,
		AccessCode:       "AC_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (g *scriptedGateway) Verify(_ context.Context, reference string) (service.VerifyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls++
	result, ok := g.verifyResults[reference]
	if !ok {
		return service.VerifyResult{}, fmt.Errorf("%w: no scripted result for %q", service.ErrGateway, reference)
	}
	return result, nil
}

// scriptSuccess makes the next Verify for reference report a settled charge.
func (g *scriptedGateway) scriptSuccess(reference string, amount int64, paidAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyResults[reference] = service.VerifyResult{
		Status:       "success",
		Reference:    reference,
		Amount:       amount,
		Currency:     "GHS",
		PaidAt:       paidAt,
		CustomerCode: "CUS_integration",
	}
}

// scriptFailed makes the next Verify for reference report a declined charge.
func (g *scriptedGateway) scriptFailed(reference string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyResults[reference] = service.VerifyResult{
		Status:    "failed",
		Reference: reference,
		Currency:  "GHS",
	}
}

func (g *scriptedGateway) verifyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}
