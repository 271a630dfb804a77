package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubUserRepository struct {
	createFn                    func(user *domain.User) error
	findByIDFn                  func(id uint) (*domain.User, error)
	findByEmailFn               func(email string) (*domain.User, error)
	updateNameFn                func(id uint, name string) error
	setVerificationSecretFn     func(id uint, tokenHash string, expiresAt time.Time) error
	consumeVerificationSecretFn func(tokenHash string, now time.Time) (*domain.User, error)
	setLoginCodeFn              func(id uint, codeHash string, expiresAt time.Time) error
	consumeLoginCodeFn          func(id uint, codeHash string, now time.Time) error
	admitConversionFn           func(id uint) error
	demoteIfExpiredFn           func(id uint, now time.Time) (bool, error)
	applySubscriptionFn         func(id uint, plan domain.Plan, limit int, expiresAt time.Time, customerCode string) error
}

func (s *stubUserRepository) Create(user *domain.User) error {
	if s.createFn == nil {
		return errors.New("not implemented")
	}
	return s.createFn(user)
}
func (s *stubUserRepository) FindByID(id uint) (*domain.User, error) {
	if s.findByIDFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.findByIDFn(id)
}
func (s *stubUserRepository) FindByEmail(email string) (*domain.User, error) {
	if s.findByEmailFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.findByEmailFn(email)
}
func (s *stubUserRepository) UpdateName(id uint, name string) error {
	if s.updateNameFn == nil {
		return errors.New("not implemented")
	}
	return s.updateNameFn(id, name)
}
func (s *stubUserRepository) SetVerificationSecret(id uint, tokenHash string, expiresAt time.Time) error {
	if s.setVerificationSecretFn == nil {
		return errors.New("not implemented")
	}
	return s.setVerificationSecretFn(id, tokenHash, expiresAt)
}
func (s *stubUserRepository) ConsumeVerificationSecret(tokenHash string, now time.Time) (*domain.User, error) {
	if s.consumeVerificationSecretFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.consumeVerificationSecretFn(tokenHash, now)
}
func (s *stubUserRepository) SetLoginCode(id uint, codeHash string, expiresAt time.Time) error {
	if s.setLoginCodeFn == nil {
		return errors.New("not implemented")
	}
	return s.setLoginCodeFn(id, codeHash, expiresAt)
}
func (s *stubUserRepository) ConsumeLoginCode(id uint, codeHash string, now time.Time) error {
	if s.consumeLoginCodeFn == nil {
		return errors.New("not implemented")
	}
	return s.consumeLoginCodeFn(id, codeHash, now)
}
func (s *stubUserRepository) AdmitConversion(id uint) error {
	if s.admitConversionFn == nil {
		return errors.New("not implemented")
	}
	return s.admitConversionFn(id)
}
func (s *stubUserRepository) DemoteIfExpired(id uint, now time.Time) (bool, error) {
	if s.demoteIfExpiredFn == nil {
		return false, nil
	}
	return s.demoteIfExpiredFn(id, now)
}
func (s *stubUserRepository) ApplySubscription(id uint, plan domain.Plan, limit int, expiresAt time.Time, customerCode string) error {
	if s.applySubscriptionFn == nil {
		return errors.New("not implemented")
	}
	return s.applySubscriptionFn(id, plan, limit, expiresAt, customerCode)
}

type stubConversionRepository struct {
	createFn          func(conversion *domain.Conversion) error
	findByIDForUserFn func(id, userID uint) (*domain.Conversion, error)
	listByUserPagedFn func(userID uint, page repository.PageRequest) (repository.PageResult[domain.Conversion], error)
	markCompletedFn   func(id uint, outputKey string, completedAt time.Time) (bool, error)
	markFailedFn      func(id uint, completedAt time.Time) (bool, error)
}

func (s *stubConversionRepository) Create(conversion *domain.Conversion) error {
	if s.createFn == nil {
		return errors.New("not implemented")
	}
	return s.createFn(conversion)
}
func (s *stubConversionRepository) FindByIDForUser(id, userID uint) (*domain.Conversion, error) {
	if s.findByIDForUserFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.findByIDForUserFn(id, userID)
}
func (s *stubConversionRepository) ListByUserPaged(userID uint, page repository.PageRequest) (repository.PageResult[domain.Conversion], error) {
	if s.listByUserPagedFn == nil {
		return repository.PageResult[domain.Conversion]{}, errors.New("not implemented")
	}
	return s.listByUserPagedFn(userID, page)
}
func (s *stubConversionRepository) MarkCompleted(id uint, outputKey string, completedAt time.Time) (bool, error) {
	if s.markCompletedFn == nil {
		return false, errors.New("not implemented")
	}
	return s.markCompletedFn(id, outputKey, completedAt)
}
func (s *stubConversionRepository) MarkFailed(id uint, completedAt time.Time) (bool, error) {
	if s.markFailedFn == nil {
		return false, errors.New("not implemented")
	}
	return s.markFailedFn(id, completedAt)
}

type stubPaymentRepository struct {
	createFn          func(payment *domain.Payment) error
	findByReferenceFn func(reference string) (*domain.Payment, error)
	markSuccessFn     func(reference string, paidAt time.Time, customerCode string) (bool, error)
	markFailedFn      func(reference string) (bool, error)
}

func (s *stubPaymentRepository) Create(payment *domain.Payment) error {
	if s.createFn == nil {
		return errors.New("not implemented")
	}
	return s.createFn(payment)
}
func (s *stubPaymentRepository) FindByReference(reference string) (*domain.Payment, error) {
	if s.findByReferenceFn == nil {
		return nil, errors.New("not implemented")
	}
	return s.findByReferenceFn(reference)
}
func (s *stubPaymentRepository) MarkSuccess(reference string, paidAt time.Time, customerCode string) (bool, error) {
	if s.markSuccessFn == nil {
		return false, errors.New("not implemented")
	}
	return s.markSuccessFn(reference, paidAt, customerCode)
}
func (s *stubPaymentRepository) MarkFailed(reference string) (bool, error) {
	if s.markFailedFn == nil {
		return false, errors.New("not implemented")
	}
	return s.markFailedFn(reference)
}

// recordingMailer captures sent mail for assertions.
type recordingMailer struct {
	mu            sync.Mutex
	verifications []VerificationMail
	codes         []LoginCodeMail
	receipts      []ReceiptMail
	err           error
}

func (m *recordingMailer) SendVerificationLink(_ context.Context, mail VerificationMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, mail)
	return m.err
}
func (m *recordingMailer) SendLoginCode(_ context.Context, mail LoginCodeMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, mail)
	return m.err
}
func (m *recordingMailer) SendPaymentReceipt(_ context.Context, mail ReceiptMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = append(m.receipts, mail)
	return m.err
}

type stubGateway struct {
	initializeFn func(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	verifyFn     func(ctx context.Context, reference string) (VerifyResult, error)
}

func (g *stubGateway) Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error) {
	if g.initializeFn == nil {
		return InitializeResult{}, errors.New("not implemented")
	}
	return g.initializeFn(ctx, req)
}
func (g *stubGateway) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	if g.verifyFn == nil {
		return VerifyResult{}, errors.New("not implemented")
	}
	return g.verifyFn(ctx, reference)
}

type stubBlobStore struct {
	uploadSourceFn  func(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error)
	copyToOutputFn  func(ctx context.Context, inputKey, outputKey string) error
	presignOutputFn func(ctx context.Context, objectKey string) (string, error)
}

func (s *stubBlobStore) UploadSource(ctx context.Context, userID uint, file io.Reader, fileSize int64, contentType string) (string, error) {
	if s.uploadSourceFn == nil {
		return "", errors.New("not implemented")
	}
	return s.uploadSourceFn(ctx, userID, file, fileSize, contentType)
}
func (s *stubBlobStore) OutputKey(inputKey, extension string) string {
	return "outputs/" + inputKey + extension
}
func (s *stubBlobStore) CopyToOutput(ctx context.Context, inputKey, outputKey string) error {
	if s.copyToOutputFn == nil {
		return nil
	}
	return s.copyToOutputFn(ctx, inputKey, outputKey)
}
func (s *stubBlobStore) PresignOutput(ctx context.Context, objectKey string) (string, error) {
	if s.presignOutputFn == nil {
		return "", errors.New("not implemented")
	}
	return s.presignOutputFn(ctx, objectKey)
}

type stubConverter struct {
	convertFn func(ctx context.Context, input ConvertInput) (string, error)
}

func (c *stubConverter) Convert(ctx context.Context, input ConvertInput) (string, error) {
	if c.convertFn == nil {
		return "", errors.New("not implemented")
	}
	return c.convertFn(ctx, input)
}
