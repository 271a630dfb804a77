package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"pdflux-api/internal/domain"
	"pdflux-api/internal/observability"
	"pdflux-api/internal/repository"
)

var (
	ErrUnsupportedFormat  = errors.New("unsupported target format")
	ErrConversionNotFound = errors.New("conversion not found")
)

// convertTimeout bounds one background conversion attempt.
const convertTimeout = 10 * time.Minute

// SourceUpload is the incoming multipart file.
type SourceUpload struct {
	File        io.Reader
	FileName    string
	FileSize    int64
	ContentType string
}

// ConversionView is a ledger row plus a short-lived download URL when the
// job has completed.
type ConversionView struct {
	domain.Conversion
	DownloadURL string `json:"download_url,omitempty"`
}

// ConversionService runs the job ledger: admission, source upload, dispatch
// to the converter, and idempotent terminal bookkeeping.
type ConversionService struct {
	conversions   repository.ConversionRepository
	subscriptions *SubscriptionService
	storage       BlobStore
	converter     Converter
	logger        *slog.Logger
}

func NewConversionService(
	conversions repository.ConversionRepository,
	subscriptions *SubscriptionService,
	storage BlobStore,
	converter Converter,
	logger *slog.Logger,
) *ConversionService {
	return &ConversionService{
		conversions:   conversions,
		subscriptions: subscriptions,
		storage:       storage,
		converter:     converter,
		logger:        logger,
	}
}

// Submit admits, stores and dispatches one conversion. Quota is reserved
// before any byte is uploaded; the returned job is already in processing and
// the caller polls Status for the outcome. Priority handling requires at
// least the pro tier.
func (s *ConversionService) Submit(ctx context.Context, userID uint, upload SourceUpload, toFormat domain.ConversionFormat, priority bool) (*domain.Conversion, error) {
	if !toFormat.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, toFormat)
	}

	if priority {
		if err := s.subscriptions.CheckPlan(ctx, userID, domain.PlanPro); err != nil {
			return nil, err
		}
	}

	if err := s.subscriptions.AdmitConversion(ctx, userID); err != nil {
		return nil, err
	}

	inputKey, err := s.storage.UploadSource(ctx, userID, upload.File, upload.FileSize, upload.ContentType)
	if err != nil {
		observability.RecordConversionEvent(ctx, "submit", "upload_failed")
		return nil, err
	}

	job := &domain.Conversion{
		UserID:     userID,
		FileName:   upload.FileName,
		FileSize:   upload.FileSize,
		FromFormat: "pdf",
		ToFormat:   toFormat,
		Status:     domain.ConversionProcessing,
		InputKey:   inputKey,
	}
	if err := s.conversions.Create(job); err != nil {
		observability.RecordConversionEvent(ctx, "submit", "error")
		return nil, err
	}

	go s.run(job.ID, inputKey, toFormat)

	observability.RecordConversionEvent(ctx, "submit", "success")
	s.logger.InfoContext(ctx, "conversion submitted",
		"job_id", job.ID,
		"user_id", userID,
		"to_format", toFormat,
		"priority", priority,
	)
	return job, nil
}

// run drives one background conversion to a terminal ledger state. It owns
// its own context so the job outlives the submitting request.
func (s *ConversionService) run(jobID uint, inputKey string, toFormat domain.ConversionFormat) {
	ctx, cancel := context.WithTimeout(context.Background(), convertTimeout)
	defer cancel()

	outputKey, err := s.converter.Convert(ctx, ConvertInput{
		JobID:    jobID,
		InputKey: inputKey,
		ToFormat: toFormat,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "conversion failed", "job_id", jobID, "error", err)
		if failErr := s.Fail(ctx, jobID); failErr != nil {
			s.logger.ErrorContext(ctx, "conversion failure not recorded", "job_id", jobID, "error", failErr)
		}
		return
	}

	if err := s.Complete(ctx, jobID, outputKey); err != nil {
		s.logger.ErrorContext(ctx, "conversion completion not recorded", "job_id", jobID, "error", err)
	}
}

// Complete records a successful conversion. Once a job is terminal the call
// is a no-op, so duplicate converter callbacks cannot rewrite history.
func (s *ConversionService) Complete(ctx context.Context, jobID uint, outputKey string) error {
	transitioned, err := s.conversions.MarkCompleted(jobID, outputKey, time.Now().UTC())
	if err != nil {
		return err
	}
	if !transitioned {
		observability.RecordConversionEvent(ctx, "complete", "noop")
		return nil
	}
	observability.RecordConversionEvent(ctx, "complete", "success")
	s.logger.InfoContext(ctx, "conversion completed", "job_id", jobID)
	return nil
}

// Fail records a failed conversion, also idempotently.
func (s *ConversionService) Fail(ctx context.Context, jobID uint) error {
	transitioned, err := s.conversions.MarkFailed(jobID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !transitioned {
		observability.RecordConversionEvent(ctx, "fail", "noop")
		return nil
	}
	observability.RecordConversionEvent(ctx, "fail", "recorded")
	s.logger.InfoContext(ctx, "conversion failed", "job_id", jobID)
	return nil
}

// Status returns one job owned by the user, with a presigned download URL
// when completed.
func (s *ConversionService) Status(ctx context.Context, jobID, userID uint) (*ConversionView, error) {
	job, err := s.conversions.FindByIDForUser(jobID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrConversionNotFound) {
			return nil, ErrConversionNotFound
		}
		return nil, err
	}

	view := &ConversionView{Conversion: *job}
	if job.Status == domain.ConversionCompleted && job.OutputKey != "" {
		url, err := s.storage.PresignOutput(ctx, job.OutputKey)
		if err != nil {
			// The job outcome is still reported even when presigning is down.
			s.logger.WarnContext(ctx, "presign output failed", "job_id", job.ID, "error", err)
		} else {
			view.DownloadURL = url
		}
	}

	return view, nil
}

// History lists the user's jobs, newest first.
func (s *ConversionService) History(ctx context.Context, userID uint, page repository.PageRequest) (repository.PageResult[domain.Conversion], error) {
	return s.conversions.ListByUserPaged(userID, page)
}
