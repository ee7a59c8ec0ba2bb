package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/sanitize"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
	"github.com/ilbumi/satin/internal/util"
	"github.com/ilbumi/satin/internal/validation"
)

// mlSourcePrefix marks annotations produced from model predictions.
const mlSourcePrefix = "ml:"

// MLJobService tracks inference jobs and turns their predictions into
// annotations.
type MLJobService struct {
	repos       *store.Repositories
	annotations *AnnotationService
	validator   *validation.Validator
	events      EventEmitter
	logger      *slog.Logger
}

// NewMLJobService creates a new ML job service.
func NewMLJobService(repos *store.Repositories, annotations *AnnotationService, deps Deps) *MLJobService {
	deps = deps.withDefaults()
	return &MLJobService{
		repos:       repos,
		annotations: annotations,
		validator:   deps.Validator,
		events:      deps.Events,
		logger:      deps.Logger,
	}
}

// SubmitJobRequest queues an inference run on an image.
type SubmitJobRequest struct {
	ImageID string            `json:"imageId" validate:"required,objectid"`
	Model   string            `json:"model" validate:"required,max=100"`
	Params  map[string]string `json:"params,omitempty" validate:"max=50"`
}

// CompleteJobRequest reports the predictions of a finished run.
// Apply turns them into annotations on the job's image.
type CompleteJobRequest struct {
	Predictions []domain.Prediction `json:"predictions" validate:"dive"`
	Apply       bool                `json:"apply"`
}

// ListJobsRequest filters a job listing.
type ListJobsRequest struct {
	Status domain.MLJobStatus `validate:"omitempty,oneof=queued running completed failed cancelled"`
	Limit  int
	Cursor string
}

// SubmitJob queues a job for an existing image.
func (s *MLJobService) SubmitJob(ctx context.Context, req SubmitJobRequest) (*domain.MLJob, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	img, err := s.repos.Images.FindByID(ctx, req.ImageID)
	if img, err = notFound(img, err, "image %s not found", req.ImageID); err != nil {
		return nil, err
	}

	job, err := s.repos.MLJobs.Enqueue(ctx, &domain.MLJob{
		ImageID:   img.ID,
		ProjectID: img.ProjectID,
		Model:     sanitize.Name(req.Model, 100),
		Params:    cleanMetadata(req.Params),
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(sse.NewJobEvent(job))
	s.logger.Info("ml job queued", "id", job.ID, "image_id", job.ImageID, "model", job.Model)
	return job, nil
}

// GetJob returns a single job.
func (s *MLJobService) GetJob(ctx context.Context, jobID string) (*domain.MLJob, error) {
	if _, err := id.Parse(jobID); err != nil {
		return nil, err
	}
	job, err := s.repos.MLJobs.FindByID(ctx, jobID)
	return notFound(job, err, "ml job %s not found", jobID)
}

// ListJobs returns one page of jobs.
func (s *MLJobService) ListJobs(ctx context.Context, req ListJobsRequest) (*store.PaginatedResult[*domain.MLJob], error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	params, err := pageParams(req.Limit, req.Cursor)
	if err != nil {
		return nil, err
	}
	return s.repos.MLJobs.List(ctx, req.Status, params)
}

// JobsForImage returns the jobs of an image, newest first.
func (s *MLJobService) JobsForImage(ctx context.Context, imageID string) ([]*domain.MLJob, error) {
	if _, err := id.Parse(imageID); err != nil {
		return nil, err
	}
	return s.repos.MLJobs.ByImage(ctx, imageID)
}

// StartJob moves a queued job to running.
func (s *MLJobService) StartJob(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return s.transition(ctx, jobID, "started", func() (*domain.MLJob, error) {
		return s.repos.MLJobs.Start(ctx, jobID)
	})
}

// CompleteJob records the predictions of a running job and, when asked,
// applies them as annotations.
func (s *MLJobService) CompleteJob(ctx context.Context, jobID string, req CompleteJobRequest) (*domain.MLJob, []*domain.Annotation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, nil, err
	}
	preds := make([]domain.Prediction, 0, len(req.Predictions))
	for _, p := range req.Predictions {
		p.Label = sanitize.Name(p.Label, maxTagName)
		p.Confidence = min(max(p.Confidence, 0), 1)
		if hexID, ok := id.Normalize(p.TagID); ok {
			p.TagID = hexID
		} else {
			p.TagID = ""
		}
		preds = append(preds, p)
	}

	job, err := s.transition(ctx, jobID, "completed", func() (*domain.MLJob, error) {
		return s.repos.MLJobs.Complete(ctx, jobID, preds)
	})
	if err != nil || !req.Apply {
		return job, nil, err
	}

	created, err := s.ApplyPredictions(ctx, job)
	return job, created, err
}

// FailJob marks an unfinished job failed.
func (s *MLJobService) FailJob(ctx context.Context, jobID, reason string) (*domain.MLJob, error) {
	reason = sanitize.Text(reason, 2000)
	return s.transition(ctx, jobID, "failed", func() (*domain.MLJob, error) {
		return s.repos.MLJobs.Fail(ctx, jobID, reason)
	})
}

// CancelJob stops an unfinished job.
func (s *MLJobService) CancelJob(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return s.transition(ctx, jobID, "cancelled", func() (*domain.MLJob, error) {
		return s.repos.MLJobs.Cancel(ctx, jobID)
	})
}

// RetryJob requeues a failed job.
func (s *MLJobService) RetryJob(ctx context.Context, jobID string) (*domain.MLJob, error) {
	return s.transition(ctx, jobID, "requeued", func() (*domain.MLJob, error) {
		return s.repos.MLJobs.Retry(ctx, jobID)
	})
}

// ApplyPredictions creates one annotation per prediction of a completed
// job with source "ml:<model>". A prediction without a tag id is matched
// to a tag by exact name. Predictions that fail validation are skipped.
func (s *MLJobService) ApplyPredictions(ctx context.Context, job *domain.MLJob) ([]*domain.Annotation, error) {
	created := make([]*domain.Annotation, 0, len(job.Predictions))
	source := mlSourcePrefix + job.Model

	for i, p := range job.Predictions {
		var tags []string
		tagID, err := s.resolveTag(ctx, p)
		if err != nil {
			return created, err
		}
		if tagID != "" {
			tags = []string{tagID}
		}

		confidence := p.Confidence
		a, err := s.annotations.CreateAnnotation(ctx, CreateAnnotationRequest{
			ImageID:     job.ImageID,
			BoundingBox: p.BoundingBox,
			Tags:        tags,
			Description: p.Label,
			Confidence:  &confidence,
			Source:      source,
		})
		if err != nil {
			s.logger.Warn("skipping prediction", "job_id", job.ID, "index", i, "error", err)
			continue
		}
		created = append(created, a)
	}

	s.logger.Info("predictions applied",
		"job_id", job.ID,
		"image_id", job.ImageID,
		"created", len(created),
		"skipped", len(job.Predictions)-len(created),
	)
	return created, nil
}

func (s *MLJobService) resolveTag(ctx context.Context, p domain.Prediction) (string, error) {
	if p.TagID != "" {
		return p.TagID, nil
	}
	label := strings.TrimSpace(p.Label)
	if label == "" {
		return "", nil
	}
	byDepth := []store.SortField{store.Asc("depth"), store.Asc("path")}
	t, err := s.repos.Tags.FindOne(ctx, store.Query(store.Eq("name", label)).OrderBy(byDepth...))
	if err != nil {
		return "", err
	}
	if t != nil {
		return t.ID, nil
	}

	// Detector labels rarely match tag names exactly; fall back to a
	// folded comparison, shallowest tag first.
	key := util.LabelKey(label)
	if key == "" {
		return "", nil
	}
	tags, err := s.repos.Tags.Find(ctx, store.Query().OrderBy(byDepth...))
	if err != nil {
		return "", err
	}
	for _, t := range tags {
		if util.LabelKey(t.Name) == key {
			return t.ID, nil
		}
	}
	return "", nil
}

func (s *MLJobService) transition(ctx context.Context, jobID, verb string, fn func() (*domain.MLJob, error)) (*domain.MLJob, error) {
	if _, err := id.Parse(jobID); err != nil {
		return nil, err
	}
	job, err := fn()
	if job, err = notFound(job, err, "ml job %s not found", jobID); err != nil {
		return nil, err
	}
	s.events.Emit(sse.NewJobEvent(job))
	s.logger.Info("ml job "+verb, "id", job.ID, "status", job.Status, "attempts", job.Attempts)
	return job, nil
}
