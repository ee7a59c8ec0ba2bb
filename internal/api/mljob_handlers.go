package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	"github.com/ilbumi/satin/internal/domain"
	"github.com/ilbumi/satin/internal/service"
)

func (s *Server) registerMLJobRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "submitMLJob",
		Method:        http.MethodPost,
		Path:          "/api/v1/ml-jobs",
		Summary:       "Submit ML job",
		Description:   "Queues an inference run on an image",
		Tags:          []string{"ML Jobs"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleSubmitMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMLJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/ml-jobs",
		Summary:     "List ML jobs",
		Description: "Returns a page of jobs, newest first",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMLJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "getMLJob",
		Method:      http.MethodGet,
		Path:        "/api/v1/ml-jobs/{id}",
		Summary:     "Get ML job",
		Description: "Returns a job by ID",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "listImageMLJobs",
		Method:      http.MethodGet,
		Path:        "/api/v1/images/{id}/ml-jobs",
		Summary:     "List ML jobs for image",
		Description: "Returns every job submitted for an image",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListImageMLJobs)

	huma.Register(s.api, huma.Operation{
		OperationID: "startMLJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/ml-jobs/{id}/start",
		Summary:     "Start ML job",
		Description: "Marks a queued job as running",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleStartMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "completeMLJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/ml-jobs/{id}/complete",
		Summary:     "Complete ML job",
		Description: "Stores the predictions of a running job and optionally applies them as annotations",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCompleteMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "failMLJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/ml-jobs/{id}/fail",
		Summary:     "Fail ML job",
		Description: "Marks a job as failed with a reason",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleFailMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "cancelMLJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/ml-jobs/{id}/cancel",
		Summary:     "Cancel ML job",
		Description: "Cancels a job that has not finished",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCancelMLJob)

	huma.Register(s.api, huma.Operation{
		OperationID: "retryMLJob",
		Method:      http.MethodPost,
		Path:        "/api/v1/ml-jobs/{id}/retry",
		Summary:     "Retry ML job",
		Description: "Requeues a failed job",
		Tags:        []string{"ML Jobs"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRetryMLJob)
}

// === DTOs ===

// SubmitMLJobRequest is the request body for submitting a job.
type SubmitMLJobRequest struct {
	ImageID string            `json:"imageId" doc:"Image to run the model on"`
	Model   string            `json:"model" minLength:"1" maxLength:"100" doc:"Model name"`
	Params  map[string]string `json:"params,omitempty" doc:"Model parameters"`
}

// SubmitMLJobInput wraps the submit request for Huma.
type SubmitMLJobInput struct {
	Authorization string `header:"Authorization"`
	Body          SubmitMLJobRequest
}

// MLJobOutput wraps a job for Huma.
type MLJobOutput struct {
	Body *domain.MLJob
}

// ListMLJobsInput contains parameters for listing jobs.
type ListMLJobsInput struct {
	Authorization string `header:"Authorization"`
	Status        string `query:"status" doc:"Filter by status: queued, running, completed, failed or cancelled"`
	dto.PaginationParams
}

// MLJobListOutput wraps a list of jobs for Huma.
type MLJobListOutput struct {
	Body dto.ListResponse[*domain.MLJob]
}

// GetMLJobInput contains parameters for addressing a job.
type GetMLJobInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Job ID"`
}

// ImageMLJobsInput contains parameters for an image's jobs.
type ImageMLJobsInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Image ID"`
}

// CompleteMLJobRequest is the request body for completing a job.
type CompleteMLJobRequest struct {
	Predictions []domain.Prediction `json:"predictions" doc:"Detections produced by the model"`
	Apply       bool                `json:"apply,omitempty" doc:"Create annotations from the predictions"`
}

// CompleteMLJobInput wraps the complete request for Huma.
type CompleteMLJobInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Job ID"`
	Body          CompleteMLJobRequest
}

// CompleteMLJobResponse holds the finished job and the annotations it created.
type CompleteMLJobResponse struct {
	Job         *domain.MLJob        `json:"job" doc:"The completed job"`
	Annotations []*domain.Annotation `json:"annotations" doc:"Annotations created from predictions"`
}

// CompleteMLJobOutput wraps the complete response for Huma.
type CompleteMLJobOutput struct {
	Body CompleteMLJobResponse
}

// FailMLJobRequest is the request body for failing a job.
type FailMLJobRequest struct {
	Reason string `json:"reason" minLength:"1" maxLength:"2000" doc:"Failure reason"`
}

// FailMLJobInput wraps the fail request for Huma.
type FailMLJobInput struct {
	Authorization string `header:"Authorization"`
	ID            string `path:"id" doc:"Job ID"`
	Body          FailMLJobRequest
}

// === Handlers ===

func (s *Server) handleSubmitMLJob(ctx context.Context, input *SubmitMLJobInput) (*MLJobOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	job, err := s.services.MLJobs.SubmitJob(ctx, service.SubmitJobRequest{
		ImageID: input.Body.ImageID,
		Model:   input.Body.Model,
		Params:  input.Body.Params,
	})
	if err != nil {
		return nil, err
	}

	return &MLJobOutput{Body: job}, nil
}

func (s *Server) handleListMLJobs(ctx context.Context, input *ListMLJobsInput) (*MLJobListOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	page, err := s.services.MLJobs.ListJobs(ctx, service.ListJobsRequest{
		Status: domain.MLJobStatus(input.Status),
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, err
	}

	return &MLJobListOutput{Body: listOf(page)}, nil
}

func (s *Server) handleGetMLJob(ctx context.Context, input *GetMLJobInput) (*MLJobOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	job, err := s.services.MLJobs.GetJob(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &MLJobOutput{Body: job}, nil
}

func (s *Server) handleListImageMLJobs(ctx context.Context, input *ImageMLJobsInput) (*MLJobListOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	jobs, err := s.services.MLJobs.JobsForImage(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*domain.MLJob{}
	}

	return &MLJobListOutput{Body: dto.ListResponse[*domain.MLJob]{Items: jobs, Total: len(jobs)}}, nil
}

func (s *Server) handleStartMLJob(ctx context.Context, input *GetMLJobInput) (*MLJobOutput, error) {
	return s.jobTransition(ctx, input, s.services.MLJobs.StartJob)
}

func (s *Server) handleCancelMLJob(ctx context.Context, input *GetMLJobInput) (*MLJobOutput, error) {
	return s.jobTransition(ctx, input, s.services.MLJobs.CancelJob)
}

func (s *Server) handleRetryMLJob(ctx context.Context, input *GetMLJobInput) (*MLJobOutput, error) {
	return s.jobTransition(ctx, input, s.services.MLJobs.RetryJob)
}

func (s *Server) jobTransition(ctx context.Context, input *GetMLJobInput, fn func(context.Context, string) (*domain.MLJob, error)) (*MLJobOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	job, err := fn(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &MLJobOutput{Body: job}, nil
}

func (s *Server) handleCompleteMLJob(ctx context.Context, input *CompleteMLJobInput) (*CompleteMLJobOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	job, created, err := s.services.MLJobs.CompleteJob(ctx, input.ID, service.CompleteJobRequest{
		Predictions: input.Body.Predictions,
		Apply:       input.Body.Apply,
	})
	if err != nil {
		return nil, err
	}

	if created == nil {
		created = []*domain.Annotation{}
	}

	return &CompleteMLJobOutput{Body: CompleteMLJobResponse{Job: job, Annotations: created}}, nil
}

func (s *Server) handleFailMLJob(ctx context.Context, input *FailMLJobInput) (*MLJobOutput, error) {
	if err := s.authorize(ctx, input.Authorization); err != nil {
		return nil, err
	}

	job, err := s.services.MLJobs.FailJob(ctx, input.ID, input.Body.Reason)
	if err != nil {
		return nil, err
	}

	return &MLJobOutput{Body: job}, nil
}
