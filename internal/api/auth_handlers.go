package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ilbumi/satin/internal/api/dto"
	domainerrors "github.com/ilbumi/satin/internal/errors"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "issueToken",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/token",
		Summary:     "Issue token",
		Description: "Exchanges the configured API key for a short-lived bearer token",
		Tags:        []string{"Auth"},
	}, s.handleIssueToken)
}

func (s *Server) handleIssueToken(_ context.Context, input *dto.TokenInput) (*dto.TokenOutput, error) {
	if s.auth == nil {
		return nil, domainerrors.Forbidden("authentication is disabled")
	}

	tok, err := s.auth.Exchange(input.Body.APIKey, input.Body.Client)
	if err != nil {
		return nil, err
	}

	return &dto.TokenOutput{
		Body: dto.TokenResponse{
			Token:     tok.Token,
			TokenType: tok.TokenType,
			ExpiresAt: tok.ExpiresAt,
			ExpiresIn: int(time.Until(tok.ExpiresAt).Seconds()),
		},
	}, nil
}
