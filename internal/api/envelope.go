package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/http/response"
)

// EnvelopeVersion is the response envelope version clients negotiate on.
const EnvelopeVersion = response.EnvelopeVersion

// APIEnvelope is the JSON shape of every API response.
type APIEnvelope = response.Envelope

// EnvelopeTransformer wraps huma response bodies in the standard envelope.
// Success bodies land in data; error bodies keep their code, message and details.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	if env, ok := v.(APIEnvelope); ok {
		return env, nil
	}

	if !isErrorStatus(status) {
		return response.Ok(v), nil
	}

	code, _ := strconv.Atoi(status)
	switch body := v.(type) {
	case *APIError:
		return response.Fail(domainerrors.Code(body.Code), body.Message, body.Details), nil
	case *domainerrors.Error:
		return response.Fail(body.Code, body.Message, body.Details), nil
	case error:
		var domainErr *domainerrors.Error
		if errors.As(body, &domainErr) {
			return response.Fail(domainErr.Code, domainErr.Message, domainErr.Details), nil
		}
		return response.Fail(domainerrors.Code(statusToCode(code)), body.Error(), nil), nil
	default:
		return response.Fail(domainerrors.Code(statusToCode(code)), "request failed", v), nil
	}
}

func isErrorStatus(status string) bool {
	return strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5")
}
