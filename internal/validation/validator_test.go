package validation_test

import (
	"net/http"
	"testing"

	domainerrors "github.com/ilbumi/satin/internal/errors"
	"github.com/ilbumi/satin/internal/id"
	"github.com/ilbumi/satin/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct {
	X      float64 `json:"x" validate:"gte=0"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0,lte=100"`
}

type testRequest struct {
	ImageID  string   `json:"imageId" validate:"required,objectid"`
	Name     string   `json:"name" validate:"required,tagname,max=10"`
	Color    string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	Tags     []string `json:"tags" validate:"dive,objectid"`
	Priority int      `json:"priority" validate:"min=0,max=10"`
	Box      box      `json:"boundingBox"`
}

func validRequest() testRequest {
	return testRequest{
		ImageID: id.NewHex(),
		Name:    "cat",
		Color:   "#ff00aa",
		Tags:    []string{id.NewHex()},
		Box:     box{X: 1, Width: 2, Height: 3},
	}
}

func TestValidator_ValidateSuccess(t *testing.T) {
	v := validation.New()
	assert.NoError(t, v.Validate(validRequest()))
}

func TestValidator_ValidateErrors(t *testing.T) {
	v := validation.New()

	tests := []struct {
		name      string
		mutate    func(*testRequest)
		wantField string
		wantMsg   string
	}{
		{"missing image id", func(r *testRequest) { r.ImageID = "" }, "imageId", "is required"},
		{"malformed image id", func(r *testRequest) { r.ImageID = "abc" }, "imageId", "24 character hex"},
		{"slash in tag name", func(r *testRequest) { r.Name = "a/b" }, "name", "'/'"},
		{"blank tag name", func(r *testRequest) { r.Name = "   " }, "name", "'/'"},
		{"long name", func(r *testRequest) { r.Name = "abcdefghijk" }, "name", "10 characters"},
		{"bad color", func(r *testRequest) { r.Color = "red" }, "color", "hex color"},
		{"bad tag id", func(r *testRequest) { r.Tags = []string{"$where"} }, "tags[0]", "24 character hex"},
		{"priority range", func(r *testRequest) { r.Priority = 11 }, "priority", "must not exceed 10"},
		{"negative x", func(r *testRequest) { r.Box.X = -1 }, "boundingBox.x", "greater than or equal to 0"},
		{"zero width", func(r *testRequest) { r.Box.Width = 0 }, "boundingBox.width", "greater than 0"},
		{"tall box", func(r *testRequest) { r.Box.Height = 101 }, "boundingBox.height", "less than or equal to 100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)

			err := v.Validate(req)
			require.Error(t, err)

			var domainErr *domainerrors.Error
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, http.StatusBadRequest, domainErr.HTTPStatus())

			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details[tt.wantField], tt.wantMsg, "details: %v", details)
		})
	}
}

func TestValidator_Var(t *testing.T) {
	v := validation.New()

	assert.NoError(t, v.Var("tagId", id.NewHex(), "objectid"))

	err := v.Var("tagId", "nope", "objectid")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}
