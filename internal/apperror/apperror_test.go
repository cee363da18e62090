package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := New(NotFound, "store.AppendSample", errors.New("no such entity"))
	wrapped := fmt.Errorf("ingest report: %w", base)

	assert.True(t, IsKind(wrapped, NotFound))
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
	assert.Equal(t, "store.AppendSample: no such entity", base.Error())
}

func TestUnclassifiedErrorIsInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, Internal, KindOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "internal error", PublicMessage(err))
}

func TestPublicMessagePrefersExplicitMessage(t *testing.T) {
	err := New(InvalidInput, "ingest.Validate", errors.New("hostname: required")).
		WithMessage("hostname is required")
	assert.Equal(t, "hostname is required", PublicMessage(err))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestInternalErrorsCaptureStack(t *testing.T) {
	assert.NotEmpty(t, New(Internal, "op", errors.New("x")).Stack)
	assert.Empty(t, New(NotFound, "op", errors.New("x")).Stack)
}
