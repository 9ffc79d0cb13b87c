package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   PageRequest
		want PageRequest
	}{
		{"defaults", PageRequest{}, PageRequest{Page: 0, Size: DefaultPageSize}},
		{"negative page", PageRequest{Page: -3, Size: 5}, PageRequest{Page: 0, Size: 5}},
		{"oversized", PageRequest{Page: 2, Size: 500}, PageRequest{Page: 2, Size: MaxPageSize}},
		{"kept", PageRequest{Page: 1, Size: 10}, PageRequest{Page: 1, Size: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}

	assert.Equal(t, 20, PageRequest{Page: 2, Size: 10}.Offset())
	assert.Equal(t, DefaultPageSize, PageRequest{Size: -1}.Limit())
}

func TestNewPage(t *testing.T) {
	page := NewPage([]int{1, 2}, PageRequest{Page: 0, Size: 2}, 5)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, int64(5), page.TotalItems)
	assert.False(t, page.IsLastPage)

	last := NewPage([]int{5}, PageRequest{Page: 2, Size: 2}, 5)
	assert.True(t, last.IsLastPage)
	assert.Equal(t, 2, last.PageNumber)

	empty := NewPage[int](nil, PageRequest{}, 0)
	assert.NotNil(t, empty.Items)
	assert.Zero(t, empty.TotalPages)
	assert.True(t, empty.IsLastPage)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{NewAccessDeniedError("no"), fiber.StatusForbidden},
		{NewValidationError("bad"), fiber.StatusBadRequest},
		{NewMediaUploadError(errors.New("s3 down")), fiber.StatusBadGateway},
		{NewAdmissionRejectedError("busy"), fiber.StatusTooManyRequests},
		{NewUnauthorizedError("who"), fiber.StatusUnauthorized},
		{fmt.Errorf("wrapped: %w", NewNotFoundError("User", 2)), fiber.StatusNotFound},
		{errors.New("boom"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("bucket missing")
	err := NewMediaUploadError(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Media upload failed: bucket missing", err.Error())
	assert.True(t, IsCode(err, CodeMediaUploadFailed))
	assert.Equal(t, CodeInternal, ErrorCode(cause))
}
