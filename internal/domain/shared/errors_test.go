package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Kinds(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		kind ErrorKind
	}{
		{"validation", NewValidationError("INVALID_AMOUNT", "bad"), KindValidation},
		{"not found", NewNotFoundError("sale", "42"), KindNotFound},
		{"conflict", NewConflictError("raced", nil), KindConflict},
		{"integrity warning", NewIntegrityWarning("history lost", errors.New("sink down")), KindIntegrityWarning},
		{"internal", NewInternalError("boom", nil), KindInternal},
		{"legacy constructor maps codes", NewDomainError("OPTIMISTIC_LOCK_ERROR", "stale"), KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			assert.Equal(t, tt.kind, KindOf(wrapped))
			assert.True(t, IsKind(wrapped, tt.kind))
		})
	}
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("repo: %w", NewNotFoundError("recovery", "abc"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConcurrencyConflict)
}

func TestDomainError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternalError("save failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "save failed: connection reset", err.Error())
}

func TestNewPage(t *testing.T) {
	t.Run("computes page metadata", func(t *testing.T) {
		p := NewPage([]int{1, 2}, 5, PageRequest{Page: 2, Limit: 2})
		assert.Equal(t, 2, p.CurrentPage)
		assert.Equal(t, 3, p.TotalPages)
		assert.Equal(t, int64(5), p.TotalCount)
		assert.True(t, p.HasMore)
	})

	t.Run("last page has no more", func(t *testing.T) {
		p := NewPage([]int{5}, 5, PageRequest{Page: 3, Limit: 2})
		assert.False(t, p.HasMore)
	})

	t.Run("empty result keeps a non-nil slice", func(t *testing.T) {
		p := NewPage[int](nil, 0, PageRequest{})
		assert.NotNil(t, p.Data)
		assert.Equal(t, 0, p.TotalPages)
		assert.Equal(t, 1, p.CurrentPage)
		assert.False(t, p.HasMore)
	})

	t.Run("clamps limits", func(t *testing.T) {
		req := PageRequest{Page: -1, Limit: 1000}.Normalize()
		assert.Equal(t, 1, req.Page)
		assert.Equal(t, MaxPageSize, req.Limit)
		assert.Equal(t, 40, PageRequest{Page: 3, Limit: 20}.Offset())
	})

	t.Run("maps items", func(t *testing.T) {
		p := MapPage(NewPage([]int{1, 2}, 2, PageRequest{Page: 1, Limit: 10}), func(i int) string { return fmt.Sprint(i * 10) })
		assert.Equal(t, []string{"10", "20"}, p.Data)
	})
}
