package cli

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/project"
)

func TestCommandError_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"singleton", crud.ErrSingletonViolation, ExitFailure},
		{"not found", crud.ErrNotFound, ExitFailure},
		{"delete forbidden", fmt.Errorf("delete project_meta: %w", crud.ErrDeleteForbidden), ExitFailure},
		{"type mismatch", fmt.Errorf("%w: goal create", crud.ErrEntryTypeMismatch), ExitFailure},
		{"no project", project.ErrNoProjectMeta, ExitFailure},
		{"other", assert.AnError, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(commandError("failed", tt.err)))
		})
	}
}
