package mcp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_PassesThroughMCPError(t *testing.T) {
	orig := NewInvalidParamsError("bad input")
	assert.Same(t, orig, MapError(orig))
}

func TestMapError_QueryErrorCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"invalid_query", qerrors.InvalidQuery("empty"), ErrCodeInvalidParams},
		{"store_not_found", qerrors.StoreNotFound("main"), ErrCodeStoreNotFound},
		{"dependency", qerrors.DependencyUnavailable("reranker", nil), ErrCodeDependencyUnavailable},
		{"cancelled", qerrors.Cancelled(nil), ErrCodeCancelled},
		{"internal", qerrors.Internal("nil state", nil), ErrCodeInternalError},
		{"plain_error", errors.New("boom"), ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
		})
	}
}

func TestMapError_StripsInternalCodePrefix(t *testing.T) {
	mapped := MapError(qerrors.StoreNotFound("main"))
	assert.Equal(t, `store "main" does not exist`, mapped.Message)
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("frobnicate")
	assert.Contains(t, err.Error(), "frobnicate")
	assert.Contains(t, err.Error(), "-32601")
}
