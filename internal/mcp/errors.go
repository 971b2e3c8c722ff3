// Package mcp exposes the search engine as a Model Context Protocol
// tool for AI agents.
package mcp

import (
	"errors"
	"fmt"

	qerrors "github.com/codequery-dev/codequery/internal/errors"
)

// JSON-RPC error codes used by the MCP binding.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603

	// ErrCodeStoreNotFound indicates the named store is not registered.
	ErrCodeStoreNotFound = -32001

	// ErrCodeDependencyUnavailable indicates a retrieval collaborator
	// (embedder, index, reranker) failed.
	ErrCodeDependencyUnavailable = -32002

	// ErrCodeCancelled indicates the request was cancelled.
	ErrCodeCancelled = -32003
)

// MCPError is a JSON-RPC style error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError creates an invalid-parameters error.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an unknown-tool error.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool not found: %s", name)}
}

// MapError converts engine errors to MCP errors using the transport
// error taxonomy.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch qerrors.PublicOf(err) {
	case qerrors.PublicInvalidQuery:
		return &MCPError{Code: ErrCodeInvalidParams, Message: publicMessage(err)}
	case qerrors.PublicStoreNotFound:
		return &MCPError{Code: ErrCodeStoreNotFound, Message: publicMessage(err)}
	case qerrors.PublicDependencyUnavailable:
		return &MCPError{Code: ErrCodeDependencyUnavailable, Message: publicMessage(err)}
	case qerrors.PublicCancelled:
		return &MCPError{Code: ErrCodeCancelled, Message: publicMessage(err)}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: publicMessage(err)}
	}
}

// publicMessage strips the internal error-code prefix from the message.
func publicMessage(err error) string {
	var qe *qerrors.QueryError
	if errors.As(err, &qe) {
		return qe.Message
	}
	return err.Error()
}
