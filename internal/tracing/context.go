package tracing

import (
	"context"

	"github.com/google/uuid"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// RequestIDKey identifies one coordinator call
	RequestIDKey ContextKey = "request_id"
	// ChainIDKey groups the steps of one composite operation
	ChainIDKey ContextKey = "chain_id"
	// RegionKey is the memory region being served
	RegionKey ContextKey = "region"
)

// TraceContext holds tracing information
type TraceContext struct {
	TraceID   string
	RequestID string
	ChainID   string
	Region    string
}

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestID generates a new request ID
func NewRequestID() string {
	return uuid.New().String()
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithChainID(ctx context.Context, chainID string) context.Context {
	return context.WithValue(ctx, ChainIDKey, chainID)
}

func WithRegion(ctx context.Context, region string) context.Context {
	return context.WithValue(ctx, RegionKey, region)
}

func value(ctx context.Context, key ContextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	return value(ctx, TraceIDKey)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	return value(ctx, RequestIDKey)
}

// GetChainID retrieves the composite operation ID from the context
func GetChainID(ctx context.Context) string {
	return value(ctx, ChainIDKey)
}

// GetRegion retrieves the region from the context
func GetRegion(ctx context.Context) string {
	return value(ctx, RegionKey)
}

// FromContext extracts all tracing information from the context
func FromContext(ctx context.Context) *TraceContext {
	return &TraceContext{
		TraceID:   GetTraceID(ctx),
		RequestID: GetRequestID(ctx),
		ChainID:   GetChainID(ctx),
		Region:    GetRegion(ctx),
	}
}

// NewContext creates a new context with tracing information
func NewContext(ctx context.Context, tc *TraceContext) context.Context {
	if tc.TraceID != "" {
		ctx = WithTraceID(ctx, tc.TraceID)
	}
	if tc.RequestID != "" {
		ctx = WithRequestID(ctx, tc.RequestID)
	}
	if tc.ChainID != "" {
		ctx = WithChainID(ctx, tc.ChainID)
	}
	if tc.Region != "" {
		ctx = WithRegion(ctx, tc.Region)
	}
	return ctx
}

// NewRequestContext tags ctx with a fresh request ID for one memory call,
// minting a trace ID if the caller did not supply one.
func NewRequestContext(ctx context.Context, region string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	ctx = WithRequestID(ctx, NewRequestID())
	return WithRegion(ctx, region)
}
