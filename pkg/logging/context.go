package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

// loggerKey is the context key for the logger.
const loggerKey contextKey = iota

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}

	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}

	return Default()
}

// Ctx is a shorter alias for FromContext.
func Ctx(ctx context.Context) *zerolog.Logger {
	return FromContext(ctx)
}

// WithField adds a single structured field to the logger in the context.
func WithField(ctx context.Context, key string, value any) context.Context {
	logger := FromContext(ctx)
	newLogger := addField(logger.With(), key, value).Logger()
	return WithLogger(ctx, &newLogger)
}

// addField adds a field to the logger context based on its type.
func addField(lctx zerolog.Context, key string, value any) zerolog.Context {
	switch v := value.(type) {
	case string:
		return lctx.Str(key, v)
	case int:
		return lctx.Int(key, v)
	case int64:
		return lctx.Int64(key, v)
	case bool:
		return lctx.Bool(key, v)
	case error:
		if key == "error" || key == "err" {
			return lctx.Err(v)
		}
		return lctx.Str(key, v.Error())
	default:
		return lctx.Interface(key, v)
	}
}

// WithCategory adds the category being harvested to the context logger.
func WithCategory(ctx context.Context, category string) context.Context {
	return WithField(ctx, "category", category)
}

// WithRun adds the batch run id to the context logger.
func WithRun(ctx context.Context, runID string) context.Context {
	return WithField(ctx, "run_id", runID)
}

// WithConcept adds a concept identifier to the context logger.
func WithConcept(ctx context.Context, qid string) context.Context {
	return WithField(ctx, "qid", qid)
}
