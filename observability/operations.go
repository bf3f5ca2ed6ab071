package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ServiceName is reported as the OpenTelemetry service name
	ServiceName = "origami-build-service"

	// TracerName is the tracer name for resolver and source operations
	TracerName = "github.com/adambraimbridge/origami-build-service-v3"
)

// Common attribute keys
const (
	AttrPackageName    = attribute.Key("obs.package.name")
	AttrPackageVersion = attribute.Key("obs.package.version")
	AttrSource         = attribute.Key("obs.source")
	AttrOperation      = attribute.Key("obs.operation")
	AttrCacheHit       = attribute.Key("obs.cache.hit")
	AttrDependencies   = attribute.Key("obs.dependencies")
	AttrSolveOutcome   = attribute.Key("obs.solve.outcome")
	AttrAttempts       = attribute.Key("obs.solve.attempted_solutions")
)

// StartSolveSpan starts a span covering one version solver run.
func StartSolveSpan(ctx context.Context, root string, dependencyCount int) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "solver.solve",
		trace.WithAttributes(
			AttrPackageName.String(root),
			AttrDependencies.Int(dependencyCount),
			AttrOperation.String("solve"),
		),
	)
}

// StartListVersionsSpan starts a span for an uncached version listing.
func StartListVersionsSpan(ctx context.Context, packageName, source string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "source.list_versions",
		trace.WithAttributes(
			AttrPackageName.String(packageName),
			AttrSource.String(source),
			AttrOperation.String("list"),
		),
	)
}

// StartDescribeSpan starts a span for an uncached manifest fetch.
func StartDescribeSpan(ctx context.Context, packageName, version, source string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "source.describe",
		trace.WithAttributes(
			AttrPackageName.String(packageName),
			AttrPackageVersion.String(version),
			AttrSource.String(source),
			AttrOperation.String("describe"),
		),
	)
}

// StartPackageDownloadSpan starts a span for downloading one package into the system cache.
func StartPackageDownloadSpan(ctx context.Context, packageName, version, source string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "package.download",
		trace.WithAttributes(
			AttrPackageName.String(packageName),
			AttrPackageVersion.String(version),
			AttrSource.String(source),
			AttrOperation.String("download"),
		),
	)
}

// StartInstallSpan starts a span for resolving and installing a root manifest.
func StartInstallSpan(ctx context.Context, location string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "install.dependencies",
		trace.WithAttributes(
			attribute.String("obs.install.location", location),
			AttrOperation.String("install"),
		),
	)
}

// RecordCacheHit marks the current span as served from cache or not.
func RecordCacheHit(ctx context.Context, hit bool) {
	trace.SpanFromContext(ctx).SetAttributes(AttrCacheHit.Bool(hit))
}

// EndSpanWithError ends a span with an error status
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
