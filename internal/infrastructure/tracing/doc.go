/*
Package tracing follows shell commands across process boundaries.

A window's host client injects X-Trace-ID and X-Span-ID headers from its
request context; the shell's HTTPMiddleware continues that trace, tags the
span with the route and status, and hands it to a collector goroutine that
logs it through zap. Spans are dropped rather than blocking when the
collector falls behind.

# Usage

	tracer := tracing.New("shell", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "create_window")
	defer func() { span.Finish(); tracer.Submit(span) }()
*/
package tracing
