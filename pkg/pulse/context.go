package pulse

import (
	"context"
	"io/fs"
)

type sessionKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session of a profiled request, or nil.
func FromContext(ctx context.Context) *Session {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// CodeFS returns the instrumented code filesystem for profiled requests and fallback otherwise.
func CodeFS(ctx context.Context, fallback fs.FS) fs.FS {
	if fsys := FromContext(ctx).FS(); fsys != nil {
		return fsys
	}
	return fallback
}

// Checkpoint records a lifecycle marker on the request's session.
func Checkpoint(ctx context.Context, phase string) {
	FromContext(ctx).Checkpoint(ctx, phase)
}

// SetPageType sets the page type stored with the request's profile.
func SetPageType(ctx context.Context, pageType string) {
	FromContext(ctx).SetPageType(pageType)
}

// OnQueryStart counts a query on the request's session and returns it unchanged.
func OnQueryStart(ctx context.Context, sql string) string {
	return FromContext(ctx).OnQueryStart(sql)
}

// RecordQuery adds a finished query to the request's query log.
func RecordQuery(ctx context.Context, rec QueryRecord) {
	FromContext(ctx).RecordQuery(rec)
}

// CaptureEnqueued tracks the request's enqueued scripts and styles.
func CaptureEnqueued(ctx context.Context, scripts, styles AssetQueue) {
	FromContext(ctx).CaptureEnqueued(scripts, styles)
}

// OnAssetSrcResolved patches the src of a tracked asset when its tag is rendered.
func OnAssetSrcResolved(ctx context.Context, handle, resolvedURL string) {
	FromContext(ctx).OnAssetSrcResolved(handle, resolvedURL)
}

// CaptureInlineContent tracks inline scripts and styles.
func CaptureInlineContent(ctx context.Context, scripts, styles AssetQueue) {
	FromContext(ctx).CaptureInlineContent(scripts, styles)
}
