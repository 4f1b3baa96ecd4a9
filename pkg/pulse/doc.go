// Package pulse is a request-sampled performance profiler for plugin-based web hosts.
//
// A Profiler decides once per request whether the request is profiled. For a
// profiled request it creates a Session that:
//   - times code-file loads through an instrumented fs.FS and attributes them
//     to the owning plugin or theme
//   - counts queries and keeps slow ones
//   - tracks enqueued CSS and JS assets
//
// The session is flushed once, at the end of the request, into a Store.
// When the store is unavailable the bundle goes to a FallbackCache instead.
//
// Example:
//
//	profiler := pulse.New(pulse.Config{
//	    Settings: pulse.DefaultSettings(),
//	    Site:     site,
//	    CodeFS:   os.DirFS(siteRoot),
//	    Store:    store,
//	})
//	http.ListenAndServe(":8080", profiler.Middleware(handler))
//
// Inside handlers, the package-level helpers (CodeFS, Checkpoint, OnQueryStart,
// CaptureEnqueued and friends) act on the request's session and are no-ops for
// requests that are not profiled.
package pulse
