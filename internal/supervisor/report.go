package supervisor

import "github.com/getsentry/sentry-go"

// reportError forwards err to sentry. Without a configured client this is a no-op.
func reportError(err error, d Descriptor, kind string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("worker", d.ID)
		scope.SetTag("fault", kind)
		scope.SetExtra("path", d.Path)
		sentry.CaptureException(err)
	})
}
