// Package server provides HTTP routing, middleware, webhook intake and the
// OAuth account-linking flow for the bot service.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first),
// following the standard Go pattern. The [BasicRouter] implementation uses
// [http.ServeMux] internally with method filtering.
//
// # Webhook Intake
//
// [WebhookHandler] receives Telegram updates on /webhook/{secret}. The path
// secret is compared in constant time; a mismatch is a 403 and nothing is
// dispatched. Valid updates are acked immediately and processed on their own
// goroutine, one pipeline invocation per update.
//
// # OAuth Account Linking
//
// [OAuthHandler] implements the redirect-based flow that yields the
// long-lived Spotify refresh credential: /login sends the operator to the
// consent page, /callback exchanges the code, persists the refresh token and
// re-authenticates the shared Spotify service. The flow runs once per
// deployment; the pipeline only ever consumes the resulting credential.
package server
