// Package api serves the catalog over HTTP. It translates catalog, search
// and facet models into wire types and routes them through a gin engine.
//
// # Routes
//
//	GET    /api/search              search with mode, filters, sort and paging
//	GET    /api/facets              cached facet counts
//	GET    /api/items/:id           one item without its full text
//	GET    /api/items/:id/text      full extracted text
//	GET    /api/items/:id/related   same-folder and shared-tag neighbours
//	POST   /api/items/:id/star      star an item
//	DELETE /api/items/:id/star      remove the star
//	GET    /api/starred             starred items
//	GET    /api/summaries           box and folder labels
//	GET    /api/stats               per-stage status counts
//	GET    /metrics                 Prometheus exposition
//	GET    /healthz                 database and stage readiness
//
// # Middleware
//
// Every request gets an X-Request-ID (echoed when supplied) that is also
// attached to the request context for logging. Clients are rate limited by
// IP with a token bucket. When a token is configured, mutating routes require
// it as a bearer token.
//
// # Design Notes
//
// JSON fields are snake_case to match the search rows. Item payloads never
// include text_content; the text route is the only way to read it.
package api
