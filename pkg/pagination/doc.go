// Package pagination walks offset/limit paginated listings.
//
// The Etrieve metadata endpoint returns at most `limit` records per call and
// signals exhaustion with an X-HasMore header. FetchAll requests successive
// pages, advancing the offset by the page size, until a page comes back
// empty, the server reports no more results, or the loop bound is reached.
//
// Example usage:
//
//	fetch := pagination.PageFetcherFunc[documents.Document](func(ctx context.Context, q query.Query) (pagination.Page[documents.Document], error) {
//		return handler.DocumentMetadata(ctx, q, nil)
//	})
//	cfg := pagination.Config{PerRequest: 50, LoopMax: 20}
//	docs, err := pagination.FetchAll[documents.Document](ctx, fetch, query.Query{"q": "Smith"}, cfg)
//
// Reaching LoopMax is a silent truncation: the records gathered so far are
// returned without an error. Choose LoopMax*PerRequest above the largest
// result set you need complete.
package pagination
