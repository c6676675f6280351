// Package pagination walks APIs that paginate through an absolute `next`
// link in each page body.
//
// Pages are fetched strictly one after another: each page's URL comes from
// the previous response, so there is nothing to parallelise.
//
// Example usage:
//
//	walker := pagination.NewWalker[Rate](fetcher, pagination.Config{
//		MaxPages:   50,
//		MaxResults: 5000,
//		AllowNext:  func(next string) bool { return validation.ValidateURL(next, host) },
//	})
//	rates, summary, err := walker.FetchAll(ctx, firstURL)
//
// The walker stops when:
//   - a page has no `next` link
//   - the `next` link is rejected by AllowNext (logged as a warning, not an error)
//   - the accumulated result count exceeds MaxResults
//   - MaxPages pages have been requested
//
// Any fetch error aborts the walk and no partial results are returned.
package pagination
