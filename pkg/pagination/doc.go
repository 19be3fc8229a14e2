// Package pagination drives cursor-paginated GraphQL connections.
//
// GraphQL connections return one page at a time together with a pageInfo
// object. The next page can only be requested with the previous page's end
// cursor, so pages are fetched strictly in sequence. The Driver runs this
// loop for any connection: the caller supplies how to fetch a page, where
// the items are and where the page info is.
//
// Example usage:
//
//	driver := pagination.NewDriver(pagination.Config{
//		PageSize: 50,
//		Throttle: 500 * time.Millisecond,
//		Key: func(item *record.Record, _ int) string {
//			return item.String("identifier")
//		},
//	})
//	issues, err := driver.Run(ctx, fetchIssues,
//		extract.Items("team.issues.nodes"),
//		extract.PageInfoFunc("team.issues.pageInfo"))
//
// The driver:
//   - Accumulates items keyed by Config.Key, or streams each page to
//     Config.OnBatch without keeping it
//   - Stops when hasNextPage is false, the limit or the page cap is reached
//   - Waits Config.Throttle between pages, scaled down for short pages
//   - Never retries; transport retries belong to the fetch function
package pagination
