// Package pager walks a remote paginated collection endpoint to completion.
//
// Pagination is strictly sequential: page N+1's URL is only known after
// page N has been fetched, so there is no fan-out. Both the server-side
// aggregation gate and the direct fallback path reuse the same pager,
// differing only in which HTTP client the underlying fetcher carries.
package pager
