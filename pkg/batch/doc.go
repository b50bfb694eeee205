// Package batch runs many telq GET requests in parallel.
//
// A Fetcher bounds the number of in-flight requests and gives each one its
// own timeout. Results come back in the order of the inputs (FetchAll) or
// under the caller's keys (FetchMap). A failed request does not stop the
// others: the successful results are returned together with the first
// error.
//
// Example usage:
//
//	fetcher := batch.NewFetcher(client, batch.DefaultConfig())
//	results, err := fetcher.FetchAll(ctx, []telq.Options{
//		{URL: "https://api.example.com/orders", Params: params.Params{"page": 1}, Expires: 5},
//		{URL: "https://api.example.com/orders", Params: params.Params{"page": 2}, Expires: 5},
//	})
//
// Requests go through the client, so cached identities are served from the
// registry without reaching the transport.
package batch
