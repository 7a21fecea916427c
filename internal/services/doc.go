// Package services talks to the remote admin API and the hosted image service.
//
// # Client
//
// [Client] wraps an [http.Client] built by [NewHTTPClient]: an [Authorizer] on top
// of an optional conditional-request cache (httpcache). Cached responses vary on
// Authorization and the [ResponseCache] is flushed when the session ends. Every
// request carries an X-Request-ID and is paced by an optional rate limiter.
//
// # Authorization
//
// The [Authorizer] resolves a bearer credential per request. A token placed in the
// context with [WithCredential] wins over the [CredentialSource]. Requests without a
// credential are sent unauthenticated. The Authorizer never retries or refreshes.
//
// # Endpoint resolution
//
// [EndpointResolver] picks the API origin once: an explicit address verbatim, else
// [DefaultBaseURL] without a page context, else the page host on [APIPort] for local
// and dev-port origins, else the page origin itself.
//
// # Normalization
//
// Auth responses are reduced to [Response] by [Normalize], which accepts every token
// and principal field name the API has used. Bodies that are not API envelopes yield
// a [MalformedResponseError].
//
// # Errors
//
//   - [TransportError] : network failure, 5xx, or an unreadable body (matches [shared.ErrTransport])
//   - [shared.ErrAPIRequest] : a 4xx answer on a content endpoint
//   - [shared.ErrNotFound] : a 404 on a content endpoint
//   - [shared.ErrUploadFailed] : image upload gave up
package services
