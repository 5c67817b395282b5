// Package services implements the upstream side: credential management and the "currently playing" sources.
//
// # Sources
//
// Every source implements [NowPlayingSource]. A nil song with a nil error means nothing is playing.
// Failures are always wrapped with [shared.ErrQueryFailed] so callers can log and skip the tick.
//
//   - [SpotifyClient] : bearer-authenticated GET against the Spotify Web API, mapped to [models.Song]
//   - [EndpointSource] : plain GET against a pre-built URL that already serves the song shape
//
// # Credentials
//
// [TokenProvider] owns the access token. It exchanges the long-lived refresh token for a short-lived
// access token (form-encoded refresh_token grant, client credentials in the body) using [oauth2],
// lazily on first use and again after [TokenProvider.Invalidate]. Exchanges are throttled with a
// [rate.Limiter] so a revoked credential cannot flood the authorization endpoint.
//
// # Retry Policy
//
// [SpotifyClient.NowPlaying] makes at most two attempts per call:
//
//  1. Acquire a token (exchanging if needed) and fetch.
//  2. If that failed for any reason other than a malformed payload, invalidate the token, acquire a
//     fresh one and fetch again. The outcome of this attempt is final for the call.
//
// # Error Handling
//
//   - [shared.ErrAuthFailed] : credential exchange rejected or unreachable
//   - [shared.ErrAPIRequest] : network error or non-2xx status
//   - [shared.ErrMalformedPayload] : body did not match the expected shape, never retried
//   - [shared.ErrQueryFailed] : wraps all of the above at the source boundary
package services
