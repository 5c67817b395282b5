// Package server exposes the shared playback snapshot to real-time subscribers.
//
// # Hub
//
// [Hub] owns the single "currently playing" snapshot. [Hub.Subscribe] registers a subscriber,
// immediately replays the snapshot when one exists, and starts a [tasks.Poller] bound to that
// subscription. Every poller publishes into the hub, and every emitted event is delivered to every
// subscriber. [Hub.Unsubscribe] stops the subscriber's poller and closes its event channel;
// results still in flight for it are dropped.
//
// # Transport
//
// [StreamHandler] serves websocket subscriptions on "/". Each frame is a JSON text message:
//
//	{"event":"nowPlayingData","data":{...song...}}
//	{"event":"nowPlayingData","data":null}
//
// A plain GET on "/" answers 426 Upgrade Required, other paths 404, and "/health" answers 200 OK.
// An allow-list restricts handshake origins; an empty list accepts any origin. A failed send or a
// read error ends only that subscription.
//
// [Dial] and [Client] are the receiving side, used by the terminal watcher.
//
// # Router Infrastructure
//
// [BasicRouter] wraps [http.ServeMux] with a [Middleware] stack (last added executes first) and
// method filtering. [RequestLogger] keeps the response writer hijackable so upgrades still work.
//
// # OAuth Callback Handler
//
// [OAuthHandler] completes the authorization-code flow used by the `auth` command to mint a
// refresh token. It validates the state parameter, exchanges the code, and publishes a single
// [OAuthResult]; later callbacks are refused.
package server
