// Package tasks holds the polling side of the broadcaster: the change policy and the poll loop.
//
// # Change Policy
//
// [Decide] compares the shared snapshot with a fresh poll result:
//
//	snapshot   result            event        new snapshot
//	--------   ---------------   ----------   ------------
//	absent     playing S         S            S
//	S          playing S'        S' if the    S'
//	                             track changed
//	S          nothing playing   null         absent
//	absent     nothing playing   none         absent
//
// Progress position, and any other field that changes on every tick, never produces an event on
// its own. A failed query never reaches [Decide].
//
// # Poll Loop
//
// A [Poller] is bound to one subscription. It ticks on a fixed interval and each tick runs
// independently: query the [services.NowPlayingSource] under a timeout, then hand the result to a
// [Publisher] which owns the snapshot. Cancelling the context passed to [Poller.Run] stops the
// ticker, aborts in-flight queries and drops their results.
//
// # Reports
//
// Every tick produces a [TickReport]. When a reports channel is configured, reports are sent
// without blocking; a full channel drops them.
package tasks
