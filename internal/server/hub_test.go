package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/nowplaying/internal/models"
	"github.com/desertthunder/nowplaying/internal/shared"
	"github.com/desertthunder/nowplaying/internal/tasks"
	tu "github.com/desertthunder/nowplaying/internal/testing"
)

// newIdleHub returns a hub whose pollers never tick during a test.
func newIdleHub(t *testing.T, opts HubOpts) *Hub {
	t.Helper()
	if opts.Source == nil {
		opts.Source = tu.NewFakeSource()
	}
	if opts.Interval == 0 {
		opts.Interval = time.Hour
	}
	hub, err := NewHub(opts)
	if err != nil {
		t.Fatalf("failed to create hub: %v", err)
	}
	t.Cleanup(hub.Close)
	return hub
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events:
		if !ok {
			t.Fatal("events channel closed")
		}
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case event, ok := <-sub.Events:
		if ok {
			t.Fatalf("expected no event, got %+v", event)
		}
	case <-time.After(20 * time.Millisecond):
	}
}

func title(song *models.Song) string {
	if song == nil {
		return "<nil>"
	}
	return song.Title
}

func TestHub(t *testing.T) {
	t.Run("NewHub requires a source", func(t *testing.T) {
		if _, err := NewHub(HubOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		t.Run("without snapshot delivers nothing", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			sub, err := hub.Subscribe()
			if err != nil {
				t.Fatalf("Subscribe() error = %v", err)
			}
			if sub.ID == "" {
				t.Error("expected subscription id")
			}
			expectNone(t, sub)
		})

		t.Run("replays the snapshot", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			hub.Publish(context.Background(), tu.NewSong("Song A", 1000))

			sub, _ := hub.Subscribe()
			event := receive(t, sub)
			if event.Name != EventNowPlaying {
				t.Errorf("expected %s, got %s", EventNowPlaying, event.Name)
			}
			if title(event.Data) != "Song A" {
				t.Errorf("expected Song A, got %s", title(event.Data))
			}
			expectNone(t, sub)
		})

		t.Run("replays the latest progress", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			hub.Publish(context.Background(), tu.NewSong("Song A", 1000))
			hub.Publish(context.Background(), tu.NewSong("Song A", 9000))

			sub, _ := hub.Subscribe()
			if event := receive(t, sub); event.Data.Progress != 9000 {
				t.Errorf("expected progress 9000, got %d", event.Data.Progress)
			}
		})

		t.Run("after close", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			hub.Close()
			if _, err := hub.Subscribe(); !errors.Is(err, shared.ErrServiceUnavailable) {
				t.Errorf("expected ErrServiceUnavailable, got %v", err)
			}
		})
	})

	t.Run("Publish", func(t *testing.T) {
		t.Run("fans out to every subscriber", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			first, _ := hub.Subscribe()
			second, _ := hub.Subscribe()

			if !hub.Publish(context.Background(), tu.NewSong("Song A", 0)) {
				t.Fatal("expected emission")
			}

			for _, sub := range []*Subscription{first, second} {
				if got := title(receive(t, sub).Data); got != "Song A" {
					t.Errorf("expected Song A, got %s", got)
				}
			}
		})

		t.Run("progress only is not emitted", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			sub, _ := hub.Subscribe()

			hub.Publish(context.Background(), tu.NewSong("Song A", 0))
			receive(t, sub)

			if hub.Publish(context.Background(), tu.NewSong("Song A", 3000)) {
				t.Error("expected no emission for progress change")
			}
			expectNone(t, sub)
		})

		t.Run("stop emits null and clears the snapshot", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			hub.Publish(context.Background(), tu.NewSong("Song A", 0))
			sub, _ := hub.Subscribe()
			receive(t, sub)

			if !hub.Publish(context.Background(), nil) {
				t.Fatal("expected emission")
			}
			if event := receive(t, sub); event.Data != nil {
				t.Errorf("expected null data, got %+v", event.Data)
			}
			if hub.Snapshot() != nil {
				t.Errorf("expected empty snapshot, got %+v", hub.Snapshot())
			}

			late, _ := hub.Subscribe()
			expectNone(t, late)
		})

		t.Run("cancelled loop is dropped", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{})
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			if hub.Publish(ctx, tu.NewSong("Song A", 0)) {
				t.Error("expected no emission")
			}
			if hub.Snapshot() != nil {
				t.Error("expected snapshot untouched")
			}
		})

		t.Run("full buffer does not block", func(t *testing.T) {
			hub := newIdleHub(t, HubOpts{Buffer: 1})
			sub, _ := hub.Subscribe()

			done := make(chan struct{})
			go func() {
				hub.Publish(context.Background(), tu.NewSong("Song A", 0))
				hub.Publish(context.Background(), tu.NewSong("Song B", 0))
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(time.Second):
				t.Fatal("publish blocked on a full subscriber")
			}

			if got := title(receive(t, sub).Data); got != "Song A" {
				t.Errorf("expected Song A, got %s", got)
			}
			if title(hub.Snapshot()) != "Song B" {
				t.Errorf("expected snapshot Song B, got %s", title(hub.Snapshot()))
			}
		})
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		hub := newIdleHub(t, HubOpts{})
		stay, _ := hub.Subscribe()
		leave, _ := hub.Subscribe()

		hub.Unsubscribe(leave)
		hub.Unsubscribe(leave)

		if _, ok := <-leave.Events; ok {
			t.Error("expected closed channel")
		}
		if hub.Subscribers() != 1 {
			t.Errorf("expected 1 subscriber, got %d", hub.Subscribers())
		}

		hub.Publish(context.Background(), tu.NewSong("Song A", 0))
		if got := title(receive(t, stay).Data); got != "Song A" {
			t.Errorf("expected remaining subscriber to get Song A, got %s", got)
		}
	})

	t.Run("Close", func(t *testing.T) {
		hub := newIdleHub(t, HubOpts{})
		first, _ := hub.Subscribe()
		second, _ := hub.Subscribe()

		hub.Close()

		for _, sub := range []*Subscription{first, second} {
			if _, ok := <-sub.Events; ok {
				t.Error("expected closed channel")
			}
		}
		if hub.Subscribers() != 0 {
			t.Errorf("expected no subscribers, got %d", hub.Subscribers())
		}
		if hub.Publish(context.Background(), tu.NewSong("Song A", 0)) {
			t.Error("expected closed hub not to emit")
		}
	})
}

func TestHubPolling(t *testing.T) {
	t.Run("scenario", func(t *testing.T) {
		source := tu.NewFakeSource(
			tu.Result{Song: tu.NewSong("Song A", 1000)},
			tu.Result{Song: tu.NewSong("Song A", 4000)},
			tu.Result{Song: tu.NewSong("Song B", 0)},
			tu.Result{Song: nil},
		)
		hub := newIdleHub(t, HubOpts{Source: source, Interval: 10 * time.Millisecond})
		sub, _ := hub.Subscribe()

		want := []string{"Song A", "Song B", "<nil>"}
		for i, w := range want {
			if got := title(receive(t, sub).Data); got != w {
				t.Errorf("event %d = %s, want %s", i, got, w)
			}
		}

		tu.Eventually(t, time.Second, func() bool { return source.Calls() >= 6 }, "more ticks")
		expectNone(t, sub)
	})

	t.Run("failed ticks emit nothing", func(t *testing.T) {
		source := tu.NewFakeSource(tu.Result{Err: shared.ErrQueryFailed})
		reports := make(chan tasks.TickReport, 16)
		hub := newIdleHub(t, HubOpts{Source: source, Interval: 10 * time.Millisecond, Reports: reports})
		sub, _ := hub.Subscribe()

		for range 3 {
			select {
			case report := <-reports:
				if report.Outcome != tasks.Failed {
					t.Errorf("expected failed tick, got %s", report.Outcome)
				}
			case <-time.After(time.Second):
				t.Fatal("timed out waiting for tick report")
			}
		}
		expectNone(t, sub)
	})

	t.Run("each subscription polls independently", func(t *testing.T) {
		source := tu.NewFakeSource(tu.Result{Song: tu.NewSong("Song A", 0)})
		hub := newIdleHub(t, HubOpts{Source: source, Interval: 10 * time.Millisecond})

		first, _ := hub.Subscribe()
		receive(t, first)
		second, _ := hub.Subscribe()
		receive(t, second)

		hub.Unsubscribe(first)
		calls := source.Calls()
		tu.Eventually(t, time.Second, func() bool { return source.Calls() >= calls+3 }, "remaining loop keeps ticking")
	})

	t.Run("concurrent subscribers see a consistent snapshot", func(t *testing.T) {
		source := tu.NewFakeSource(tu.Result{Song: tu.NewSong("Song A", 0)})
		hub := newIdleHub(t, HubOpts{Source: source, Interval: 5 * time.Millisecond})

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				sub, err := hub.Subscribe()
				if err != nil {
					t.Errorf("Subscribe() error = %v", err)
					return
				}
				defer hub.Unsubscribe(sub)

				select {
				case event := <-sub.Events:
					if got := title(event.Data); got != "Song A" {
						t.Errorf("expected Song A, got %s", got)
					}
				case <-time.After(time.Second):
					t.Error("timed out waiting for event")
				}
			}()
		}
		wg.Wait()
	})
}
