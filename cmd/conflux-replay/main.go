// Command conflux-replay is a small demo binary, not a production entry
// point: it generates a handful of synthetic, independently jittered
// streams, feeds them through a sync.Driver, and prints emitted groups. It
// stands in for the kind of rosbag-style offline replay the synchronization
// engine is meant to support, without owning any of that replay machinery
// itself.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/jerry73204/conflux/core/state"
	"github.com/jerry73204/conflux/core/staleness"
	"github.com/jerry73204/conflux/core/types"
	"github.com/jerry73204/conflux/sync"
)

type replayMessage struct {
	ts time.Duration
}

func (m replayMessage) Timestamp() types.Timestamp { return m.ts }

func main() {
	streams := flag.Int("streams", 3, "number of synthetic streams to replay")
	count := flag.Int("count", 20, "number of messages per stream")
	windowMS := flag.Int("window-ms", 50, "match window in milliseconds")
	jitterMS := flag.Int("jitter-ms", 15, "max per-message jitter in milliseconds")
	seed := flag.Int64("seed", 1, "PRNG seed for jitter")
	flag.Parse()

	if err := run(*streams, *count, *windowMS, *jitterMS, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "conflux-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(streamCount, messageCount, windowMS, jitterMS int, seed int64) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	keys := make([]string, streamCount)
	for i := range keys {
		keys[i] = fmt.Sprintf("stream-%d", i)
	}

	window := time.Duration(windowMS) * time.Millisecond
	cfg := types.Config{
		WindowSize: &window,
		BufferSize: 256,
		DropPolicy: types.DropOldest,
		Staleness:  ptr(staleness.HighFrequency()),
	}

	s, err := state.New[string, replayMessage](keys, cfg, state.WithLogger[string](logger))
	if err != nil {
		return fmt.Errorf("creating state: %w", err)
	}
	defer s.Shutdown()

	driver := sync.New[string, replayMessage](s, logger)

	in := make(chan sync.Entry[string, replayMessage])
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groups, feedback := driver.Run(ctx, in)

	go generate(in, keys, messageCount, jitterMS, seed)
	go drainFeedback(feedback)
	go drainErrors(driver, logger)

	for g := range groups {
		fmt.Printf("group ts=%s members=%d:", g.Timestamp, g.Len())
		for i, k := range g.Keys {
			fmt.Printf(" %s=%s", k, g.Values[i].Timestamp())
		}
		fmt.Println()
	}

	stats := s.Stats()
	fmt.Printf("groups emitted: %d\n", stats.GroupsEmitted)
	return nil
}

func generate(in chan<- sync.Entry[string, replayMessage], keys []string, count, jitterMS int, seed int64) {
	defer close(in)
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < count; i++ {
		base := time.Duration(i*100) * time.Millisecond
		for _, k := range keys {
			jitter := time.Duration(rng.Intn(jitterMS+1)) * time.Millisecond
			in <- sync.Entry[string, replayMessage]{Key: k, Value: replayMessage{ts: base + jitter}}
		}
	}
}

func drainFeedback(feedback <-chan types.Feedback[string]) {
	for range feedback {
	}
}

func drainErrors(driver *sync.Driver[string, replayMessage], logger *slog.Logger) {
	for err := range driver.Errors() {
		logger.Warn("driver error", "component", "conflux-replay", "event_type", "driver_error", "error", err)
	}
}

func ptr[T any](v T) *T { return &v }
