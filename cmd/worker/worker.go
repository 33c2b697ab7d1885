package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"sync"
	"time"

	appkafka "example.com/forum/internal/broker"
	"example.com/forum/internal/feed"
	"example.com/forum/internal/logger"
	"example.com/forum/internal/metrics"
	"example.com/forum/internal/store"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

// fanoutLimit bounds concurrent timeline writes for a single post.
const fanoutLimit = 20

// Worker consumes activity events and writes new posts into follower timelines concurrently.
type Worker struct {
	store        store.StoreInterface
	feed         feed.Store
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(st store.StoreInterface, fd feed.Store, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		store:        st,
		feed:         fd,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	jobs := make(chan kafka.Message, w.jobQueueSize)
	var wg sync.WaitGroup

	for i := 0; i < w.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processLoop(ctx, jobs)
		}()
	}

	w.readLoop(ctx, jobs)

	close(jobs)
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop reads Kafka messages and pushes them into a job queue.
func (w *Worker) readLoop(ctx context.Context, jobs chan<- kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			select {
			case jobs <- msg:
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
				logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
			}
		}
	}
}

// processLoop hands queued messages to handle until the queue closes.
func (w *Worker) processLoop(ctx context.Context, jobs <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.handle(ctx, msg); err != nil {
				logg.Error("worker", "Failed to process activity event", err)
			}
		}
	}
}

// handle decodes one activity event. Only post_created changes timelines: the post
// is written to the feed of every follower of its author and to the author's own.
func (w *Worker) handle(ctx context.Context, msg kafka.Message) error {
	if len(msg.Value) == 0 {
		return nil
	}

	e, err := appkafka.DecodeEvent(msg)
	if err != nil {
		return fmt.Errorf("invalid JSON in Kafka message: %w", err)
	}
	if e.Type != appkafka.PostCreated {
		logg.Debug("worker", "Skipping "+string(e.Type)+" event")
		return nil
	}
	if e.Post == nil {
		return errors.New("post_created event without a post")
	}

	followers, err := w.store.ListFollowerIDs(ctx, e.Post.UserID)
	if err != nil {
		return fmt.Errorf("fetch followers for post author: %w", err)
	}
	recipients := append(followers, e.Post.UserID)
	entry := feed.EntryFromPost(e.Post)

	var (
		fanoutWG  sync.WaitGroup
		mu        sync.Mutex
		errs      []error
		semaphore = make(chan struct{}, fanoutLimit)
	)

	for _, uid := range recipients {
		select {
		case <-ctx.Done():
			fanoutWG.Wait()
			return ctx.Err()
		case semaphore <- struct{}{}:
		}

		fanoutWG.Add(1)
		go func(userID int64) {
			defer fanoutWG.Done()
			defer func() { <-semaphore }()

			if err := w.feed.AddToFeed(ctx, userID, entry); err != nil {
				metrics.FeedDeliveries.WithLabelValues("error").Inc()
				mu.Lock()
				errs = append(errs, fmt.Errorf("add post to feed of user %d: %w", userID, err))
				mu.Unlock()
				return
			}
			metrics.FeedDeliveries.WithLabelValues("ok").Inc()
		}(uid)
	}

	fanoutWG.Wait()
	logg.Info("worker", "Post delivered to "+strconv.Itoa(len(recipients)-len(errs))+" timelines (post ID anonymized)")
	return errors.Join(errs...)
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader and the relational store.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}

	logg.Info("worker", "Closing relational store")
	w.store.Close()
	return nil
}
