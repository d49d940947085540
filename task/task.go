// Package task is a minimal redis-backed task queue: producers LPUSH
// JSON envelopes onto a list, workers BRPOP and dispatch by task name.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultQueue = "gocart:tasks"

type envelope struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

// Producer enqueues tasks.
type Producer struct {
	rdb   *redis.Client
	queue string
}

func NewProducer(rdb *redis.Client) *Producer {
	return &Producer{rdb: rdb, queue: defaultQueue}
}

func (p *Producer) Enqueue(ctx context.Context, name string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding task payload: %w", err)
	}

	env, err := json.Marshal(envelope{Name: name, Payload: raw})
	if err != nil {
		return fmt.Errorf("encoding task envelope: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queue, env).Err(); err != nil {
		return fmt.Errorf("enqueueing task %q: %w", name, err)
	}
	return nil
}

// Handler processes one task payload.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Worker pops tasks off the queue and dispatches them to registered
// handlers. A failed task is logged and dropped: the periodic producer
// re-enqueues work it still considers pending.
type Worker struct {
	log      logrus.FieldLogger
	rdb      *redis.Client
	queue    string
	handlers map[string]Handler
}

func NewWorker(log logrus.FieldLogger, rdb *redis.Client) *Worker {
	return &Worker{
		log:      log,
		rdb:      rdb,
		queue:    defaultQueue,
		handlers: make(map[string]Handler),
	}
}

func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// Run blocks draining the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		res, err := w.rdb.BRPop(ctx, 5*time.Second, w.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			w.log.Errorf("popping task: %v", err)
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns the queue name followed by the value.
		w.dispatch(ctx, []byte(res[1]))
	}
}

func (w *Worker) dispatch(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		w.log.Errorf("decoding task envelope: %v", err)
		return
	}

	h, ok := w.handlers[env.Name]
	if !ok {
		w.log.WithField("task", env.Name).Error("no handler registered for task")
		return
	}

	if err := h(ctx, env.Payload); err != nil {
		w.log.WithField("task", env.Name).Errorf("task failed: %v", err)
	}
}
