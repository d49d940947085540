package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func envelopeBytes(t *testing.T, name string, payload any) []byte {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env, err := json.Marshal(envelope{Name: name, Payload: raw})
	require.NoError(t, err)
	return env
}

func TestWorkerDispatch(t *testing.T) {
	w := NewWorker(quietLog(), nil)

	var got string
	w.Register("greet", func(ctx context.Context, payload json.RawMessage) error {
		var p struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return err
		}
		got = p.Name
		return nil
	})

	w.dispatch(context.Background(), envelopeBytes(t, "greet", map[string]string{"name": "ada"}))
	assert.Equal(t, "ada", got)
}

func TestWorkerDispatchUnknownTask(t *testing.T) {
	w := NewWorker(quietLog(), nil)

	// must not panic; the envelope is logged and dropped
	w.dispatch(context.Background(), envelopeBytes(t, "nobody-home", map[string]string{}))
}

func TestWorkerDispatchBadEnvelope(t *testing.T) {
	w := NewWorker(quietLog(), nil)
	w.dispatch(context.Background(), []byte("not json"))
}

func TestWorkerDispatchHandlerFailureIsDropped(t *testing.T) {
	w := NewWorker(quietLog(), nil)

	calls := 0
	w.Register("flaky", func(ctx context.Context, payload json.RawMessage) error {
		calls++
		return errors.New("nope")
	})

	// a failing handler is logged, not retried by the worker
	w.dispatch(context.Background(), envelopeBytes(t, "flaky", map[string]string{}))
	assert.Equal(t, 1, calls)
}
