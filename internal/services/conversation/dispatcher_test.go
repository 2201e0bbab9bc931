package conversation

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/testutil"
	"github.com/mcoot/gamenight/internal/transport"
)

func message(id model.PersonID, text string) transport.Event {
	return transport.Event{Message: &transport.Message{PersonID: id, Text: text}}
}

func TestDispatcherKeepsPerPersonOrder(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[model.PersonID][]string{}
	)
	handler := transport.HandlerFunc(func(_ context.Context, e transport.Event) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		seen[e.PersonID()] = append(seen[e.PersonID()], e.Message.Text)
	})
	d := NewDispatcher(context.Background(), handler, testutil.NopLogger())

	var want []string
	for i := range 20 {
		text := strconv.Itoa(i)
		want = append(want, text)
		d.Dispatch(message(1, text))
		d.Dispatch(message(2, text))
	}
	d.Wait()

	assert.Equal(t, want, seen[1])
	assert.Equal(t, want, seen[2])
}

func TestDispatcherRunsPeopleConcurrently(t *testing.T) {
	released := make(chan struct{})
	var sawRelease bool
	handler := transport.HandlerFunc(func(_ context.Context, e transport.Event) {
		switch e.PersonID() {
		case 1:
			select {
			case <-released:
				sawRelease = true
			case <-time.After(2 * time.Second):
			}
		case 2:
			close(released)
		}
	})
	d := NewDispatcher(context.Background(), handler, testutil.NopLogger())

	d.Dispatch(message(1, "wait"))
	d.Dispatch(message(2, "release"))
	d.Wait()

	assert.True(t, sawRelease, "person 2 was blocked behind person 1")
}

func TestDispatcherSurvivesPanics(t *testing.T) {
	var handled []string
	handler := transport.HandlerFunc(func(_ context.Context, e transport.Event) {
		if e.Message.Text == "boom" {
			panic("boom")
		}
		handled = append(handled, e.Message.Text)
	})
	d := NewDispatcher(context.Background(), handler, testutil.NopLogger())

	d.Dispatch(message(1, "boom"))
	d.Dispatch(message(1, "after"))
	d.Wait()

	require.Equal(t, []string{"after"}, handled)
}

func TestDispatcherUsesItsOwnContext(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "dispatcher")

	var got any
	handler := transport.HandlerFunc(func(ctx context.Context, _ transport.Event) {
		got = ctx.Value(key{})
	})
	d := NewDispatcher(base, handler, testutil.NopLogger())

	request, cancel := context.WithCancel(context.Background())
	cancel()
	d.Handle(request, message(1, "hi"))
	d.Wait()

	assert.Equal(t, "dispatcher", got)
}
