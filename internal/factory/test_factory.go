package factory

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamenight/internal/config"
	"github.com/mcoot/gamenight/internal/dependencies/mocks"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/storage/memory"
	"github.com/mcoot/gamenight/internal/testutil"
	"github.com/mcoot/gamenight/internal/transport"
)

// Test fixtures
const (
	TestOrganizer     model.PersonID = 1000
	TestAPIToken                     = "gn_test_token"
	TestWebhookSecret                = "test-secret"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock *mocks.MockClock
	Store     *memory.Storage
	Recorder  *testutil.RecordingTransport
}

// NewTestApp creates an App configured for testing: in-memory storage, a
// mocked clock, a recording transport and webhook mode with the test secret
func NewTestApp(ctx context.Context) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	store := memory.New(mockClock, 24*time.Hour)
	recorder := testutil.NewRecordingTransport()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestAPIToken), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	server := config.Config{
		OrganizerID:       int64(TestOrganizer),
		UpdateMode:        config.UpdateModeWebhook,
		WebhookSecret:     TestWebhookSecret,
		FanoutConcurrency: 4,
		AdminTokenHash:    string(hash),
	}

	app := newWithDependencies(ctx, store, store, mockClock, recorder, server, testutil.NopLogger())
	app.sweeper = store

	return &TestApp{
		App:       app,
		MockClock: mockClock,
		Store:     store,
		Recorder:  recorder,
	}
}

// Say dispatches a text message and waits for it to be handled
func (t *TestApp) Say(id model.PersonID, text string) {
	t.Dispatcher.Dispatch(transport.Event{Message: &transport.Message{
		PersonID: id,
		Text:     text,
	}})
	t.Dispatcher.Wait()
}

// Press dispatches an inline button press and waits for it to be handled
func (t *TestApp) Press(id model.PersonID, data string) {
	t.Dispatcher.Dispatch(transport.Event{Action: &transport.Action{
		ID:       "test-action",
		PersonID: id,
		Data:     data,
	}})
	t.Dispatcher.Wait()
}

// LastText returns the last message sent to id, or ""
func (t *TestApp) LastText(id model.PersonID) string {
	msg, ok := t.Recorder.Last(id)
	if !ok {
		return ""
	}
	return msg.Text
}
