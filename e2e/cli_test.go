package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/gamenight/internal/api"
	"github.com/mcoot/gamenight/internal/config"
	"github.com/mcoot/gamenight/internal/factory"
	"github.com/mcoot/gamenight/internal/model"
	"github.com/mcoot/gamenight/internal/services/auth"
	"github.com/mcoot/gamenight/internal/testutil"
)

const organizer = 1000

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
	tokenFile  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(t.TempDir(), "gamenightctl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/gamenightctl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
		tokenFile:  filepath.Join(t.TempDir(), "token"),
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token-file", r.tokenFile,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	cmd.Env = append(os.Environ(), "GAMENIGHT_TOKEN=")
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func (r *cliRunner) runWithToken(token string, args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--token", token,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	app       *factory.App
	transport *testutil.RecordingTransport
	addr      string
	token     string
	shutdown  func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()

	token := auth.GenerateToken()
	hash, err := auth.HashToken(token)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	recorder := testutil.NewRecordingTransport()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	app, err := factory.New(ctx, factory.Config{
		Server: config.Config{
			OrganizerID:         organizer,
			UpdateMode:          config.UpdateModePolling,
			LedgerBackend:       config.LedgerBackendSQLite,
			SQLitePath:          filepath.Join(t.TempDir(), "gamenight.db"),
			ConversationBackend: config.ConversationBackendMemory,
			ConversationTTL:     time.Hour,
			FanoutConcurrency:   4,
			AdminTokenHash:      hash,
		},
		Logger:    logger,
		Transport: recorder,
	})
	require.NoError(t, err)

	serverConfig := api.DefaultServerConfig().CoverBatches(app.FanoutService.BatchTimeout())
	server := api.NewServer(app.Router(), serverConfig, logger)

	// Start server
	go func() {
		if err := server.Serve(listener); err != nil {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:       app,
		transport: recorder,
		addr:      serverURL,
		token:     token,
		shutdown: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			cancel()
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

func (ts *testServer) addPerson(t *testing.T, id model.PersonID, nick string) {
	t.Helper()
	require.NoError(t, ts.app.LedgerService.SaveProfile(context.Background(), &model.Person{
		ID: id, FirstName: "Имя", LastName: "Фамилия", Nickname: nick, Age: 30,
	}))
}

// Response types for JSON parsing
type sessionResponse struct {
	ID        int64  `json:"id"`
	Kind      string `json:"kind"`
	Date      string `json:"date"`
	Title     string `json:"title"`
	Lifecycle string `json:"lifecycle"`
}

type participantResponse struct {
	Person struct {
		ID       int64  `json:"id"`
		Nickname string `json:"nickname"`
	} `json:"person"`
	Tag string `json:"tag"`
}

type reportResponse struct {
	Delivered int     `json:"delivered"`
	Failed    int     `json:"failed"`
	FailedIDs []int64 `json:"failed_ids"`
}

type cancelResponse struct {
	Removed []int64        `json:"removed"`
	Report  reportResponse `json:"report"`
}

type healthResponse struct {
	Status        string `json:"status"`
	Ledger        string `json:"ledger"`
	Conversations string `json:"conversations"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Hash  string `json:"hash"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, config.LedgerBackendSQLite, resp.Ledger)
	assert.Equal(t, config.ConversationBackendMemory, resp.Conversations)
}

func TestCLI_RequiresToken(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("sessions", "list")
	require.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")

	output, err = cli.runWithToken("gn_wrong", "sessions", "list")
	require.Error(t, err)
	assert.Contains(t, output, "UNAUTHORIZED")
}

func TestCLI_TokenSavedToFile(t *testing.T) {
	cli := newCLIRunner(t, "http://127.0.0.1:1")

	output, err := cli.run("token", "--save")
	require.NoError(t, err, "output: %s", output)

	var resp tokenResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.NotEmpty(t, resp.Token)
	assert.NotEmpty(t, resp.Hash)

	saved, err := os.ReadFile(cli.tokenFile)
	require.NoError(t, err)
	assert.Equal(t, resp.Token, string(saved))
}

func TestCLI_SessionLifecycle(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Create session
	output, err := cli.runWithToken(ts.token, "sessions", "create", "--kind", "sport", "--date", "Вс 22.02")
	require.NoError(t, err, "output: %s", output)

	var session sessionResponse
	require.NoError(t, json.Unmarshal([]byte(output), &session))
	assert.Equal(t, "sport", session.Kind)
	assert.Equal(t, "active", session.Lifecycle)
	id := strconv.FormatInt(session.ID, 10)

	// Duplicate is refused
	output, err = cli.runWithToken(ts.token, "sessions", "create", "--kind", "sport", "--date", "Вс 22.02")
	require.Error(t, err)
	assert.Contains(t, output, "SESSION_CONFLICT")

	// Archive
	output, err = cli.runWithToken(ts.token, "sessions", "archive", id)
	require.NoError(t, err, "output: %s", output)

	var msg messageResponse
	require.NoError(t, json.Unmarshal([]byte(output), &msg))
	assert.Contains(t, msg.Message, "archive")

	output, err = cli.runWithToken(ts.token, "sessions", "list")
	require.NoError(t, err, "output: %s", output)
	var active []sessionResponse
	require.NoError(t, json.Unmarshal([]byte(output), &active))
	assert.Empty(t, active)

	output, err = cli.runWithToken(ts.token, "sessions", "list", "--filter", "archived")
	require.NoError(t, err, "output: %s", output)
	var archived []sessionResponse
	require.NoError(t, json.Unmarshal([]byte(output), &archived))
	require.Len(t, archived, 1)

	// Restore
	output, err = cli.runWithToken(ts.token, "sessions", "restore", id)
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runWithToken(ts.token, "sessions", "get", id)
	require.NoError(t, err, "output: %s", output)
	var restored sessionResponse
	require.NoError(t, json.Unmarshal([]byte(output), &restored))
	assert.Equal(t, "active", restored.Lifecycle)
}

func TestCLI_RemindAndCancel(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)
	ts.addPerson(t, 1, "One")
	ts.addPerson(t, 2, "Two")

	output, err := cli.runWithToken(ts.token, "sessions", "create", "--kind", "city", "--date", "Сб 21.02")
	require.NoError(t, err, "output: %s", output)
	var session sessionResponse
	require.NoError(t, json.Unmarshal([]byte(output), &session))
	id := strconv.FormatInt(session.ID, 10)

	_, err = ts.app.LedgerService.Register(context.Background(), 1, model.SessionID(session.ID))
	require.NoError(t, err)

	// Participants
	output, err = cli.runWithToken(ts.token, "sessions", "participants", id)
	require.NoError(t, err, "output: %s", output)
	var participants []participantResponse
	require.NoError(t, json.Unmarshal([]byte(output), &participants))
	require.Len(t, participants, 1)
	assert.Equal(t, "One", participants[0].Person.Nickname)

	// Remind those not registered
	output, err = cli.runWithToken(ts.token, "sessions", "remind", id, "--audience", "not_registered")
	require.NoError(t, err, "output: %s", output)
	var report reportResponse
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, 1, report.Delivered)
	assert.Len(t, ts.transport.SentTo(2), 1)

	// Remind a hand-picked person
	output, err = cli.runWithToken(ts.token, "sessions", "remind", id, "--person", "1")
	require.NoError(t, err, "output: %s", output)
	assert.Len(t, ts.transport.SentTo(1), 1)

	// Cancel
	output, err = cli.runWithToken(ts.token, "sessions", "cancel", id)
	require.NoError(t, err, "output: %s", output)
	var cancelled cancelResponse
	require.NoError(t, json.Unmarshal([]byte(output), &cancelled))
	assert.Equal(t, []int64{1}, cancelled.Removed)
	assert.Equal(t, 1, cancelled.Report.Delivered)

	output, err = cli.runWithToken(ts.token, "sessions", "get", id)
	require.Error(t, err)
	assert.Contains(t, output, "SESSION_NOT_FOUND")
}

func TestCLI_ScheduleAndBroadcast(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	// Nobody to broadcast to yet
	output, err := cli.runWithToken(ts.token, "broadcast", "Привет")
	require.Error(t, err)
	assert.Contains(t, output, "EMPTY_AUDIENCE")

	ts.addPerson(t, 1, "One")

	output, err = cli.runWithToken(ts.token, "broadcast", "Привет", "всем")
	require.NoError(t, err, "output: %s", output)
	var report reportResponse
	require.NoError(t, json.Unmarshal([]byte(output), &report))
	assert.Equal(t, 1, report.Delivered)

	last, ok := ts.transport.Last(1)
	require.True(t, ok)
	assert.Equal(t, "Привет всем", last.Text)

	// Schedule
	output, err = cli.runWithToken(ts.token, "schedule", "set", "Играем", "по", "субботам")
	require.NoError(t, err, "output: %s", output)

	output, err = cli.runWithToken(ts.token, "schedule", "get")
	require.NoError(t, err, "output: %s", output)
	var schedule struct {
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &schedule))
	assert.Equal(t, "Играем по субботам", schedule.Text)

	// People
	output, err = cli.runWithToken(ts.token, "people")
	require.NoError(t, err, "output: %s", output)
	var people []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &people))
	require.Len(t, people, 1)
	assert.Equal(t, int64(1), people[0].ID)
}
