package router_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"focusflow/backend/internal/db"
	"focusflow/backend/internal/handler"
	"focusflow/backend/internal/repository"
	"focusflow/backend/internal/router"
	"focusflow/backend/internal/service"
	"focusflow/backend/internal/ticker"
	"focusflow/backend/migrations"
)

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type stateEnvelope struct {
	State struct {
		Phase            string `json:"phase"`
		Status           string `json:"status"`
		RemainingSeconds int    `json:"remainingSeconds"`
		WorkCount        int    `json:"workCount"`
		Version          int    `json:"version"`
		Settings         struct {
			WorkMinutes           int `json:"workMinutes"`
			ShortBreakMinutes     int `json:"shortBreakMinutes"`
			LongBreakMinutes      int `json:"longBreakMinutes"`
			CyclesBeforeLongBreak int `json:"cyclesBeforeLongBreak"`
		} `json:"settings"`
	} `json:"state"`
}

type historyEnvelope struct {
	Records []struct {
		Phase     string `json:"phase"`
		NextPhase string `json:"nextPhase"`
		Outcome   string `json:"outcome"`
	} `json:"records"`
}

type summaryEnvelope struct {
	Summary struct {
		CompletedWork int `json:"completedWork"`
		SkippedWork   int `json:"skippedWork"`
	} `json:"summary"`
}

type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			State struct {
				Version int `json:"version"`
			} `json:"state"`
		} `json:"details"`
	} `json:"error"`
}

func TestPomodoroCommandsAndConflict(t *testing.T) {
	engine := setupTestEngine(t)

	user1 := signIn(t, engine, "user1@example.com")
	user2 := signIn(t, engine, "user2@example.com")

	state1 := getState(t, engine, user1.Token)
	if state1.State.Version != 1 {
		t.Fatalf("expected initial version 1, got %d", state1.State.Version)
	}
	if state1.State.Phase != "work" || state1.State.Status != "idle" || state1.State.RemainingSeconds != 1500 {
		t.Fatalf("unexpected initial state: %+v", state1.State)
	}

	// Start with the current version.
	status, _ := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/start", user1.Token, map[string]int{
		"baseVersion": state1.State.Version,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}

	// Pause with a stale version from another device should conflict.
	status, rawConflict := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/pause", user1.Token, map[string]int{
		"baseVersion": state1.State.Version,
	})
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for stale version, got %d", status)
	}

	var conflictResp apiErrorEnvelope
	if err := json.Unmarshal(rawConflict, &conflictResp); err != nil {
		t.Fatalf("unmarshal conflict response: %v", err)
	}
	if conflictResp.Error.Code != "state_conflict" {
		t.Fatalf("expected state_conflict, got %s", conflictResp.Error.Code)
	}

	// Pause with the latest version from the conflict details.
	status, rawPaused := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/pause", user1.Token, map[string]int{
		"baseVersion": conflictResp.Error.Details.State.Version,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d", status)
	}
	var paused stateEnvelope
	if err := json.Unmarshal(rawPaused, &paused); err != nil {
		t.Fatalf("unmarshal pause response: %v", err)
	}
	if paused.State.Status != "paused" {
		t.Fatalf("expected paused, got %s", paused.State.Status)
	}

	// Commands without a body skip the version check.
	status, _ = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/skip", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on skip, got %d", status)
	}

	after := getState(t, engine, user1.Token)
	if after.State.Phase != "short_break" || after.State.Status != "idle" || after.State.WorkCount != 1 {
		t.Fatalf("unexpected state after skip: %+v", after.State)
	}

	// User isolation: user2 has no history.
	if history := getHistory(t, engine, user2.Token); len(history.Records) != 0 {
		t.Fatalf("expected no records for user2, got %d", len(history.Records))
	}

	history := getHistory(t, engine, user1.Token)
	if len(history.Records) != 1 {
		t.Fatalf("expected one record for user1, got %d", len(history.Records))
	}
	if history.Records[0].Phase != "work" || history.Records[0].Outcome != "skipped" {
		t.Fatalf("unexpected record: %+v", history.Records[0])
	}

	status, rawSummary := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/summary", user1.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for summary, got %d", status)
	}
	var summary summaryEnvelope
	if err := json.Unmarshal(rawSummary, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.Summary.SkippedWork != 1 || summary.Summary.CompletedWork != 0 {
		t.Fatalf("unexpected summary: %+v", summary.Summary)
	}
}

func TestUpdateSettingsClampsAndMerges(t *testing.T) {
	engine := setupTestEngine(t)
	user := signIn(t, engine, "settings@example.com")

	status, raw := requestJSON(t, engine, http.MethodPut, "/api/pomodoro/settings", user.Token, map[string]int{
		"workMinutes":      5,
		"longBreakMinutes": 45,
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on settings, got %d: %s", status, string(raw))
	}

	var resp stateEnvelope
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal settings response: %v", err)
	}
	settings := resp.State.Settings
	if settings.WorkMinutes != 15 || settings.LongBreakMinutes != 30 {
		t.Fatalf("expected clamped settings, got %+v", settings)
	}
	if settings.ShortBreakMinutes != 5 || settings.CyclesBeforeLongBreak != 4 {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", settings)
	}
	if resp.State.RemainingSeconds != 900 {
		t.Fatalf("expected idle clock to adopt new work duration, got %d", resp.State.RemainingSeconds)
	}

	status, _ = requestJSON(t, engine, http.MethodPut, "/api/pomodoro/settings", user.Token, "not an object")
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", status)
	}
}

func TestPomodoroRequiresAuth(t *testing.T) {
	engine := setupTestEngine(t)

	status, _ := requestJSON(t, engine, http.MethodGet, "/api/pomodoro/state", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, _ = requestJSON(t, engine, http.MethodGet, "/api/pomodoro/state", "bogus", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", status)
	}

	user := signIn(t, engine, "me@example.com")
	status, raw := requestJSON(t, engine, http.MethodGet, "/api/auth/me", user.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(raw), `"email":"me@example.com"`) {
		t.Fatalf("unexpected me response %d: %s", status, string(raw))
	}

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/auth/signin", "", map[string]string{"email": ""})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty email, got %d", status)
	}
}

func TestStopwatchRoutes(t *testing.T) {
	engine := setupTestEngine(t)
	user := signIn(t, engine, "stopwatch@example.com")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/stopwatch/start", user.Token, map[string]string{
		"project": "reading",
	})
	if status != http.StatusOK {
		t.Fatalf("expected 200 on stopwatch start, got %d: %s", status, string(raw))
	}
	if !strings.Contains(string(raw), `"project":"reading"`) || !strings.Contains(string(raw), `"status":"running"`) {
		t.Fatalf("unexpected stopwatch state: %s", string(raw))
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/stopwatch/pause", user.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(raw), `"status":"paused"`) {
		t.Fatalf("unexpected pause response %d: %s", status, string(raw))
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/stopwatch/stop", user.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(raw), `"status":"idle"`) {
		t.Fatalf("unexpected stop response %d: %s", status, string(raw))
	}

	// Nothing elapsed, so nothing was recorded.
	status, raw = requestJSON(t, engine, http.MethodGet, "/api/stopwatch/entries", user.Token, nil)
	if status != http.StatusOK || !strings.Contains(string(raw), `"entries":[]`) {
		t.Fatalf("unexpected entries response %d: %s", status, string(raw))
	}
}

func TestManualTimeEntry(t *testing.T) {
	engine := setupTestEngine(t)
	user := signIn(t, engine, "manual@example.com")

	status, raw := requestJSON(t, engine, http.MethodPost, "/api/stopwatch/entries", user.Token, map[string]any{
		"minutes": 75,
	})
	if status != http.StatusBadRequest || !strings.Contains(string(raw), `"invalid_duration"`) {
		t.Fatalf("expected 400 invalid_duration, got %d: %s", status, string(raw))
	}

	status, raw = requestJSON(t, engine, http.MethodPost, "/api/stopwatch/entries", user.Token, map[string]any{
		"hours":       2,
		"minutes":     5,
		"project":     "Research",
		"description": "reading papers",
	})
	if status != http.StatusCreated {
		t.Fatalf("expected 201 on manual entry, got %d: %s", status, string(raw))
	}

	status, raw = requestJSON(t, engine, http.MethodGet, "/api/stopwatch/entries", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for entries, got %d", status)
	}
	var resp struct {
		Entries []struct {
			Project        string `json:"project"`
			Description    string `json:"description"`
			ElapsedSeconds int    `json:"elapsedSeconds"`
			Manual         bool   `json:"manual"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal entries: %v", err)
	}
	if len(resp.Entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(resp.Entries))
	}
	entry := resp.Entries[0]
	if entry.ElapsedSeconds != 7500 || !entry.Manual || entry.Project != "Research" || entry.Description != "reading papers" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestCORSPreflight(t *testing.T) {
	engine := setupTestEngine(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/signin", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Fatalf("unexpected allow-origin header: %s", recorder.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestEventStream(t *testing.T) {
	engine := setupTestEngine(t)
	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	user := signIn(t, engine, "events@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/pomodoro/events?token="+user.Token, nil)
	if err != nil {
		t.Fatalf("build events request: %v", err)
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("open event stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for event stream, got %d", resp.StatusCode)
	}

	names := make(chan string, 16)
	go func() {
		defer close(names)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if name, ok := strings.CutPrefix(line, "event:"); ok {
				names <- strings.TrimSpace(name)
			}
		}
	}()

	if name := nextEvent(t, names); name != "state" {
		t.Fatalf("expected initial state event, got %s", name)
	}

	status, _ := requestJSON(t, engine, http.MethodPost, "/api/pomodoro/start", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on start, got %d", status)
	}
	if name := nextEvent(t, names); name != "state_change" {
		t.Fatalf("expected state_change event, got %s", name)
	}

	status, _ = requestJSON(t, engine, http.MethodPost, "/api/pomodoro/skip", user.Token, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200 on skip, got %d", status)
	}
	if name := nextEvent(t, names); name != "phase_complete" {
		t.Fatalf("expected phase_complete event, got %s", name)
	}
}

func nextEvent(t *testing.T, names <-chan string) string {
	t.Helper()
	select {
	case name, ok := <-names:
		if !ok {
			t.Fatal("event stream closed")
		}
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ""
}

func setupTestEngine(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	if _, err := db.RunMigrations(context.Background(), database, migrations.FS, zap.NewNop()); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	log := zap.NewNop()
	userRepo := repository.NewUserRepository(database)
	historyRepo := repository.NewHistoryRepository(database)
	authService := service.NewAuthService(userRepo, "test-secret", 24*time.Hour, 0, log)
	timerService := service.NewTimerService(historyRepo, log, service.TimerOptions{
		TickInterval:  time.Second,
		TickerFactory: (&ticker.ManualFactory{}).New,
	})
	t.Cleanup(timerService.Close)

	return router.New(authService, router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Pomodoro:  handler.NewPomodoroHandler(timerService),
		Stopwatch: handler.NewStopwatchHandler(timerService),
	}, []string{"http://localhost:5173"}, log)
}

func signIn(t *testing.T, server http.Handler, email string) authResponse {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email":    email,
		"password": "anything",
	})
	if status != http.StatusOK {
		t.Fatalf("sign in %s failed with status %d: %s", email, status, string(body))
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("unmarshal sign-in response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("empty token for user %s", email)
	}
	return resp
}

func getState(t *testing.T, server http.Handler, token string) stateEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/pomodoro/state", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get state failed with status %d: %s", status, string(body))
	}
	var stateResp stateEnvelope
	if err := json.Unmarshal(body, &stateResp); err != nil {
		t.Fatalf("unmarshal state response: %v", err)
	}
	return stateResp
}

func getHistory(t *testing.T, server http.Handler, token string) historyEnvelope {
	t.Helper()
	status, body := requestJSON(t, server, http.MethodGet, "/api/pomodoro/history?limit=10", token, nil)
	if status != http.StatusOK {
		t.Fatalf("get history failed with status %d: %s", status, string(body))
	}
	var history historyEnvelope
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("unmarshal history: %v", err)
	}
	return history
}

func requestJSON(
	t *testing.T,
	server http.Handler,
	method, path, token string,
	body any,
) (int, []byte) {
	t.Helper()

	var payload []byte
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		payload = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	server.ServeHTTP(recorder, req)
	return recorder.Code, recorder.Body.Bytes()
}
