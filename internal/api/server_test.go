package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/app/reward"
	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/infra/sqlite"
)

// ─── Fixture ────────────────────────────────────────────────────────────────

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "kaizen.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	led := ledger.New(store)
	trk := tracker.New(store, reward.New(store, led))
	return NewServer(trk, led).Handler()
}

// call performs a JSON request and decodes the response body into a map.
func call(t *testing.T, h http.Handler, method, path, user string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode %s %s response: %v\nbody: %s", method, path, err, w.Body.String())
		}
	}
	return w.Code, resp
}

func registerUser(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	code, resp := call(t, h, http.MethodPost, "/api/users", "", map[string]string{
		"email": email,
		"name":  "Alex",
	})
	if code != http.StatusCreated {
		t.Fatalf("register user: expected 201, got %d (%v)", code, resp)
	}
	return resp["id"].(string)
}

func createMeasure(t *testing.T, h http.Handler, user string) string {
	t.Helper()
	code, resp := call(t, h, http.MethodPost, "/api/measures", user, map[string]string{
		"name": "Workout",
		"unit": "minutes",
	})
	if code != http.StatusCreated {
		t.Fatalf("create measure: expected 201, got %d (%v)", code, resp)
	}
	return resp["id"].(string)
}

// ─── Tests ──────────────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	h := setupServer(t)

	code, resp := call(t, h, http.MethodGet, "/health", "", nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %v", resp["status"])
	}
}

func TestMissingUserHeader(t *testing.T) {
	h := setupServer(t)

	code, _ := call(t, h, http.MethodGet, "/api/measures", "", nil)
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRegisterAndFetchUser(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")

	code, resp := call(t, h, http.MethodGet, "/api/users/me", uid, nil)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["email"] != "alex@kaizen.app" {
		t.Errorf("expected email echoed back, got %v", resp["email"])
	}
	if resp["balance"] != "0" {
		t.Errorf("expected zero balance, got %v", resp["balance"])
	}
	if resp["week_start"] != "SUNDAY" {
		t.Errorf("expected SUNDAY default, got %v", resp["week_start"])
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	h := setupServer(t)
	registerUser(t, h, "alex@kaizen.app")

	code, _ := call(t, h, http.MethodPost, "/api/users", "", map[string]string{
		"email": "alex@kaizen.app",
		"name":  "Someone Else",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", code)
	}
}

func TestUpdateWeekStart(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")

	code, resp := call(t, h, http.MethodPut, "/api/users/me/settings", uid, map[string]string{
		"weekStart": "MONDAY",
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if resp["week_start"] != "MONDAY" {
		t.Errorf("expected MONDAY, got %v", resp["week_start"])
	}

	code, _ = call(t, h, http.MethodPut, "/api/users/me/settings", uid, map[string]string{
		"weekStart": "FRIDAY",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad week start, got %d", code)
	}
}

func TestEntryPaysReward(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")
	mid := createMeasure(t, h, uid)

	code, resp := call(t, h, http.MethodPost, "/api/goals", uid, map[string]any{
		"measureId":    mid,
		"timeframe":    "DAILY",
		"type":         "TOTAL",
		"targetValue":  30,
		"rewardAmount": "5",
	})
	if code != http.StatusCreated {
		t.Fatalf("create goal: expected 201, got %d (%v)", code, resp)
	}

	code, resp = call(t, h, http.MethodPost, "/api/entries", uid, map[string]any{
		"measureId": mid,
		"value":     45,
		"date":      "2024-03-12T08:00:00Z",
	})
	if code != http.StatusCreated {
		t.Fatalf("create entry: expected 201, got %d (%v)", code, resp)
	}
	rewardResp := resp["reward"].(map[string]any)
	if rewardResp["totalReward"] != "5" {
		t.Errorf("expected totalReward 5, got %v", rewardResp["totalReward"])
	}

	code, resp = call(t, h, http.MethodGet, "/api/users/me", uid, nil)
	if code != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d", code)
	}
	if resp["balance"] != "5" {
		t.Errorf("expected balance 5 after reward, got %v", resp["balance"])
	}
}

func TestMonthlyGoalRejected(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")
	mid := createMeasure(t, h, uid)

	code, _ := call(t, h, http.MethodPost, "/api/goals", uid, map[string]any{
		"measureId":    mid,
		"timeframe":    "MONTHLY",
		"type":         "TOTAL",
		"targetValue":  100,
		"rewardAmount": "10",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for MONTHLY goal, got %d", code)
	}
}

func TestForeignMeasureLooksMissing(t *testing.T) {
	h := setupServer(t)
	owner := registerUser(t, h, "owner@kaizen.app")
	stranger := registerUser(t, h, "stranger@kaizen.app")
	mid := createMeasure(t, h, owner)

	code, _ := call(t, h, http.MethodPut, "/api/measures/"+mid, stranger, map[string]string{
		"name": "Hijacked",
	})
	if code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign measure, got %d", code)
	}
}

func TestBatchEntries(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")
	createMeasure(t, h, uid)

	code, resp := call(t, h, http.MethodPost, "/api/entries/batch", uid, map[string]any{
		"entries": []map[string]any{
			{"measureName": "Workout", "value": 20, "date": "2024-03-12T08:00:00Z"},
			{"measureName": "Nonexistent", "value": 5, "date": "2024-03-12T08:00:00Z"},
		},
	})
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%v)", code, resp)
	}
	results := resp["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(results))
	}
	first := results[0].(map[string]any)
	if _, hasErr := first["error"]; hasErr {
		t.Errorf("first item should succeed, got error %v", first["error"])
	}
	second := results[1].(map[string]any)
	if second["error"] == nil {
		t.Errorf("second item should fail on unknown measure name")
	}
}

func TestCashoutFlow(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")

	code, resp := call(t, h, http.MethodPost, "/api/transactions", uid, map[string]any{
		"amount": "100",
		"type":   "MANUAL_CREDIT",
		"title":  "Starting balance",
	})
	if code != http.StatusCreated {
		t.Fatalf("credit: expected 201, got %d (%v)", code, resp)
	}

	code, _ = call(t, h, http.MethodPost, "/api/transactions/cashout", uid, map[string]any{
		"amount": "40",
	})
	if code != http.StatusCreated {
		t.Fatalf("cashout: expected 201, got %d", code)
	}

	// More than remains.
	code, resp = call(t, h, http.MethodPost, "/api/transactions/cashout", uid, map[string]any{
		"amount": "1000",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for overdraft, got %d (%v)", code, resp)
	}

	code, resp = call(t, h, http.MethodGet, "/api/users/me", uid, nil)
	if code != http.StatusOK {
		t.Fatalf("get user: expected 200, got %d", code)
	}
	if resp["balance"] != "60" {
		t.Errorf("expected balance 60, got %v", resp["balance"])
	}
}

func TestTransactionHistory(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")

	for i := 0; i < 3; i++ {
		code, _ := call(t, h, http.MethodPost, "/api/transactions", uid, map[string]any{
			"amount": "10",
			"type":   "MANUAL_CREDIT",
			"title":  fmt.Sprintf("Credit %d", i),
		})
		if code != http.StatusCreated {
			t.Fatalf("credit %d failed with %d", i, code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-User-ID", uid)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var txs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	if txs[0]["title"] != "Credit 2" {
		t.Errorf("expected newest first, got %v", txs[0]["title"])
	}
}

func TestRewardRowsCannotBeForged(t *testing.T) {
	h := setupServer(t)
	uid := registerUser(t, h, "alex@kaizen.app")

	code, _ := call(t, h, http.MethodPost, "/api/transactions", uid, map[string]any{
		"amount": "500",
		"type":   "REWARD",
		"title":  "Totally legitimate",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400 for REWARD via manual endpoint, got %d", code)
	}
}
