package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"carwash-bay-backend/config"
	"carwash-bay-backend/internal/api"
	"carwash-bay-backend/internal/model"
	"carwash-bay-backend/internal/station"
	"carwash-bay-backend/internal/store"
)

// TestWashLifecycleOverHTTP drives a complete wash cycle through the
// HTTP API and verifies billing, history, and bay release.
func TestWashLifecycleOverHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// 1. Setup an in-memory SQLite database for testing.
	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, testDB.AutoMigrate(
		&model.Bay{},
		&model.CycleOpen{},
		&model.CycleHistory{},
		&model.PushSubscription{},
	))

	// 2. Create a test configuration. The rate limit is high so the
	// advance loop below is never throttled.
	cfg := &config.Config{}
	cfg.Station.Bays = []string{"bay-1", "bay-2"}
	cfg.Station.Interval = time.Second
	cfg.Station.HistoryLimit = 50
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.CacheTTLSeconds = 1
	cfg.WorkerPool.Size = 4

	appStore := store.NewGormStore(testDB)
	svc := station.NewService(cfg, appStore)
	require.NoError(t, svc.Init(context.Background()))

	router := api.NewRouter(cfg, appStore, svc, &webpush.Options{VAPIDPublicKey: "test-key"})

	doJSON := func(method, path string, body any) *httptest.ResponseRecorder {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	bays := svc.StatusAll()
	require.Len(t, bays, 2)
	bay1 := bays[0].ID
	bay2 := bays[1].ID

	// Waxing without hand drying is rejected up front.
	w := doJSON(http.MethodPost, pathFor(bay2, "wash"), map[string]bool{"waxing": true})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Start a wash with every service selected.
	w = doJSON(http.MethodPost, pathFor(bay1, "wash"), map[string]bool{
		"hand_pre_wash": true,
		"hand_dry":      true,
		"waxing":        true,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// The bay rejects a second vehicle while occupied.
	w = doJSON(http.MethodPost, pathFor(bay1, "wash"), map[string]bool{})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Drive the cycle to completion one phase at a time.
	var labels []string
	var charges []float64
	for i := 0; i < 10; i++ {
		w = doJSON(http.MethodPost, pathFor(bay1, "advance"), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result station.AdvanceResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		labels = append(labels, result.Label)
		if result.Charge != 0 {
			charges = append(charges, result.Charge)
		}
		if result.Completed {
			break
		}
	}

	assert.Equal(t, []string{
		"Charging", "Hand pre-wash", "Rinsing", "Soaping", "Rollers",
		"Automatic drying", "Idle",
	}, labels)
	require.Len(t, charges, 1)
	assert.InDelta(t, 8.70, charges[0], 1e-9)

	// The bay is available again.
	w = doJSON(http.MethodGet, pathFor(bay1, ""), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status station.BayStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Occupied)
	assert.Equal(t, "Idle", status.PhaseLabel)
	assert.InDelta(t, 8.70, status.Revenue, 1e-9)

	// Completed cycle shows up in history.
	w = doJSON(http.MethodGet, pathFor(bay1, "cycles"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.CycleHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.True(t, history[0].Waxing)
	assert.InDelta(t, 8.70, history[0].Charge, 1e-9)

	// Revenue aggregates the archived charge.
	w = doJSON(http.MethodGet, "/api/revenue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary store.RevenueSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.InDelta(t, 8.70, summary.Total, 1e-9)
	assert.Equal(t, int64(1), summary.Cycles)

	// VAPID key is served for push clients.
	w = doJSON(http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test-key")
}

func pathFor(bayID int64, op string) string {
	base := "/api/bays/" + strconv.FormatInt(bayID, 10)
	if op == "" {
		return base
	}
	return base + "/" + op
}
