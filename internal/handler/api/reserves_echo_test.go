package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ReserveDesk/internal/domain/models"
	"ReserveDesk/internal/domain/units"
	mid "ReserveDesk/internal/middleware"
	icache "ReserveDesk/internal/service/cache"
	"ReserveDesk/internal/usecase"
	"ReserveDesk/pkg/util"
)

func newTestHandler(t *testing.T) *ReservesHandler {
	t.Helper()
	svc := usecase.NewReservesService(
		usecase.NewAllocator(),
		mid.NewCalcPipeline(nil),
		nil, nil, 0,
	)
	return NewReservesHandler(nil, svc)
}

func doRequest(t *testing.T, h *ReservesHandler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type allocateEnvelope struct {
	Status int              `json:"status"`
	Data   AllocateResponse `json:"data"`
}

func TestAllocateEndpoint(t *testing.T) {
	body := `{
		"fundSizeDollars": 10000000,
		"reserveFractionPct": 50,
		"capPolicy": {"kind": "fixed_percent", "defaultPercent": 100},
		"companies": [
			{"id": "c1", "investedDollars": 100000, "exitMoic": 4.0},
			{"id": "c2", "investedDollars": 200000, "exitMoic": 1.5}
		]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env allocateEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusOK, env.Status)

	out := env.Data.Output
	require.NotNil(t, out)
	assert.False(t, env.Data.Stale)
	assert.Equal(t, units.Cents(5_000_000_00), out.Metadata.TotalAvailableCents)
	assert.Equal(t, units.Cents(300_000_00), out.Metadata.TotalAllocatedCents)
	assert.Equal(t, units.Cents(4_700_000_00), out.RemainingCents)
	assert.True(t, out.Metadata.ConservationCheckPassed)
	require.Len(t, out.Metadata.ExitMOICRanking, 2)
	assert.Equal(t, "c1", out.Metadata.ExitMOICRanking[0].CompanyID)
}

func TestAllocateEndpointValidation(t *testing.T) {
	// missing fundSizeDollars
	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", `{"companies": []}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Status int `json:"status"`
		Data   []struct {
			Code  string `json:"code"`
			Field string `json:"field"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	require.NotEmpty(t, env.Data)
	assert.Equal(t, "ERR_REQUIRED", env.Data[0].Code)
}

func TestAllocateEndpointUnusualCapWarning(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"capPolicy": {"kind": "fixed_percent", "defaultPercent": 250},
		"companies": [{"id": "c1", "investedDollars": 10000, "exitMoic": 3.0}]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env allocateEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusOK, env.Status)
	require.Len(t, env.Data.Warnings, 1)
	assert.Equal(t, "WARN_UNUSUAL", env.Data.Warnings[0].Code)
	require.NotNil(t, env.Data.Output)
	// the unusual cap is applied, not rejected
	assert.Equal(t, units.Cents(25_000_00), env.Data.Output.Allocations[0].PlannedAmountCents)
}

func TestAllocateEndpointInceptionDate(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"reserveFractionPct": 50,
		"quarterIndex": 2,
		"fundInceptionDate": "2024-02-15",
		"companies": [{"id": "c1", "investedDollars": 10000, "exitMoic": 3.0}]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env allocateEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Data.Output)

	// explicit quarter index wins; the remain pass lands four quarters out
	assert.Equal(t, 2, env.Data.Output.Metadata.QuarterIndex)
	assert.Equal(t, 6, env.Data.Output.Metadata.RemainPassQuarter)
	// Q1 2024 inception plus six quarters
	assert.Equal(t, "2025-07-01", env.Data.RemainPassDate)
}

func TestAllocateEndpointDerivesQuarterIndex(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"reserveFractionPct": 50,
		"fundInceptionDate": "2024-02-15",
		"companies": [{"id": "c1", "investedDollars": 10000, "exitMoic": 3.0}]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env allocateEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Data.Output)

	inception := time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)
	want := util.QuarterIndexAt(inception, time.Now().UTC())
	assert.Equal(t, want, env.Data.Output.Metadata.QuarterIndex)
	assert.Equal(t, want+4, env.Data.Output.Metadata.RemainPassQuarter)
}

func TestAllocateEndpointRejectsBadInceptionDate(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"fundInceptionDate": "yesterday",
		"companies": [{"id": "c1", "investedDollars": 10000, "exitMoic": 3.0}]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Status int                 `json:"status"`
		Data   []models.FieldError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	require.NotEmpty(t, env.Data)
	assert.Equal(t, "ERR_DATETIME", env.Data[0].Code)
}

func TestAllocateEndpointBadMatrix(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"companies": [{"id": "c1", "investedDollars": 10000, "exitMoic": 3.0}],
		"graduationRates": [
			{"fromStage": "seed", "toStage": "series_a", "probability": 0.7, "exitProbability": 0.5, "valuationMultiple": 2}
		]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/allocate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Status int                 `json:"status"`
		Data   []models.FieldError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusBadRequest, env.Status)
	require.NotEmpty(t, env.Data)
	assert.Equal(t, "ERR_MATRIX", env.Data[0].Code)
}

func TestPreviewEndpointCaches(t *testing.T) {
	h := newTestHandler(t)
	cache := icache.NewTTLCache()
	h.SetCache(cache)

	body := `{"fundSizeDollars": 1000000, "initialCheckSizeDollars": 50000, "reserveFractionPct": 50}`

	first := doRequest(t, h, http.MethodPost, "/api/v1/reserves/preview", body)
	require.Equal(t, http.StatusOK, first.Code)

	var env allocateEnvelope
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &env))
	require.NotNil(t, env.Data.Output)
	assert.True(t, env.Data.Output.Metadata.ConservationCheckPassed)
	// 10 synthetic companies for these parameters
	assert.Len(t, env.Data.Output.Allocations, 10)

	// the response is cached under the parameter key
	key := previewCacheKey(models.PreviewRequest{
		FundSizeDollars:         1000000,
		InitialCheckSizeDollars: 50000,
		ReserveFractionPct:      50,
		RemainPasses:            1,
		CapDefaultPercent:       100,
	})
	_, ok, err := cache.GetBytes(key)
	require.NoError(t, err)
	assert.True(t, ok)

	// identical parameters replay the identical payload
	second := doRequest(t, h, http.MethodPost, "/api/v1/reserves/preview", body)
	require.Equal(t, http.StatusOK, second.Code)

	var env2 allocateEnvelope
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &env2))
	assert.Equal(t, env.Data.Output, env2.Data.Output)
}

func TestRankingEndpoint(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"companies": [
			{"id": "low", "investedDollars": 10000, "exitMoic": 1.2},
			{"id": "high", "investedDollars": 10000, "exitMoic": 9.0}
		]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/ranking", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Status int `json:"status"`
		Data   struct {
			Ranking []models.RankedCompany `json:"ranking"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, http.StatusOK, env.Status)
	require.Len(t, env.Data.Ranking, 2)
	assert.Equal(t, "high", env.Data.Ranking[0].CompanyID)
	assert.Equal(t, "low", env.Data.Ranking[1].CompanyID)
}

func TestRankingEndpointLimit(t *testing.T) {
	body := `{
		"fundSizeDollars": 1000000,
		"companies": [
			{"id": "low", "investedDollars": 10000, "exitMoic": 1.2},
			{"id": "high", "investedDollars": 10000, "exitMoic": 9.0}
		]
	}`

	rec := doRequest(t, newTestHandler(t), http.MethodPost, "/api/v1/reserves/ranking?limit=1", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data struct {
			Ranking []models.RankedCompany `json:"ranking"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data.Ranking, 1)
	assert.Equal(t, "high", env.Data.Ranking[0].CompanyID)
}

func TestCancelEndpointAdvancesEpoch(t *testing.T) {
	h := newTestHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/api/v1/reserves/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data map[string]int64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, int64(1), env.Data["epoch"])

	rec = doRequest(t, h, http.MethodPost, "/api/v1/reserves/cancel", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, int64(2), env.Data["epoch"])
}

func TestHealthEndpoint(t *testing.T) {
	rec := doRequest(t, newTestHandler(t), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
