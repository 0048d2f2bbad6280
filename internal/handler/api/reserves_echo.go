package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ReserveDesk/internal/domain/models"
	icache "ReserveDesk/internal/service/cache"
	"ReserveDesk/internal/service/metrics"
	"ReserveDesk/internal/service/ratelimit"
	"ReserveDesk/internal/usecase"
	xhttp "ReserveDesk/pkg/http"
	applogger "ReserveDesk/pkg/logger"
	"ReserveDesk/pkg/util"

	"github.com/labstack/echo/v4"
)

// ReservesHandler exposes the allocation engine over Echo.
type ReservesHandler struct {
	svc   *usecase.ReservesService
	cache icache.BytesCache
	rl    *ratelimit.Limiter
	l     *applogger.Logger
}

// NewReservesHandler creates the handler.
func NewReservesHandler(l *applogger.Logger, svc *usecase.ReservesService) *ReservesHandler {
	metrics.Register()
	return &ReservesHandler{svc: svc, rl: ratelimit.New(), l: l}
}

// SetCache injects a preview-response cache. Preview output is a pure
// function of its parameters, so cached bytes never go stale on data.
func (h *ReservesHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *ReservesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1/reserves")
	g.POST("/allocate", h.Allocate)
	g.POST("/preview", h.Preview)
	g.POST("/ranking", h.Ranking)
	g.POST("/cancel", h.Cancel)
	e.GET("/healthz", h.Health)
}

// AllocateResponse tags engine output with its pipeline epoch. Stale
// results carry no output: the caller applies no update and does not retry.
// RemainPassDate is the calendar start of the remain-pass quarter, present
// only when the request carried a fund inception date.
type AllocateResponse struct {
	Epoch          int64                  `json:"epoch"`
	Stale          bool                   `json:"stale,omitempty"`
	Output         *models.ReservesOutput `json:"output,omitempty"`
	Warnings       []models.FieldError    `json:"warnings,omitempty"`
	RemainPassDate string                 `json:"remainPassDate,omitempty"`
}

func (h *ReservesHandler) Allocate(c echo.Context) error {
	start := time.Now()
	endpoint := "allocate"
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":allocate", 5, 2) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	req := &models.AllocateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	// When the caller supplies an inception date but no explicit quarter
	// index, derive it from the calendar.
	inception, hasInception := req.InceptionTime()
	if hasInception && req.QuarterIndex == 0 {
		req.QuarterIndex = util.QuarterIndexAt(inception, time.Now().UTC())
	}

	res, err := h.svc.Allocate(c.Request().Context(), requestID(c), *req)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return h.engineErrorResponse(c, endpoint, err)
	}
	resp := AllocateResponse{
		Epoch:    res.Epoch,
		Stale:    res.Stale,
		Output:   res.Output,
		Warnings: req.CapPolicy.UnusualCapWarnings(),
	}
	if hasInception && res.Output != nil && res.Output.Metadata.RemainPassQuarter > 0 {
		passStart := util.AddQuarters(util.QuarterStart(inception), res.Output.Metadata.RemainPassQuarter)
		resp.RemainPassDate = passStart.Format("2006-01-02")
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *ReservesHandler) Preview(c echo.Context) error {
	start := time.Now()
	endpoint := "preview"
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.rl.Allow(c.RealIP()+":preview", 10, 5) {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limited")
	}

	req := &models.PreviewRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cacheKey := previewCacheKey(*req)
	if h.cache != nil {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			if h.l != nil {
				h.l.Warn("preview cache_get_error", applogger.Error(err))
			}
		} else if ok {
			var cached AllocateResponse
			if err := json.Unmarshal(b, &cached); err == nil {
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	res, err := h.svc.Preview(c.Request().Context(), requestID(c), *req)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return h.engineErrorResponse(c, endpoint, err)
	}
	resp := AllocateResponse{Epoch: res.Epoch, Stale: res.Stale, Output: res.Output}
	if h.cache != nil && !res.Stale && res.Output != nil {
		if b, err := json.Marshal(resp); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, 5*time.Minute); err != nil && h.l != nil {
				h.l.Warn("preview cache_set_error", applogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *ReservesHandler) Ranking(c echo.Context) error {
	start := time.Now()
	endpoint := "ranking"
	defer func() { metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.RankingRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ranking, err := h.svc.Ranking(c.Request().Context(), *req)
	if err != nil {
		metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		return h.engineErrorResponse(c, endpoint, err)
	}
	if limit := util.ParseIntDefault(c.QueryParam("limit"), 0); limit > 0 && limit < len(ranking) {
		ranking = ranking[:limit]
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"ranking": ranking})
}

func (h *ReservesHandler) Cancel(c echo.Context) error {
	epoch := h.svc.CancelAll()
	return xhttp.SuccessResponse(c, map[string]int64{"epoch": epoch})
}

func (h *ReservesHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// engineErrorResponse maps the engine error taxonomy onto HTTP statuses.
// Validation failures come back as field lists; conservation violations
// and timeouts keep their distinct kinds all the way to the client.
func (h *ReservesHandler) engineErrorResponse(c echo.Context, endpoint string, err error) error {
	var verrs models.ValidationErrors
	if errors.As(err, &verrs) {
		return xhttp.BadRequestResponse(c, verrs)
	}
	if errors.Is(err, models.ErrMatrixInvalid) {
		return xhttp.BadRequestResponse(c, []models.FieldError{{
			Field: "graduationRates", Code: "ERR_MATRIX", Message: err.Error(),
		}})
	}
	var cerr *models.ConservationError
	if errors.As(err, &cerr) {
		if h.l != nil {
			h.l.Error(endpoint+" conservation failure", applogger.Error(cerr))
		}
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_CONSERVATION", "", cerr.Error(), http.StatusInternalServerError))
	}
	if errors.Is(err, models.ErrTimeout) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_TIMEOUT", "", err.Error(), http.StatusGatewayTimeout))
	}
	if h.l != nil {
		h.l.Error(endpoint+" error", applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, err)
}

func requestID(c echo.Context) string {
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}

func previewCacheKey(r models.PreviewRequest) string {
	return fmt.Sprintf("preview:%.2f:%.2f:%.2f:%d:%.2f",
		r.FundSizeDollars, r.InitialCheckSizeDollars, r.ReserveFractionPct, r.RemainPasses, r.CapDefaultPercent)
}
