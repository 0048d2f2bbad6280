package usecase

import (
	"context"
	"fmt"
	"time"

	"ReserveDesk/internal/domain/models"
	domrepo "ReserveDesk/internal/domain/repository"
	"ReserveDesk/internal/domain/units"
	mid "ReserveDesk/internal/middleware"
	"ReserveDesk/internal/service/synthetic"
	applogger "ReserveDesk/pkg/logger"
)

// ReservesService orchestrates one allocation request end to end: parse the
// graduation model, run the engine through the cancellation-safe pipeline,
// and hand fresh results to the audit recorder.
type ReservesService struct {
	alloc       *Allocator
	pipe        *mid.CalcPipeline
	recorder    *AuditRecorder
	metrics     domrepo.Metrics
	portfolio   domrepo.PortfolioSource
	l           *applogger.Logger
	maxDuration time.Duration
}

// NewReservesService wires the service.
func NewReservesService(alloc *Allocator, pipe *mid.CalcPipeline, recorder *AuditRecorder, metrics domrepo.Metrics, maxDuration time.Duration) *ReservesService {
	return &ReservesService{
		alloc:       alloc,
		pipe:        pipe,
		recorder:    recorder,
		metrics:     metrics,
		maxDuration: maxDuration,
	}
}

// SetLogger injects a structured logger.
func (s *ReservesService) SetLogger(l *applogger.Logger) { s.l = l }

// SetPortfolioSource replaces the synthetic preview portfolio with another
// source, such as a real-portfolio adapter.
func (s *ReservesService) SetPortfolioSource(src domrepo.PortfolioSource) { s.portfolio = src }

// Allocate runs a full allocation for an explicit portfolio.
func (s *ReservesService) Allocate(ctx context.Context, requestID string, req models.AllocateRequest) (mid.CalcResult, error) {
	matrix, err := buildMatrix(req.GraduationRates)
	if err != nil {
		return mid.CalcResult{}, err
	}
	input, cfg := req.ToDomain(s.maxDuration)

	res, err := s.pipe.Run(ctx, requestID, func(context.Context) (*models.ReservesOutput, error) {
		return s.alloc.Allocate(input, cfg, matrix)
	})
	if err != nil {
		return res, err
	}
	s.recordFresh(requestID, res)
	return res, nil
}

// Preview runs an allocation against a deterministic synthetic portfolio,
// for funds with no real portfolio yet. Identical parameters always yield
// identical output, so responses are safely cacheable.
func (s *ReservesService) Preview(ctx context.Context, requestID string, req models.PreviewRequest) (mid.CalcResult, error) {
	fundSize := units.DollarsToCents(req.FundSizeDollars)
	checkSize := units.DollarsToCents(req.InitialCheckSizeDollars)
	reserveBps := units.PercentToBps(req.ReserveFractionPct)

	src := s.portfolio
	if src == nil {
		src = synthetic.New(fundSize, checkSize, reserveBps)
	}
	companies, err := src.Companies(ctx)
	if err != nil {
		return mid.CalcResult{}, fmt.Errorf("portfolio source: %w", err)
	}

	input := models.ReservesInput{
		Companies:     companies,
		FundSizeCents: fundSize,
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps:  reserveBps,
		RemainPasses:        req.RemainPasses,
		RemainDelayQuarters: 4,
		CapPolicy:           models.FixedPercentPolicy(req.CapDefaultPercent),
		AuditLevel:          models.AuditSummary,
		MaxDuration:         s.maxDuration,
	}

	return s.pipe.Run(ctx, requestID, func(context.Context) (*models.ReservesOutput, error) {
		return s.alloc.Allocate(input, cfg, nil)
	})
}

// Ranking computes the exit-MOIC ordering without committing reserve: a run
// against a zero reserve fraction still visits every company and records
// the full ranking, so audit displays reuse the engine unchanged.
func (s *ReservesService) Ranking(ctx context.Context, req models.RankingRequest) ([]models.RankedCompany, error) {
	companies := make([]models.Company, 0, len(req.Companies))
	for _, c := range req.Companies {
		companies = append(companies, c.ToDomain())
	}
	input := models.ReservesInput{
		Companies:     companies,
		FundSizeCents: units.DollarsToCents(req.FundSizeDollars),
	}
	cfg := models.ReservesConfig{
		ReserveFractionBps: 0,
		CapPolicy:          models.FixedPercentPolicy(100),
		AuditLevel:         models.AuditSummary,
		MaxDuration:        s.maxDuration,
	}
	out, err := s.alloc.Allocate(input, cfg, nil)
	if err != nil {
		return nil, err
	}
	return out.Metadata.ExitMOICRanking, nil
}

// CancelAll invalidates every in-flight calculation and returns the new
// epoch.
func (s *ReservesService) CancelAll() int64 {
	epoch := s.pipe.CancelAll()
	if s.l != nil {
		s.l.Info("calculations cancelled", applogger.Int64("epoch", epoch))
	}
	return epoch
}

// Epoch exposes the current pipeline epoch.
func (s *ReservesService) Epoch() int64 { return s.pipe.Epoch() }

func (s *ReservesService) recordFresh(requestID string, res mid.CalcResult) {
	if s.recorder == nil || res.Stale || res.Output == nil {
		return
	}
	s.recorder.Enqueue(domrepo.AuditRecord{RequestID: requestID, Output: res.Output})
}

func buildMatrix(reqs []models.GraduationRateRequest) (*models.GraduationMatrix, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	return models.NewGraduationMatrix("request", models.GraduationRatesToDomain(reqs))
}
