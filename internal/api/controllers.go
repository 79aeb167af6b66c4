package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"backtest-core/internal/data"
	"backtest-core/internal/engine"
	"backtest-core/internal/market"
	"backtest-core/pkg/db"
)

type sourceRequest struct {
	Dataset string       `json:"dataset"`
	Bars    []market.Bar `json:"bars"`
	From    string       `json:"from"` // YYYY-MM-DD, inclusive
	To      string       `json:"to"`
}

type strategyRequest struct {
	StrategyID string         `json:"strategy_id"`
	Kind       string         `json:"kind"`
	Params     map[string]any `json:"params"`
}

type createBacktestRequest struct {
	strategyRequest
	sourceRequest
	// IncludeEquity keeps the per-bar equity curve in the response.
	IncludeEquity bool `json:"include_equity"`
}

type windowRequest struct {
	Name string `json:"name" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type runWindowsRequest struct {
	strategyRequest
	sourceRequest
	Windows []windowRequest `json:"windows"`
}

type createSweepRequest struct {
	strategyRequest
	sourceRequest
	Grid map[string][]float64 `json:"grid"`
}

type listBacktestsQuery struct {
	Limit int `form:"limit"`
}

func (q *listBacktestsQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 50
	}
	if q.Limit > 500 {
		q.Limit = 500
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// respondEngineError maps service errors onto HTTP statuses.
func respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidParams), errors.Is(err, engine.ErrEmptyGrid):
		respondError(c, http.StatusBadRequest, "INVALID_PARAMS", err.Error())
	case errors.Is(err, market.ErrMalformedBar):
		respondError(c, http.StatusUnprocessableEntity, "MALFORMED_BAR", err.Error())
	case errors.Is(err, data.ErrInvalidDataset):
		respondError(c, http.StatusBadRequest, "INVALID_DATASET", err.Error())
	case errors.Is(err, engine.ErrNoBars):
		respondError(c, http.StatusBadRequest, "NO_BARS", err.Error())
	case errors.Is(err, db.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respondError(c, http.StatusRequestTimeout, "TIMEOUT", "request took too long to process")
	default:
		respondError(c, http.StatusInternalServerError, "ENGINE_ERROR", err.Error())
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, v)
}

func (r strategyRequest) ref() engine.StrategyRef {
	return engine.StrategyRef{StrategyID: r.StrategyID, Kind: r.Kind, Params: r.Params}
}

func (r sourceRequest) source() (engine.Source, error) {
	from, err := parseDate(r.From)
	if err != nil {
		return engine.Source{}, err
	}
	to, err := parseDate(r.To)
	if err != nil {
		return engine.Source{}, err
	}
	return engine.Source{Dataset: r.Dataset, Bars: r.Bars, From: from, To: to}, nil
}

// getStrategies lists configured strategies and built-in kinds.
func (s *Server) getStrategies(c *gin.Context) {
	list, err := s.Engine.ListStrategies(c.Request.Context())
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// createBacktest runs one backtest synchronously and returns its report.
func (s *Server) createBacktest(c *gin.Context) {
	var req createBacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return
	}
	src, err := req.source()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	s.log.Info("backtest requested", "user", CurrentUserID(c), "strategy", req.StrategyID, "kind", req.Kind, "dataset", req.Dataset)

	rep, err := s.Engine.RunBacktest(c.Request.Context(), engine.BacktestRequest{StrategyRef: req.ref(), Source: src})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	if !req.IncludeEquity {
		rep.Equity = nil
	}
	c.JSON(http.StatusCreated, rep)
}

// listBacktests returns stored run headers, newest first.
func (s *Server) listBacktests(c *gin.Context) {
	var q listBacktestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()
	runs, err := s.Engine.ListRuns(c.Request.Context(), q.Limit)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

// getBacktest returns one stored run with trades and order events.
func (s *Server) getBacktest(c *gin.Context) {
	rd, err := s.Engine.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, rd)
}

// runWindows re-runs a strategy over several date windows, each from fresh cash.
func (s *Server) runWindows(c *gin.Context) {
	var req runWindowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return
	}
	src, err := req.source()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	windows := make([]engine.Window, 0, len(req.Windows))
	for _, w := range req.Windows {
		from, err := parseDate(w.From)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
			return
		}
		to, err := parseDate(w.To)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
			return
		}
		windows = append(windows, engine.Window{Name: w.Name, From: from, To: to})
	}

	out, err := s.Engine.RunWindows(c.Request.Context(), engine.WindowsRequest{
		StrategyRef: req.ref(),
		Source:      src,
		Windows:     windows,
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// createSweep evaluates a parameter grid and returns every run plus the best.
func (s *Server) createSweep(c *gin.Context) {
	var req createSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "invalid request payload")
		return
	}
	src, err := req.source()
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DATE", err.Error())
		return
	}
	s.log.Info("sweep requested", "user", CurrentUserID(c), "strategy", req.StrategyID, "grid", req.Grid)

	res, err := s.Engine.Sweep(c.Request.Context(), engine.SweepRequest{
		StrategyRef: req.ref(),
		Source:      src,
		Grid:        engine.Grid(req.Grid),
	})
	if err != nil {
		respondEngineError(c, err)
		return
	}
	res.BestReport.Equity = nil
	c.JSON(http.StatusOK, res)
}

// getSystemStatus exposes process metadata.
func (s *Server) getSystemStatus(c *gin.Context) {
	st := s.Engine.GetSystemStatus(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":      st,
		"server_time": time.Now().UTC(),
	})
}
