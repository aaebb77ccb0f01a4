// Package api implements the JSON API handlers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/strataquant/strata/internal/api/job"
	"github.com/strataquant/strata/internal/api/response"
	"github.com/strataquant/strata/internal/backtest"
	"github.com/strataquant/strata/internal/core"
	"github.com/strataquant/strata/internal/strategy"
)

const backtestTimeout = 5 * time.Minute

// BacktestRequest is the request body for starting a backtest. Params
// keys that are omitted keep the server's configured defaults.
type BacktestRequest struct {
	Symbols        []string        `json:"symbols"`
	Start          string          `json:"start"`
	End            string          `json:"end"`
	InitialCapital float64         `json:"initial_capital,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
}

// ParamsJSON is the wire form of strategy.Params.
type ParamsJSON struct {
	RSIPeriod           int `json:"rsi_period"`
	MACDFast            int `json:"macd_fast"`
	MACDSlow            int `json:"macd_slow"`
	MACDSignal          int `json:"macd_signal"`
	ATRPeriod           int `json:"atr_period"`
	PriceMomentumPeriod int `json:"price_momentum_period"`

	RSIOversold            float64 `json:"rsi_oversold"`
	VolumeThreshold        float64 `json:"volume_threshold"`
	PriceMomentumThreshold float64 `json:"price_momentum_threshold"`
	ConfidenceThreshold    float64 `json:"confidence_threshold"`

	StopLoss         float64 `json:"stop_loss"`
	StopProfit       float64 `json:"stop_profit"`
	MaxPositionSize  float64 `json:"max_position_size"`
	MaxTotalExposure float64 `json:"max_total_exposure"`
	MinHoldingDays   int     `json:"min_holding_days"`

	EnableTrailingStop  bool `json:"enable_trailing_stop"`
	EnableATRStop       bool `json:"enable_atr_stop"`
	EnablePriceMomentum bool `json:"enable_price_momentum"`
	EnableMA60          bool `json:"enable_ma60"`
	StrictScoring       bool `json:"strict_scoring"`
	HierarchicalEntry   bool `json:"hierarchical_entry"`
	DynamicPositionSize bool `json:"dynamic_position_size"`

	TrailingStopPercent     float64 `json:"trailing_stop_percent"`
	TrailingActivatePercent float64 `json:"trailing_activate_percent"`
}

func paramsJSONFrom(p strategy.Params) ParamsJSON {
	return ParamsJSON{
		RSIPeriod:           p.RSIPeriod,
		MACDFast:            p.MACDFast,
		MACDSlow:            p.MACDSlow,
		MACDSignal:          p.MACDSignal,
		ATRPeriod:           p.ATRPeriod,
		PriceMomentumPeriod: p.PriceMomentumPeriod,

		RSIOversold:            p.RSIOversold,
		VolumeThreshold:        p.VolumeThreshold,
		PriceMomentumThreshold: p.PriceMomentumThreshold,
		ConfidenceThreshold:    p.ConfidenceThreshold,

		StopLoss:         p.StopLoss,
		StopProfit:       p.StopProfit,
		MaxPositionSize:  p.MaxPositionSize,
		MaxTotalExposure: p.MaxTotalExposure,
		MinHoldingDays:   p.MinHoldingDays,

		EnableTrailingStop:  p.EnableTrailingStop,
		EnableATRStop:       p.EnableATRStop,
		EnablePriceMomentum: p.EnablePriceMomentum,
		EnableMA60:          p.EnableMA60,
		StrictScoring:       p.StrictScoring,
		HierarchicalEntry:   p.HierarchicalEntry,
		DynamicPositionSize: p.DynamicPositionSize,

		TrailingStopPercent:     p.TrailingStopPercent,
		TrailingActivatePercent: p.TrailingActivatePercent,
	}
}

func (pj ParamsJSON) toParams() strategy.Params {
	return strategy.Params{
		RSIPeriod:           pj.RSIPeriod,
		MACDFast:            pj.MACDFast,
		MACDSlow:            pj.MACDSlow,
		MACDSignal:          pj.MACDSignal,
		ATRPeriod:           pj.ATRPeriod,
		PriceMomentumPeriod: pj.PriceMomentumPeriod,

		RSIOversold:            pj.RSIOversold,
		VolumeThreshold:        pj.VolumeThreshold,
		PriceMomentumThreshold: pj.PriceMomentumThreshold,
		ConfidenceThreshold:    pj.ConfidenceThreshold,

		StopLoss:         pj.StopLoss,
		StopProfit:       pj.StopProfit,
		MaxPositionSize:  pj.MaxPositionSize,
		MaxTotalExposure: pj.MaxTotalExposure,
		MinHoldingDays:   pj.MinHoldingDays,

		EnableTrailingStop:  pj.EnableTrailingStop,
		EnableATRStop:       pj.EnableATRStop,
		EnablePriceMomentum: pj.EnablePriceMomentum,
		EnableMA60:          pj.EnableMA60,
		StrictScoring:       pj.StrictScoring,
		HierarchicalEntry:   pj.HierarchicalEntry,
		DynamicPositionSize: pj.DynamicPositionSize,

		TrailingStopPercent:     pj.TrailingStopPercent,
		TrailingActivatePercent: pj.TrailingActivatePercent,
	}
}

// BacktestHandler handles backtest API requests.
type BacktestHandler struct {
	jobStore       *job.Store
	engine         *backtest.Engine
	defaultParams  strategy.Params
	defaultCapital float64
	log            *zap.Logger
}

// NewBacktestHandler creates a new backtest handler. defaultParams and
// defaultCapital fill in request fields the client omits.
func NewBacktestHandler(
	jobStore *job.Store,
	engine *backtest.Engine,
	defaultParams strategy.Params,
	defaultCapital float64,
	log *zap.Logger,
) *BacktestHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &BacktestHandler{
		jobStore:       jobStore,
		engine:         engine,
		defaultParams:  defaultParams,
		defaultCapital: defaultCapital,
		log:            log,
	}
}

// Create starts a new backtest job.
func (h *BacktestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}

	if len(req.Symbols) == 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigMissing, fmt.Errorf("symbols required")))
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, err))
		return
	}
	if !end.After(start) {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("end must be after start")))
		return
	}

	// Overlay the request's params onto the defaults: absent JSON keys
	// leave the prefilled fields untouched.
	pj := paramsJSONFrom(h.defaultParams)
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &pj); err != nil {
			response.Error(w, http.StatusBadRequest,
				core.WrapError(core.ErrConfigInvalid, err))
			return
		}
	}

	capital := req.InitialCapital
	if capital == 0 {
		capital = h.defaultCapital
	}
	if capital <= 0 {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, fmt.Errorf("initial_capital must be positive")))
		return
	}

	runReq := backtest.Request{
		Symbols:        req.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: capital,
		Params:         pj.toParams(),
	}

	j := h.jobStore.Create("backtest")
	go h.runBacktest(j.ID, runReq)

	response.JSON(w, http.StatusAccepted, map[string]any{
		"job_id": j.ID,
		"status": j.Status,
	})
}

// runBacktest executes the backtest and updates job status.
func (h *BacktestHandler) runBacktest(jobID string, req backtest.Request) {
	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusRunning
	})

	ctx, cancel := context.WithTimeout(context.Background(), backtestTimeout)
	defer cancel()
	result, err := h.engine.Run(ctx, req)

	if err != nil {
		h.log.Warn("backtest job failed", zap.String("job_id", jobID), zap.Error(err))
		h.jobStore.Update(jobID, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.Error = core.WrapError(core.ErrBacktestFailed, err)
		})
		return
	}

	h.jobStore.Update(jobID, func(j *job.Job) {
		j.Status = job.StatusComplete
		j.Progress = 100
		j.Result = result
	})
}

// GetStatus returns the status of a backtest job.
func (h *BacktestHandler) GetStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	j, err := h.jobStore.Get(jobID)
	if err != nil {
		response.Error(w, http.StatusNotFound, err)
		return
	}

	resp := map[string]any{
		"job_id":   j.ID,
		"status":   j.Status,
		"progress": j.Progress,
	}

	if j.Status == job.StatusComplete {
		resp["result"] = j.Result
	}
	if j.Status == job.StatusFailed && j.Error != nil {
		resp["error"] = map[string]string{
			"code":    j.Error.Code,
			"message": j.Error.Message,
		}
	}

	response.JSON(w, http.StatusOK, resp)
}
