package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tripleyak/marginal-roas-optimizer/internal/ingest"
	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/optimizer"
	"github.com/tripleyak/marginal-roas-optimizer/internal/store"
)

type observationRequest struct {
	EntityID       string   `json:"entity_id"`
	Date           string   `json:"date"`
	Spend          float64  `json:"spend"`
	AdRevenue      float64  `json:"ad_revenue"`
	TotalRevenue   *float64 `json:"total_revenue"`
	GrossMarginPct *float64 `json:"gross_margin_pct"`
	RequiredNetPct *float64 `json:"required_net_pct"`
}

// marginRequest accepts either a contribution margin fraction or the
// gross/required-net pair in percent.
type marginRequest struct {
	ContributionMargin *float64 `json:"contribution_margin"`
	GrossMarginPct     *float64 `json:"gross_margin_pct"`
	RequiredNetPct     *float64 `json:"required_net_pct"`
}

type settingsRequest struct {
	CurrentSpend *float64 `json:"current_spend"`
	MaxSpend     *float64 `json:"max_spend"`
	Seasonality  *string  `json:"seasonality"`
	Recency      *float64 `json:"recency"`
}

type optimizeRequest struct {
	Observations []observationRequest `json:"observations"`
	Margin       *marginRequest       `json:"margin"`
	Settings     *settingsRequest     `json:"settings"`
	Source       string               `json:"source"`
}

// badRequest marks decoding problems that map to 400.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) optimize(w http.ResponseWriter, r *http.Request) {
	req, obs, margin, settings, err := s.decode(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	obs = ingest.Aggregate(obs, false)

	res, err := s.opt.OptimizeSingle(r.Context(), obs, margin, settings)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.persist(r.Context(), w, &model.Run{
		Mode:         model.RunModeSingle,
		Source:       req.Source,
		Observations: len(obs),
		Settings:     settings,
		Margin:       margin,
		Result:       res,
	})
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) portfolio(w http.ResponseWriter, r *http.Request) {
	req, obs, margin, settings, err := s.decode(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}
	obs = ingest.Aggregate(obs, true)

	rows, err := s.opt.OptimizePortfolio(r.Context(), obs, margin, settings)
	if err != nil {
		s.fail(w, err)
		return
	}

	s.persist(r.Context(), w, &model.Run{
		Mode:         model.RunModePortfolio,
		Source:       req.Source,
		Observations: len(obs),
		Settings:     settings,
		Margin:       margin,
		Rows:         rows,
	})
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Mode: model.RunMode(q.Get("mode"))}
	if filter.Mode != "" && filter.Mode != model.RunModeSingle && filter.Mode != model.RunModePortfolio {
		respondError(w, http.StatusBadRequest, "mode must be single or portfolio")
		return
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		s.fail(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	respondJSON(w, http.StatusOK, runs)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		s.fail(w, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// decode parses the request body and resolves margin and settings against
// the server defaults.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*optimizeRequest, []model.Observation, model.MarginConfig, model.RunSettings, error) {
	var req optimizeRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, nil, model.MarginConfig{}, model.RunSettings{}, &badRequest{"invalid request body: " + err.Error()}
	}

	obs := make([]model.Observation, 0, len(req.Observations))
	for i, o := range req.Observations {
		d, err := ingest.ParseDate(o.Date)
		if err != nil {
			return nil, nil, model.MarginConfig{}, model.RunSettings{}, &badRequest{"observations[" + strconv.Itoa(i) + "]: " + err.Error()}
		}
		obs = append(obs, model.Observation{
			EntityID:       strings.TrimSpace(o.EntityID),
			Date:           d,
			Spend:          o.Spend,
			AdRevenue:      o.AdRevenue,
			TotalRevenue:   o.TotalRevenue,
			GrossMarginPct: o.GrossMarginPct,
			RequiredNetPct: o.RequiredNetPct,
		})
	}

	margin, err := s.resolveMargin(req.Margin)
	if err != nil {
		return nil, nil, model.MarginConfig{}, model.RunSettings{}, err
	}
	settings, err := s.resolveSettings(req.Settings)
	if err != nil {
		return nil, nil, model.MarginConfig{}, model.RunSettings{}, err
	}
	return &req, obs, margin, settings, nil
}

func (s *Server) resolveMargin(m *marginRequest) (model.MarginConfig, error) {
	switch {
	case m == nil:
		return s.opts.Margin, nil
	case m.ContributionMargin != nil:
		return model.MarginFromFraction(*m.ContributionMargin), nil
	case m.GrossMarginPct != nil && m.RequiredNetPct != nil:
		return model.NewMarginConfig(*m.GrossMarginPct, *m.RequiredNetPct), nil
	case m.GrossMarginPct == nil && m.RequiredNetPct == nil:
		return s.opts.Margin, nil
	default:
		return model.MarginConfig{}, &badRequest{"margin needs both gross_margin_pct and required_net_pct"}
	}
}

func (s *Server) resolveSettings(in *settingsRequest) (model.RunSettings, error) {
	out := s.opts.Settings
	if in == nil {
		return out, nil
	}
	if in.CurrentSpend != nil {
		if *in.CurrentSpend < 0 {
			return out, &badRequest{"current_spend must be >= 0"}
		}
		out.CurrentSpend = *in.CurrentSpend
	}
	if in.MaxSpend != nil {
		if *in.MaxSpend < 0 {
			return out, &badRequest{"max_spend must be >= 0"}
		}
		out.MaxSpend = *in.MaxSpend
	}
	if in.Seasonality != nil {
		mode, err := model.ParseSeasonality(*in.Seasonality)
		if err != nil {
			return out, &badRequest{err.Error()}
		}
		out.Seasonality = mode
	}
	if in.Recency != nil {
		if *in.Recency < 0 || *in.Recency > 1 {
			return out, &badRequest{"recency must be between 0 and 1"}
		}
		out.Recency = *in.Recency
	}
	return out, nil
}

// persist saves run when a store is configured. Failures are logged and do
// not fail the request.
func (s *Server) persist(ctx context.Context, w http.ResponseWriter, run *model.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		zap.L().Warn("api: save run failed", zap.String("mode", string(run.Mode)), zap.Error(err))
		return
	}
	w.Header().Set("X-Run-Id", run.ID)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var br *badRequest
	switch {
	case errors.As(err, &br):
		respondError(w, http.StatusBadRequest, br.msg)
	case optimizer.IsValidation(err):
		ve, _ := optimizer.AsValidation(err)
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "kind": string(ve.Kind)})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusServiceUnavailable, "request canceled")
	default:
		zap.L().Error("api: request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, eris.Cause(err).Error())
	}
}
