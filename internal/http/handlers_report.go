package http

import (
	"net/http"
	"strings"
	"time"

	"fintrack/internal/analytics"
	"fintrack/internal/log"
)

// location is the zone calendar dates in query parameters are read in.
func (s *Server) location() *time.Location {
	if loc := s.report.Normalizer().Location; loc != nil {
		return loc
	}
	return time.Local
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), s.location())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	view, err := s.report.Summary(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleAggregates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	g := analytics.Month
	if v := q.Get("granularity"); v != "" {
		parsed, err := analytics.ParseGranularity(v)
		if err != nil {
			s.fail(w, r, log.OpAggregate, err)
			return
		}
		g = parsed
	}
	f, err := ParseFilter(q, s.location())
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	view, err := s.report.Aggregates(r.Context(), g, f)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleYoY(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseYearParam(q, "year")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	baseline, err := ParseYearParam(q, "baseline")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	view, err := s.report.YoY(r.Context(), year, baseline)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.report.Years(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"years": years}).Write(w)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := analytics.ModeMonth
	if v := q.Get("mode"); v != "" {
		parsed, err := analytics.ParseComparisonMode(v)
		if err != nil {
			s.fail(w, r, log.OpRead, err)
			return
		}
		mode = parsed
	}
	at, err := ParseDateParam(q, "date", s.location())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	view, err := s.report.Compare(r.Context(), mode, at)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	horizon, err := ParseIntParam(r.URL.Query(), "horizon", 0)
	if err != nil {
		s.fail(w, r, log.OpForecast, err)
		return
	}
	view, err := s.report.Forecast(r.Context(), horizon)
	if err != nil {
		s.fail(w, r, log.OpForecast, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseYearParam(q, "year")
	if err != nil {
		s.fail(w, r, log.OpDetect, err)
		return
	}
	z, err := ParseFloatParam(q, "z", 0)
	if err != nil {
		s.fail(w, r, log.OpDetect, err)
		return
	}
	view, err := s.report.Anomalies(r.Context(), year, z)
	if err != nil {
		s.fail(w, r, log.OpDetect, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), "year")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	alerts, err := s.report.Alerts(r.Context(), year)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"alerts": alerts}).Write(w)
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	view, err := s.report.Budgets(r.Context(), strings.TrimSpace(r.URL.Query().Get("month")))
	if err != nil {
		s.fail(w, r, log.OpTrack, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}

func (s *Server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	year, err := ParseYearParam(r.URL.Query(), "year")
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	steps, err := s.report.Waterfall(r.Context(), year)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"steps": steps}).Write(w)
}

func (s *Server) handleCategoryWaterfall(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query(), s.location())
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	entries, err := s.report.CategoryWaterfall(r.Context(), f)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"entries": entries}).Write(w)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := ParseYearParam(q, "year")
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	view, err := s.report.Dashboard(r.Context(), year, strings.TrimSpace(q.Get("month")))
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(view).Write(w)
}
