package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pre-resolution-lab/internal/format"
	"pre-resolution-lab/internal/report"
	"pre-resolution-lab/internal/storage"
	"pre-resolution-lab/internal/strategy"
	"pre-resolution-lab/internal/version"
)

const maxUpcomingLimit = 500

type analysisResponse struct {
	RunID  string          `json:"run_id"`
	Params strategy.Params `json:"params"`
	Result strategy.Result `json:"result"`
	Report string          `json:"report"`
}

type upcomingEvent struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	EndDate         time.Time `json:"end_date"`
	TimeToExpire    string    `json:"time_to_expire"`
	SecondsToExpire int64     `json:"time_to_expire_seconds"`
	Volume24h       *float64  `json:"volume_24hr"`
	Volume          string    `json:"volume"`
	ImageURL        string    `json:"image_url,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.String()})
}

func (s *Server) strategyJSON(c *gin.Context) {
	params, res, proceed := s.analyze(c)
	if !proceed {
		return
	}
	ok(c, analysisResponse{
		RunID:  s.newRunID(),
		Params: params,
		Result: res,
		Report: report.Text(res, params.PriceMin, params.PriceMax),
	}, nil)
}

func (s *Server) strategyCSV(c *gin.Context) {
	_, res, proceed := s.analyze(c)
	if !proceed {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, res.Trades); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Header("Content-Disposition", `attachment; filename="pre_resolution_trades.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (s *Server) strategyChart(c *gin.Context) {
	kind := c.DefaultQuery("kind", "pie")
	if kind != "pie" && kind != "histogram" {
		fail(c, http.StatusBadRequest, fmt.Sprintf("unknown chart kind %q", kind))
		return
	}

	_, res, proceed := s.analyze(c)
	if !proceed {
		return
	}

	var (
		buf bytes.Buffer
		err error
	)
	if kind == "histogram" {
		err = report.WritePriceHistogram(&buf, res.Trades)
	} else {
		err = report.WritePieChart(&buf, res)
	}
	if errors.Is(err, report.ErrNothingToPlot) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) upcoming(c *gin.Context) {
	limit := s.opts.UpcomingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxUpcomingLimit {
			fail(c, http.StatusBadRequest, fmt.Sprintf("limit must be an integer in [1, %d]", maxUpcomingLimit))
			return
		}
		limit = n
	}

	ref := s.now()
	events, err := s.backend.UpcomingEvents(c.Request.Context(), ref, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("upcoming events query failed")
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	items := make([]upcomingEvent, 0, len(events))
	for _, e := range events {
		items = append(items, presentEvent(e))
	}
	ok(c, items, map[string]any{"reference_time": ref, "count": len(items)})
}

func presentEvent(e storage.UpcomingEvent) upcomingEvent {
	return upcomingEvent{
		ID:              e.ID,
		Question:        e.Question,
		EndDate:         e.EndDate,
		TimeToExpire:    format.TimeToExpire(e.SecondsToExpire),
		SecondsToExpire: e.SecondsToExpire,
		Volume24h:       e.Volume24h,
		Volume:          format.Volume(e.Volume24h),
		ImageURL:        e.ImageURL,
	}
}

// analyze parses the parameters, runs the backend and writes the error
// response itself when it returns false.
func (s *Server) analyze(c *gin.Context) (strategy.Params, strategy.Result, bool) {
	params, err := parseParams(c, s.opts.Defaults)
	if err == nil {
		err = params.Validate()
	}
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return params, strategy.Result{}, false
	}
	if params.Reference.IsZero() {
		params.Reference = s.now()
	}

	res, err := s.backend.Analyze(c.Request.Context(), params)
	s.metrics.RecordAnalysis(res, err)
	if err != nil {
		if errors.Is(err, strategy.ErrInvalidParams) {
			fail(c, http.StatusBadRequest, err.Error())
			return params, res, false
		}
		s.logger.Error().Err(err).Msg("analysis failed")
		fail(c, http.StatusBadGateway, err.Error())
		return params, res, false
	}
	return params, res, true
}

// parseParams overlays query parameters on defaults. Names follow the
// dashboard controls: days, price_min, price_max, minutes.
func parseParams(c *gin.Context, defaults strategy.Params) (strategy.Params, error) {
	p := defaults
	var err error

	intParam := func(name string, dst *int) {
		if raw := c.Query(name); raw != "" && err == nil {
			var n int
			if n, err = strconv.Atoi(raw); err != nil {
				err = fmt.Errorf("%s: %q is not an integer", name, raw)
				return
			}
			*dst = n
		}
	}
	floatParam := func(name string, dst *float64) {
		if raw := c.Query(name); raw != "" && err == nil {
			var f float64
			if f, err = strconv.ParseFloat(raw, 64); err != nil {
				err = fmt.Errorf("%s: %q is not a number", name, raw)
				return
			}
			*dst = f
		}
	}
	boolParam := func(name string, dst *bool) {
		if raw := c.Query(name); raw != "" && err == nil {
			var b bool
			if b, err = strconv.ParseBool(raw); err != nil {
				err = fmt.Errorf("%s: %q is not a boolean", name, raw)
				return
			}
			*dst = b
		}
	}

	intParam("days", &p.LookbackDays)
	intParam("minutes", &p.OffsetMinutes)
	floatParam("price_min", &p.PriceMin)
	floatParam("price_max", &p.PriceMax)
	boolParam("min_inclusive", &p.MinInclusive)
	boolParam("max_inclusive", &p.MaxInclusive)

	if raw := c.Query("reference"); raw != "" && err == nil {
		ref, parsed := storage.ParseTime(raw)
		if !parsed {
			err = fmt.Errorf("reference: %q is not a timestamp", raw)
		}
		p.Reference = ref
	}
	return p, err
}
