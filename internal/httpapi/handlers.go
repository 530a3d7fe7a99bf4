package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aeris-project/aeris/internal/cities"
	"github.com/aeris-project/aeris/internal/owm"
	"github.com/aeris-project/aeris/internal/weather"
)

func (s *Server) handleCurrent(c *gin.Context) {
	city := c.Param("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	m, err := s.reader.Latest(ctx, city)
	if err != nil {
		s.log.Error().Str("city", city).Err(err).Msg("failed to get current weather")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if m == nil {
		// No stored data yet: fall back to the live API.
		m, err = s.fetcher.Current(ctx, city)
		if errors.Is(err, owm.ErrCityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "city not found: " + city})
			return
		}
		if err != nil {
			s.log.Error().Str("city", city).Err(err).Msg("live weather fetch failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, currentResponse(m))
}

func currentResponse(m *weather.Measurement) gin.H {
	return gin.H{
		"city":        m.CityName,
		"country":     m.CountryCode,
		"temperature": m.Temperature,
		"feels_like":  m.FeelsLike,
		"condition":   m.ConditionMain,
		"description": m.ConditionDesc,
		"humidity":    m.Humidity,
		"pressure":    m.Pressure,
		"wind_speed":  m.WindSpeed,
		"timestamp":   m.DataTimestamp.Format(time.RFC3339),
		"coordinates": gin.H{
			"latitude":  m.Latitude,
			"longitude": m.Longitude,
		},
	}
}

func (s *Server) handleHistory(c *gin.Context) {
	city := c.Param("city")
	days, ok := s.daysParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	records, err := s.reader.History(ctx, city, days)
	if err != nil {
		s.log.Error().Str("city", city).Int("days", days).Err(err).Msg("failed to get weather history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no historical weather data found for " + city})
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, m := range records {
		out = append(out, gin.H{
			"date":        m.DataTimestamp.Format(time.RFC3339),
			"temperature": m.Temperature,
			"feels_like":  m.FeelsLike,
			"condition":   m.ConditionMain,
			"description": m.ConditionDesc,
			"humidity":    m.Humidity,
			"pressure":    m.Pressure,
			"wind_speed":  m.WindSpeed,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleSummary(c *gin.Context) {
	city := c.Param("city")
	days, ok := s.daysParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	summary, err := s.reader.Summarize(ctx, city, days)
	if err != nil {
		s.log.Error().Str("city", city).Int("days", days).Err(err).Msg("failed to get weather summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// daysParam parses the days query parameter, bounded to [1,365].
func (s *Server) daysParam(c *gin.Context) (int, bool) {
	days := s.cfg.DefaultDays
	if v := c.Query("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
			return 0, false
		}
		days = parsed
	}
	return days, true
}

func (s *Server) handleCities(c *gin.Context) {
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
			return
		}
		list := cities.List(limit)
		c.JSON(http.StatusOK, gin.H{
			"cities":  list,
			"count":   len(list),
			"limited": true,
			"limit":   limit,
		})
		return
	}

	all := cities.List(0)
	c.JSON(http.StatusOK, gin.H{
		"cities_by_region": cities.ByRegion(),
		"all_cities":       all,
		"total_count":      len(all),
		"regions":          cities.Regions(),
	})
}

type manualUpdateRequest struct {
	Type string `json:"type" binding:"required,oneof=current backfill"`
}

func (s *Server) handleManualUpdate(c *gin.Context) {
	var req manualUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update type, use 'current' or 'backfill'"})
		return
	}

	s.log.Info().Str("update_type", req.Type).Msg("manual update triggered")

	var (
		result any
		err    error
	)
	if req.Type == "current" {
		result, err = s.runner.RunUpdate(c.Request.Context())
	} else {
		result, err = s.runner.RunBackfill(c.Request.Context())
	}
	if err != nil {
		s.log.Error().Str("update_type", req.Type).Err(err).Msg("manual update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "manual " + req.Type + " update triggered successfully",
		"result":    result,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSystemStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	jobStatus := s.jobs.Status()
	apiStats := s.fetcher.UsageStats()

	dbStatus := "connected"
	dbStats, err := s.reader.Stats(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read database stats for system status")
		dbStatus = "unavailable"
	}

	backfillStatus := "unknown"
	verdict, err := s.tracker.Status(ctx, s.runner.Cities(), s.cfg.ExpectedDays)
	if err == nil {
		if verdict.Complete {
			backfillStatus = "complete"
		} else {
			backfillStatus = "incomplete"
		}
	}

	overall := "unhealthy"
	schedulerStatus := "stopped"
	if jobStatus.Running {
		overall = "healthy"
		schedulerStatus = "running"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": gin.H{
			"scheduler": gin.H{
				"status":     schedulerStatus,
				"job_status": jobStatus,
			},
			"weather_api": gin.H{
				"status": "configured",
				"usage":  apiStats,
			},
			"database": gin.H{
				"status": dbStatus,
				"stats":  dbStats,
			},
			"backfill": gin.H{
				"status": backfillStatus,
			},
		},
	})
}

func (s *Server) handleBackfillStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	verdict, err := s.tracker.Status(ctx, s.runner.Cities(), s.cfg.ExpectedDays)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get backfill status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"backfill_status": verdict,
	})
}

func (s *Server) handleJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"job_status": s.jobs.Status(),
	})
}
