package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"stock-scenario-engine/internal/scenario"
	"stock-scenario-engine/internal/vault"

	"github.com/gin-gonic/gin"
)

const maxHistoryLimit = 100

// handleGetScenarios returns the active scenario set for a symbol, generating
// one when no valid cached set exists. ?force=true bypasses caching and any
// recorded outcome for the current window.
func (s *Server) handleGetScenarios(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	timeframe := c.DefaultQuery("timeframe", scenario.TimeframeToday)
	force := c.Query("force") == "true"

	set, err := s.generator.GenerateScenarios(c.Request.Context(), symbol, timeframe, force)
	if err != nil {
		var insufficient scenario.ErrInsufficientHistory
		if errors.As(err, &insufficient) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Scenario generation failed")
		errorResponse(c, http.StatusBadGateway, "scenario generation failed")
		return
	}

	if force {
		s.hub.BroadcastScenarioSet(set)
	}

	successResponse(c, set)
}

type outcomeRequest struct {
	Timeframe  string  `json:"timeframe"`
	ClosePrice float64 `json:"close_price" binding:"required,gt=0"`
}

// handleRecordOutcome records the closing price against the active scenario
// set, freezing it for later accuracy review.
func (s *Server) handleRecordOutcome(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "close_price must be a positive number")
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = scenario.TimeframeToday
	}

	set, err := s.generator.RecordOutcome(c.Request.Context(), symbol, req.Timeframe, req.ClosePrice)
	if err != nil {
		switch {
		case errors.Is(err, scenario.ErrNoActiveSet):
			errorResponse(c, http.StatusNotFound, "no active scenario set for symbol")
		case errors.Is(err, scenario.ErrOutcomeAlreadyRecorded):
			errorResponse(c, http.StatusConflict, "outcome already recorded for active set")
		default:
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Outcome recording failed")
			errorResponse(c, http.StatusInternalServerError, "failed to record outcome")
		}
		return
	}

	s.hub.BroadcastScenarioSet(set)
	successResponse(c, set)
}

// handleSetHistory returns recent scenario sets with recorded outcomes.
// Requires the Postgres-backed store.
func (s *Server) handleSetHistory(c *gin.Context) {
	if s.repo == nil {
		errorResponse(c, http.StatusNotImplemented, "history requires a database-backed store")
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	timeframe := c.DefaultQuery("timeframe", scenario.TimeframeToday)

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			errorResponse(c, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	sets, err := s.repo.ListSetHistory(c.Request.Context(), symbol, timeframe, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("History query failed")
		errorResponse(c, http.StatusInternalServerError, "failed to load history")
		return
	}

	successResponse(c, sets)
}

// handleGetSignal returns the raw fused signal and prediction without
// running the scenario rules. Useful for dashboards.
func (s *Server) handleGetSignal(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	signal, prediction, err := s.generator.FusedSignal(c.Request.Context(), symbol)
	if err != nil {
		var insufficient scenario.ErrInsufficientHistory
		if errors.As(err, &insufficient) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Signal fusion failed")
		errorResponse(c, http.StatusBadGateway, "signal fusion failed")
		return
	}

	successResponse(c, gin.H{
		"symbol":     symbol,
		"signal":     signal,
		"prediction": prediction,
	})
}

// handleGetIndicators returns the computed indicator set for a symbol.
func (s *Server) handleGetIndicators(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	set, err := s.generator.Indicators(c.Request.Context(), symbol)
	if err != nil {
		var insufficient scenario.ErrInsufficientHistory
		if errors.As(err, &insufficient) {
			errorResponse(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("symbol", symbol).Msg("Indicator computation failed")
		errorResponse(c, http.StatusBadGateway, "indicator computation failed")
		return
	}

	successResponse(c, gin.H{"symbol": symbol, "indicators": set})
}

// handleInvalidateKeywords drops the cached keyword tables so the next
// sentiment pass reloads them from the configured source.
func (s *Server) handleInvalidateKeywords(c *gin.Context) {
	s.keywords.Invalidate()
	successResponse(c, gin.H{"invalidated": true})
}

type credentialRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key" binding:"required"`
	BaseURL  string `json:"base_url"`
}

// handleStoreCredential stores a data-provider API key in Vault.
func (s *Server) handleStoreCredential(c *gin.Context) {
	if s.vaultClient == nil {
		errorResponse(c, http.StatusNotImplemented, "credential storage is not configured")
		return
	}

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "provider and api_key are required")
		return
	}

	cred := vault.Credential{
		Provider: req.Provider,
		APIKey:   req.APIKey,
		BaseURL:  req.BaseURL,
	}
	if err := s.vaultClient.StoreCredential(c.Request.Context(), cred); err != nil {
		s.logger.Error().Err(err).Str("provider", req.Provider).Msg("Credential store failed")
		errorResponse(c, http.StatusInternalServerError, "failed to store credential")
		return
	}

	successResponse(c, gin.H{"provider": req.Provider})
}

// handleDeleteCredential removes a stored data-provider API key.
func (s *Server) handleDeleteCredential(c *gin.Context) {
	if s.vaultClient == nil {
		errorResponse(c, http.StatusNotImplemented, "credential storage is not configured")
		return
	}

	provider := c.Param("provider")

	if err := s.vaultClient.DeleteCredential(c.Request.Context(), provider); err != nil {
		s.logger.Error().Err(err).Str("provider", provider).Msg("Credential delete failed")
		errorResponse(c, http.StatusInternalServerError, "failed to delete credential")
		return
	}

	successResponse(c, gin.H{"provider": provider, "deleted": true})
}

// handleFlushCache clears cached scenario sets from Redis.
func (s *Server) handleFlushCache(c *gin.Context) {
	if s.cacheSvc == nil {
		errorResponse(c, http.StatusNotImplemented, "redis cache is not enabled")
		return
	}

	if err := s.cacheSvc.DeletePattern(c.Request.Context(), "scenario:*"); err != nil {
		s.logger.Error().Err(err).Msg("Cache flush failed")
		errorResponse(c, http.StatusInternalServerError, "failed to flush cache")
		return
	}

	successResponse(c, gin.H{"flushed": true})
}
