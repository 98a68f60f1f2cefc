package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/staking"
)

type initializeRequest struct {
	ID      string `json:"id"`
	Variant string `json:"variant"`
}

type stakeRequest struct {
	Amount      uint64 `json:"amount"`
	LockSeconds int64  `json:"lock_seconds"`
	LockMonths  uint64 `json:"lock_months"`
}

type unstakeRequest struct {
	Amount uint64 `json:"amount"`
}

type claimRequest struct {
	Destination string `json:"destination"`
}

type thresholdsRequest struct {
	Thresholds []uint64 `json:"thresholds"`
}

type rateRequest struct {
	Rate uint64 `json:"rate"`
}

type creditRequest struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// routes builds the HTTP router
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/pools", func(sr chi.Router) {
		sr.Use(s.rateLimited)

		sr.Post("/", s.handleInitialize)
		sr.Route("/{pool}", func(pr chi.Router) {
			pr.Get("/", s.handlePool)
			pr.Get("/audit", s.handleAudit)
			pr.Get("/positions/{owner}", s.handleInfo)

			pr.Post("/stake", s.handleStake)
			pr.Post("/unstake", s.handleUnstake)
			pr.Post("/claim", s.handleClaim)
			pr.Post("/level", s.handleRefreshLevel)

			pr.Put("/thresholds", s.handleThresholds)
			pr.Put("/rates/{tier}", s.handleTierRate)
			pr.Put("/base-rate", s.handleBaseRate)
		})
	})

	if s.devLedger != nil {
		r.Route("/dev", func(sr chi.Router) {
			sr.Post("/credit", s.handleCredit)
			sr.Post("/transfer", s.handleTransfer)
			sr.Get("/balances/{account}", s.handleBalance)
		})
	}

	return r
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.rateLimit != nil && !s.rateLimit.Allow() {
			errorResponse(w, http.StatusTooManyRequests, "RateLimited", "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(startTime).String(),
		"version": "1.0.0",
		"configuration": map[string]interface{}{
			"store":              s.config.StoreBackend,
			"remote_ledger":      s.config.LedgerURL != "",
			"require_signatures": s.config.RequireSignatures,
		},
	}
	if s.breaker != nil {
		status["circuit_state"] = s.breaker.GetState().String()
	}
	if s.exporter != nil {
		status["event_export"] = s.exporter.Status()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	pool, err := s.host.Initialize(r.Context(), req.ID, req.Variant, actor)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pool)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	pool, err := s.host.Pool(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	report, err := s.host.Audit(r.Context(), chi.URLParam(r, "pool"))
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		engineError(w, err)
		return
	}
	info, err := s.host.Info(r.Context(), chi.URLParam(r, "pool"), owner)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	res, err := s.host.Stake(r.Context(), staking.StakeRequest{
		Pool:        chi.URLParam(r, "pool"),
		Owner:       actor,
		Amount:      req.Amount,
		LockSeconds: req.LockSeconds,
		LockMonths:  req.LockMonths,
	})
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	var req unstakeRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	pos, err := s.host.Unstake(r.Context(), chi.URLParam(r, "pool"), actor, req.Amount)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	var destination common.Address
	if req.Destination != "" {
		d, err := parseAddress(req.Destination)
		if err != nil {
			engineError(w, err)
			return
		}
		destination = d
	}
	reward, err := s.host.Claim(r.Context(), chi.URLParam(r, "pool"), actor, destination)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}

func (s *Server) handleRefreshLevel(w http.ResponseWriter, r *http.Request) {
	var req struct{}
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	level, changed, err := s.host.RefreshLevel(r.Context(), chi.URLParam(r, "pool"), actor)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level":   level.String(),
		"changed": changed,
	})
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	var req thresholdsRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	if len(req.Thresholds) != 3 {
		engineError(w, fmt.Errorf("%w: expected 3 thresholds, got %d", staking.ErrInvalidArgument, len(req.Thresholds)))
		return
	}
	pool, err := s.host.UpdateTierThresholds(r.Context(), chi.URLParam(r, "pool"), actor,
		[3]uint64{req.Thresholds[0], req.Thresholds[1], req.Thresholds[2]})
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleTierRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	level, err := model.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		engineError(w, fmt.Errorf("%w: %v", staking.ErrInvalidArgument, err))
		return
	}
	pool, err := s.host.UpdateTierRate(r.Context(), chi.URLParam(r, "pool"), actor, level, req.Rate)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleBaseRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	pool, err := s.host.UpdateBaseRate(r.Context(), chi.URLParam(r, "pool"), actor, req.Rate)
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

// handleCredit funds an account on the in-memory ledger
func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req creditRequest
	if _, ok := s.readSigned(w, r, &req); !ok {
		return
	}
	account, err := parseAddress(req.Account)
	if err != nil {
		engineError(w, err)
		return
	}
	if err := s.devLedger.Credit(account, req.Amount); err != nil {
		errorResponse(w, http.StatusUnprocessableEntity, "LedgerFailure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": s.devLedger.Balance(account)})
}

// handleTransfer moves tokens between accounts, burning the configured share
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	actor, ok := s.readSigned(w, r, &req)
	if !ok {
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		engineError(w, err)
		return
	}
	received, burned, err := s.devLedger.Transfer(r.Context(), actor, to, req.Amount)
	if err != nil {
		errorResponse(w, http.StatusUnprocessableEntity, "LedgerFailure", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"received": received,
		"burned":   burned,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(chi.URLParam(r, "account"))
	if err != nil {
		engineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{
		"balance":      s.devLedger.Balance(account),
		"total_supply": s.devLedger.TotalSupply(),
	})
}
