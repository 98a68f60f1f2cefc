package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/tiered-staking/internal/security"
	"github.com/yourorg/tiered-staking/internal/staking"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

var errBadActor = errors.New("missing or malformed X-Actor header")

// Response is the envelope for every API reply
type Response struct {
	StatusCode int         `json:"status_code"`
	Status     string      `json:"status"`
	Kind       string      `json:"kind,omitempty"`
	Error      string      `json:"error,omitempty"`
	Data       interface{} `json:"data,omitempty"`
}

// writeJSON sends a successful response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		StatusCode: statusCode,
		Status:     "success",
		Data:       data,
	})
}

// errorResponse sends an error response
func errorResponse(w http.ResponseWriter, statusCode int, kind, errorMsg string) {
	logrus.WithField("kind", kind).Warn(errorMsg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		StatusCode: statusCode,
		Status:     "error",
		Kind:       kind,
		Error:      errorMsg,
	})
}

// engineError maps an engine error onto an HTTP status
func engineError(w http.ResponseWriter, err error) {
	kind := staking.Kind(err)
	errorResponse(w, statusFor(kind), kind, err.Error())
}

func statusFor(kind string) int {
	switch kind {
	case "Unauthorized":
		return http.StatusForbidden
	case "PoolNotFound", "PositionNotFound":
		return http.StatusNotFound
	case "InvalidAmount", "InvalidArgument", "VariantMismatch":
		return http.StatusBadRequest
	case "PoolAlreadyInitialized":
		return http.StatusConflict
	case "LedgerFailure":
		return http.StatusBadGateway
	case "Internal":
		return http.StatusInternalServerError
	default:
		// InsufficientFunds, LockPeriodNotExpired, NoRewardsToClaim,
		// ArithmeticOverflow, ClockRegression
		return http.StatusUnprocessableEntity
	}
}

// parseAddress reads a hex account address
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: malformed address %q", staking.ErrInvalidArgument, s)
	}
	return common.HexToAddress(s), nil
}

// readSigned authenticates the caller and decodes the body into v. The actor
// comes from X-Actor. When signatures are in use X-Signature must cover the
// method, path, X-Nonce, X-Expiry and raw body, and the nonce must be new.
func (s *Server) readSigned(w http.ResponseWriter, r *http.Request, v interface{}) (common.Address, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "InvalidArgument", "Failed to read request body")
		return common.Address{}, false
	}

	actorHex := r.Header.Get("X-Actor")
	if !common.IsHexAddress(actorHex) {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized", errBadActor.Error())
		return common.Address{}, false
	}
	actor := common.HexToAddress(actorHex)

	var expiry int64
	if raw := r.Header.Get("X-Expiry"); raw != "" {
		expiry, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, "Unauthorized", "malformed X-Expiry header")
			return common.Address{}, false
		}
	}
	signed := security.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Nonce:  r.Header.Get("X-Nonce"),
		Expiry: expiry,
		Body:   body,
	}
	if err := s.verifier.Verify(actor, signed, r.Header.Get("X-Signature")); err != nil {
		errorResponse(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return common.Address{}, false
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return actor, true
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		errorResponse(w, http.StatusBadRequest, "InvalidArgument", fmt.Sprintf("Invalid request format: %v", err))
		return common.Address{}, false
	}
	return actor, true
}
