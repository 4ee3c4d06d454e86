package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"token-ledger/internal/domain"
	"token-ledger/internal/identity"
	"token-ledger/internal/ledger"
	"token-ledger/internal/observability"
	"token-ledger/internal/oplog"
	"token-ledger/internal/storage"
)

const (
	maxOperationBody  = 1 << 20
	defaultEventLimit = 100
	maxEventLimit     = 1000
)

// OperationResponse acknowledges an applied operation. Token is set
// only for CREATE.
type OperationResponse struct {
	Status string          `json:"status"`
	Token  *domain.TokenID `json:"token,omitempty"`
}

// StatusResponse reports process health for /status.
type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	TokenCount      uint32 `json:"token_count"`
	LastEventSeq    uint64 `json:"last_event_seq"`
	FeedSubscribers int    `json:"feed_subscribers"`
}

func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxOperationBody)

	var op domain.Operation
	if err := json.NewDecoder(r.Body).Decode(&op); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode operation: %w", err))
		return
	}

	if err := identity.VerifyOperation(op); err != nil {
		observability.RecordAuthFailure()
		status := http.StatusUnauthorized
		if errors.Is(err, identity.ErrInvalidAccountID) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	id, err := s.ledger.Apply(r.Context(), op)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if s.oplog != nil {
		rec := oplog.Record{At: time.Now().UnixMilli(), Op: op}
		if err := s.oplog.Append(rec); err != nil {
			// The operation is already committed; losing the log entry
			// must not fail the request.
			s.logger.Printf("[server] oplog append failed: %v", err)
		}
	}

	resp := OperationResponse{Status: "applied"}
	if op.Kind == domain.OpCreate {
		resp.Token = &id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.ledger.Tokens(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	count, err := s.ledger.TokenCount(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  count,
		"tokens": tokens,
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDPath(w, r)
	if !ok {
		return
	}
	info, err := s.ledger.Token(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	supply, err := s.ledger.SupplyOf(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	paused, err := s.ledger.IsPaused(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  info,
		"supply": supply,
		"paused": paused,
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDPath(w, r)
	if !ok {
		return
	}
	balances, err := s.ledger.Balances(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":    id,
		"balances": balances,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDPath(w, r)
	if !ok {
		return
	}
	account := domain.AccountID(r.PathValue("account"))
	amount, err := s.ledger.BalanceOf(r.Context(), id, account)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   id,
		"account": account,
		"amount":  amount,
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	id, ok := tokenIDPath(w, r)
	if !ok {
		return
	}
	owner := domain.AccountID(r.PathValue("owner"))
	spender := domain.AccountID(r.PathValue("spender"))
	amount, err := s.ledger.AllowanceOf(r.Context(), id, owner, spender)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":   id,
		"owner":   owner,
		"spender": spender,
		"amount":  amount,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	after, err := queryUint(r, "after", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, err := queryUint(r, "limit", defaultEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	evs, err := s.ledger.Events(r.Context(), after, int(limit))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	lastSeq, err := s.ledger.LastEventSeq(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events":   evs,
		"last_seq": lastSeq,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.ledger.TokenCount(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	lastSeq, err := s.ledger.LastEventSeq(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	subscribers := 0
	if s.bus != nil {
		subscribers = s.bus.Subscribers()
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Status:          "ok",
		Uptime:          time.Since(s.started).Round(time.Second).String(),
		TokenCount:      count,
		LastEventSeq:    lastSeq,
		FeedSubscribers: subscribers,
	})
}

// tokenIDPath parses the {id} path segment, answering 400 itself when
// it is malformed.
func tokenIDPath(w http.ResponseWriter, r *http.Request) (domain.TokenID, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid token id %q", raw))
		return 0, false
	}
	return domain.TokenID(id), true
}

func queryUint(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

// statusFor maps ledger and storage failures to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotTokenOwner):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInsufficientAmount),
		errors.Is(err, ledger.ErrArithmeticOverflow),
		errors.Is(err, ledger.ErrInsufficientApproval):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to send.
		return
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
