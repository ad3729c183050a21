package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/paywatch/internal/checkout"
	"github.com/roach88/paywatch/internal/ledger"
	"github.com/roach88/paywatch/internal/payload"
	"github.com/roach88/paywatch/internal/pending"
)

const (
	defaultEventLimit = 50
	maxBodyBytes      = 1 << 20
)

type payRequest struct {
	Owner    string          `json:"owner"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload"`
	Payment  paymentRequest  `json:"payment"`
	CheckNow bool            `json:"check_now"`
}

// paymentRequest carries either Amount in the smallest unit or
// DisplayAmount in whole units ("12.5").
type paymentRequest struct {
	Amount        int64             `json:"amount,omitempty"`
	DisplayAmount string            `json:"display_amount,omitempty"`
	Currency      string            `json:"currency"`
	Recipient     string            `json:"recipient"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	// SignedTx is the wallet-signed transaction, hex encoded CBOR.
	SignedTx string `json:"signed_tx"`
}

func (p paymentRequest) toPayment() (ledger.Payment, error) {
	info, err := ledger.LookupCurrency(p.Currency)
	if err != nil {
		return ledger.Payment{}, err
	}
	amount := p.Amount
	if p.DisplayAmount != "" {
		if amount != 0 {
			return ledger.Payment{}, fmt.Errorf("set amount or display_amount, not both")
		}
		if amount, err = ledger.ParseAmount(p.DisplayAmount, info.Code); err != nil {
			return ledger.Payment{}, err
		}
	}
	signed, err := hex.DecodeString(p.SignedTx)
	if err != nil {
		return ledger.Payment{}, fmt.Errorf("signed_tx: %w", err)
	}
	return ledger.Payment{
		Amount:    amount,
		Currency:  info.Code,
		Recipient: p.Recipient,
		Metadata:  p.Metadata,
		SignedTx:  signed,
	}, nil
}

type operationResponse struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	Owner       string          `json:"owner"`
	TxRef       string          `json:"tx_ref"`
	State       string          `json:"state"`
	SubmittedAt time.Time       `json:"submitted_at"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"last_error,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func toResponse(op pending.Operation) (operationResponse, error) {
	raw, err := payload.Marshal(op.Payload)
	if err != nil {
		return operationResponse{}, err
	}
	return operationResponse{
		ID:          string(op.ID),
		Kind:        string(op.Kind),
		Owner:       op.Owner,
		TxRef:       op.TxRef,
		State:       string(op.State),
		SubmittedAt: op.SubmittedAt.UTC(),
		Attempts:    op.Attempts,
		LastError:   op.LastError,
		Payload:     raw,
	}, nil
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	TxRef   string   `json:"tx_ref,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req payRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse request: %v", err), nil)
		return
	}

	kind, err := payload.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	p, err := payload.DecodeJSON(kind, req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	payment, err := req.Payment.toPayment()
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid payment: %v", err), nil)
		return
	}

	receipt, err := s.payer.Pay(r.Context(), checkout.Request{
		Owner:    req.Owner,
		Kind:     kind,
		Payload:  p,
		Payment:  payment,
		CheckNow: req.CheckNow,
	})
	if err != nil {
		s.writePayError(w, receipt, err)
		return
	}

	resp, err := toResponse(receipt.Operation)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	resp.State = string(receipt.State)
	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) writePayError(w http.ResponseWriter, receipt checkout.Receipt, err error) {
	var verr *payload.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid payload", verr.Details)
	case errors.Is(err, checkout.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case checkout.IsSubmissionError(err):
		writeError(w, http.StatusBadGateway, err.Error(), nil)
	default:
		// Submitted but not tracked: the caller needs the reference.
		s.logger.Error("pay failed after submission", "tx_ref", receipt.Operation.TxRef, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			TxRef: receipt.Operation.TxRef,
		})
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	ops, err := s.ops.ListOperations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	out := make([]operationResponse, 0, len(ops))
	for _, op := range ops {
		resp, err := toResponse(op)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error(), nil)
			return
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}

// operationID builds the id from the {kind} and {owner} path parameters.
func operationID(r *http.Request) (pending.ID, error) {
	kind, err := payload.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		return "", err
	}
	return pending.NewID(kind, chi.URLParam(r, "owner")), nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	op, found, err := s.ops.GetOperation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no pending operation %s", id), nil)
		return
	}
	resp, err := toResponse(op)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := operationID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	_, found, err := s.ops.GetOperation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no pending operation %s", id), nil)
		return
	}
	if err := s.ops.RemoveOperation(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	s.logger.Info("pending operation removed by admin",
		"operation_id", id,
		"admin", r.Header.Get(AdminHeader),
	)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.events.Recent(limit))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.ops.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
