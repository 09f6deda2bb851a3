package http

import (
	"log/slog"
	"net/http"
	"strconv"

	"pocketmoney/internal/core"
	"pocketmoney/internal/ledger"
)

// mutationInputFromForm reads the shared mutation fields out of a posted
// form. ParseForm must have been called already.
func mutationInputFromForm(r *http.Request) ledger.MutationInput {
	return ledger.MutationInput{
		Account:    sanitizeInput(r.FormValue("account")),
		Amount:     sanitizeInput(r.FormValue("amount")),
		Direction:  sanitizeInput(r.FormValue("direction")),
		Reason:     sanitizeInput(r.FormValue("reason")),
		Credential: r.FormValue("secret"),
	}
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form data").Write(w)
		return
	}

	in := mutationInputFromForm(r)
	tx, err := s.ledger.Create(r.Context(), in)
	if err != nil {
		slog.WarnContext(r.Context(), "Create transaction rejected", "error", err, "account", in.Account)
		DomainErrorResponse(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction created",
		"id", tx.ID, "account", tx.Account, "amount", tx.Amount.Decimal())

	NewHTMXResponse().
		TriggerLedgerChanged(tx.Account).
		BodyHTML(`<div class="success">Saved</div>`).
		Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		MethodNotAllowedError("POST").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form data").Write(w)
		return
	}

	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(http.StatusBadRequest, "Invalid transaction id").Write(w)
		return
	}

	in := mutationInputFromForm(r)
	tx, err := s.ledger.Update(r.Context(), id, in)
	if err != nil {
		slog.WarnContext(r.Context(), "Update transaction rejected", "error", err, "id", id)
		DomainErrorResponse(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction updated",
		"id", tx.ID, "account", tx.Account, "amount", tx.Amount.Decimal())

	NewHTMXResponse().
		// An update may move value between accounts, refresh both sides.
		TriggerLedgerChanged(core.Accounts()...).
		BodyHTML(`<div class="success">Updated</div>`).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		MethodNotAllowedError("POST, DELETE").Write(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrorResponse(http.StatusBadRequest, "Invalid form data").Write(w)
		return
	}

	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil || id <= 0 {
		ErrorResponse(http.StatusBadRequest, "Invalid transaction id").Write(w)
		return
	}

	if err := s.ledger.Delete(r.Context(), id, r.FormValue("secret")); err != nil {
		slog.WarnContext(r.Context(), "Delete transaction rejected", "error", err, "id", id)
		DomainErrorResponse(err).Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Transaction deleted", "id", id)

	NewHTMXResponse().
		TriggerLedgerChanged(core.Accounts()...).
		BodyHTML(`<div class="success">Deleted</div>`).
		Write(w)
}
