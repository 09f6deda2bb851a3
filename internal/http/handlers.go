package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pocketmoney/internal/core"
)

const defaultListLimit = 50

// txView is the template-facing shape of a transaction.
type txView struct {
	ID      int64
	Account string
	Amount  string
	Debit   bool
	Reason  string
	When    string
	// Raw form values for the inline edit form
	RawAmount string
}

// balanceView pairs an account with its formatted balance.
type balanceView struct {
	Account string
	Amount  string
	Debit   bool
}

// txListData feeds the transactions partial. Accounts populates the account
// selector of the inline edit forms.
type txListData struct {
	Transactions []txView
	Editable     bool
	Accounts     []core.Account
}

func toTxView(t core.Transaction) txView {
	return txView{
		ID:        t.ID,
		Account:   string(t.Account),
		Amount:    formatEuros(t.Amount.Cents),
		Debit:     t.Amount.Cents < 0,
		Reason:    t.Reason,
		When:      t.CreatedAt.Local().Format("02 Jan 2006 15:04"),
		RawAmount: t.Amount.Decimal(),
	}
}

func toTxViews(txs []core.Transaction) []txView {
	views := make([]txView, len(txs))
	for i, t := range txs {
		views[i] = toTxView(t)
	}
	return views
}

func toBalanceViews(balances map[core.Account]core.Money) []balanceView {
	views := make([]balanceView, 0, len(balances))
	for _, a := range core.Accounts() {
		bal := balances[a]
		views = append(views, balanceView{
			Account: string(a),
			Amount:  formatEuros(bal.Cents),
			Debit:   bal.Cents < 0,
		})
	}
	return views
}

// handleAdmin renders the admin page: create form, balances, and the recent
// transactions table with edit/delete controls.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	balances, err := s.ledger.Balances(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Balances error", "error", err)
		http.Error(w, messageForError(err), statusForError(err))
		return
	}
	recent, err := s.ledger.ListRecent(r.Context(), defaultListLimit)
	if err != nil {
		slog.ErrorContext(r.Context(), "List recent error", "error", err)
		http.Error(w, messageForError(err), statusForError(err))
		return
	}

	data := struct {
		Accounts    []core.Account
		Balances    []balanceView
		List        txListData
		GateEnabled bool
	}{
		Accounts:    core.Accounts(),
		Balances:    toBalanceViews(balances),
		List:        txListData{Transactions: toTxViews(recent), Editable: true, Accounts: core.Accounts()},
		GateEnabled: s.ledger.Gate().Enabled(),
	}

	if err := s.templates.ExecuteTemplate(w, "admin.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Admin template execution failed", "error", err, "template", "admin.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleStatement renders the read-only statement page for one account.
// Unknown accounts get a plain 404: the page namespace only contains the
// two real statements.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	account := strings.TrimPrefix(r.URL.Path, "/statement/")
	if strings.Contains(account, "/") {
		http.NotFound(w, r)
		return
	}

	balance, err := s.ledger.Balance(r.Context(), account)
	if err != nil {
		if errors.Is(err, core.ErrInvalidAccount) || errors.Is(err, core.ErrMissingField) {
			http.NotFound(w, r)
			return
		}
		slog.ErrorContext(r.Context(), "Statement balance error", "error", err, "account", account)
		http.Error(w, messageForError(err), statusForError(err))
		return
	}

	txs, err := s.ledger.ListTransactions(r.Context(), account, 0)
	if err != nil {
		slog.ErrorContext(r.Context(), "Statement list error", "error", err, "account", account)
		http.Error(w, messageForError(err), statusForError(err))
		return
	}

	data := struct {
		Account      string
		Balance      string
		Debit        bool
		Transactions []txView
	}{
		Account:      account,
		Balance:      formatEuros(balance.Cents),
		Debit:        balance.Cents < 0,
		Transactions: toTxViews(txs),
	}

	if err := s.templates.ExecuteTemplate(w, "statement.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Statement template execution failed", "error", err, "account", account)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleBalances renders the balances partial, one query for all accounts.
func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	balances, err := s.ledger.Balances(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Balances partial error", "error", err)
		w.WriteHeader(statusForError(err))
		_, _ = w.Write([]byte(`<div class="error">Could not load balances</div>`))
		return
	}

	if err := s.renderPartial(r.Context(), w, "balances.html", toBalanceViews(balances)); err != nil {
		_, _ = w.Write([]byte(`<div class="error">Could not render balances</div>`))
	}
}

// handleTransactions renders a transaction list partial. With an account
// query parameter it lists that account's history; without one it lists the
// most recent transactions across all accounts.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	limit := defaultListLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		txs []core.Transaction
		err error
	)
	account := strings.TrimSpace(r.URL.Query().Get("account"))
	if account != "" {
		txs, err = s.ledger.ListTransactions(r.Context(), account, limit)
	} else {
		txs, err = s.ledger.ListRecent(r.Context(), limit)
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Transactions partial error", "error", err, "account", account)
		w.WriteHeader(statusForError(err))
		_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(messageForError(err)) + `</div>`))
		return
	}

	data := txListData{
		Transactions: toTxViews(txs),
		Editable:     account == "", // the admin list spans accounts
		Accounts:     core.Accounts(),
	}
	if err := s.renderPartial(r.Context(), w, "transactions.html", data); err != nil {
		_, _ = w.Write([]byte(`<div class="error">Could not render transactions</div>`))
	}
}

func (s *Server) renderPartial(ctx context.Context, w http.ResponseWriter, name string, data any) error {
	if s.templates == nil {
		return fmt.Errorf("templates not loaded")
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(ctx, "Partial template execution failed", "error", err, "template", name)
		return err
	}
	return nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"euros": formatEuros,
	}
}

func formatEuros(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	euros := cents / 100
	rem := cents % 100
	s := strconv.FormatInt(euros, 10) + "," + fmt.Sprintf("%02d", rem)
	if neg {
		return "-€" + s
	}
	return "€" + s
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1 // remove character
		}
		return r
	}, s)
	return result
}
