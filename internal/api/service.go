// Package api exposes the settlement books over HTTP and streams committed
// events to WebSocket clients.
//
// Amounts are decimal strings on the wire and 18-decimal fixed-point inside
// the engine; never float64 for money. The caller is identified by the
// X-Caller header.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/settlement-engine/internal/book"
	"github.com/atmx/settlement-engine/internal/fixed"
	"github.com/atmx/settlement-engine/internal/model"
	"github.com/atmx/settlement-engine/internal/store"
)

// CallerHeader carries the address a request acts for.
const CallerHeader = "X-Caller"

// Accounts is the token ledger surface the account routes need.
// *ledger.Memory implements it.
type Accounts interface {
	Balances(owner model.Address) map[model.Address]*big.Int
	Approve(tok, owner, spender model.Address, amount *big.Int) error
	Mint(tok, to model.Address, amount *big.Int) error
}

// Service handles book and agreement operations. Serialisation of
// transitions is the books' concern; handlers only translate.
type Service struct {
	books    *book.Registry
	store    store.Store
	accounts Accounts
	assets   map[string]model.Asset // by symbol
	symbols  map[model.Address]string
	faucet   bool
	logger   *slog.Logger
}

// NewService creates the HTTP service. accounts may be nil when no ledger is
// exposed; faucet enables the mint route.
func NewService(books *book.Registry, st store.Store, accounts Accounts, assets []model.Asset, faucet bool, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		books:    books,
		store:    st,
		accounts: accounts,
		assets:   make(map[string]model.Asset, len(assets)),
		symbols:  make(map[model.Address]string, len(assets)),
		faucet:   faucet && accounts != nil,
		logger:   logger.With("component", "api"),
	}
	for _, a := range assets {
		s.assets[a.Symbol] = a
		s.symbols[a.Address] = a.Symbol
	}
	return s
}

// Mount registers the JSON routes on r.
func (s *Service) Mount(r chi.Router) {
	r.Get("/books", s.ListBooks)
	r.Get("/books/{ticker}", s.GetBook)
	r.Get("/books/{ticker}/agreements", s.ListAgreements)
	r.Post("/books/{ticker}/agreements", s.CreateAgreement)

	r.Get("/agreements/{id}", s.GetAgreement)
	r.Get("/agreements/{id}/events", s.ListEvents)
	r.Post("/agreements/{id}/enter", s.Enter)
	r.Post("/agreements/{id}/resolve", s.Resolve)
	r.Post("/agreements/{id}/exercise", s.Exercise)
	r.Post("/agreements/{id}/reclaim", s.Reclaim)

	if s.accounts != nil {
		r.Get("/accounts/{address}", s.GetAccount)
		r.Post("/accounts/{address}/approve", s.Approve)
		if s.faucet {
			r.Post("/accounts/{address}/mint", s.Mint)
		}
	}
}

// --- Books ---

// ListBooks handles GET /api/v1/books
func (s *Service) ListBooks(w http.ResponseWriter, _ *http.Request) {
	books := s.books.List()
	out := make([]BookView, 0, len(books))
	for _, b := range books {
		out = append(out, bookView(b.Info(), false))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetBook handles GET /api/v1/books/{ticker}
func (s *Service) GetBook(w http.ResponseWriter, r *http.Request) {
	b, ok := s.book(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, bookView(b.Info(), true))
}

// ListAgreements handles GET /api/v1/books/{ticker}/agreements
// Reads the store mirror rather than the live book.
func (s *Service) ListAgreements(w http.ResponseWriter, r *http.Request) {
	b, ok := s.book(w, r)
	if !ok {
		return
	}
	mds, err := s.store.ListAgreements(r.Context(), b.Address())
	if err != nil {
		s.logger.Error("list agreements failed", "ticker", b.Ticker(), "err", err)
		writeError(w, "failed to list agreements", http.StatusInternalServerError)
		return
	}
	out := make([]AgreementView, 0, len(mds))
	for _, md := range mds {
		if status := r.URL.Query().Get("status"); status != "" && md.Status() != status {
			continue
		}
		out = append(out, agreementView(md))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateAgreement handles POST /api/v1/books/{ticker}/agreements
// Pulls the maker's deposit into a fresh instance and funds it.
func (s *Service) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	b, ok := s.book(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}

	var req CreateAgreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.Side != model.SideLong && req.Side != model.SideShort {
		writeError(w, "side must be long or short", http.StatusBadRequest)
		return
	}
	if !req.Size.IsPositive() || !req.Collateral.IsPositive() {
		writeError(w, "size and collateral must be positive", http.StatusBadRequest)
		return
	}
	if req.Premium.IsNegative() {
		writeError(w, "premium must not be negative", http.StatusBadRequest)
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil || duration <= 0 {
		writeError(w, "duration must be a positive Go duration such as \"24h\"", http.StatusBadRequest)
		return
	}

	var premium *big.Int
	if req.Premium.IsPositive() {
		premium = fixed.FromDecimal(req.Premium)
	}
	md, err := b.Create(r.Context(), caller, book.CreateRequest{
		Side:       req.Side,
		Params:     req.Params.model(),
		Size:       fixed.FromDecimal(req.Size),
		Premium:    premium,
		Collateral: fixed.FromDecimal(req.Collateral),
		Duration:   duration,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agreementView(md))
}

// --- Agreements ---

// GetAgreement handles GET /api/v1/agreements/{id}
func (s *Service) GetAgreement(w http.ResponseWriter, r *http.Request) {
	b, id, ok := s.owner(w, r)
	if !ok {
		return
	}
	md, err := b.Metadata(id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agreementView(md))
}

// ListEvents handles GET /api/v1/agreements/{id}/events
// Reads the event log from the store mirror.
func (s *Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	_, id, ok := s.owner(w, r)
	if !ok {
		return
	}
	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("list events failed", "id", id.Hex(), "err", err)
		writeError(w, "failed to list events", http.StatusInternalServerError)
		return
	}
	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// Enter handles POST /api/v1/agreements/{id}/enter
func (s *Service) Enter(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*book.Book).Enter)
}

// Resolve handles POST /api/v1/agreements/{id}/resolve
func (s *Service) Resolve(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*book.Book).Resolve)
}

// Reclaim handles POST /api/v1/agreements/{id}/reclaim
// Futures and genies are resolved first when needed; options skip the oracle.
func (s *Service) Reclaim(w http.ResponseWriter, r *http.Request) {
	s.simple(w, r, (*book.Book).ResolveAndReclaim)
}

// Exercise handles POST /api/v1/agreements/{id}/exercise
// Resolves first when needed, then settles and refunds the maker.
func (s *Service) Exercise(w http.ResponseWriter, r *http.Request) {
	b, id, ok := s.owner(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	md, payout, err := b.ResolveAndExercise(r.Context(), caller, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SettlementResponse{
		Agreement: agreementView(md),
		Payout:    fixed.ToDecimal(payout),
	})
}

type transitionFunc = func(b *book.Book, ctx context.Context, caller, id model.Address) (model.Metadata, error)

func (s *Service) simple(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	b, id, ok := s.owner(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	md, err := fn(b, r.Context(), caller, id)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agreementView(md))
}

// --- Accounts ---

// GetAccount handles GET /api/v1/accounts/{address}
func (s *Service) GetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := s.address(w, r)
	if !ok {
		return
	}
	view := AccountView{Address: addr, Balances: make(map[string]decimal.Decimal)}
	for tok, bal := range s.accounts.Balances(addr) {
		name, ok := s.symbols[tok]
		if !ok {
			name = tok.Hex()
		}
		view.Balances[name] = fixed.ToDecimal(bal)
	}
	writeJSON(w, http.StatusOK, view)
}

// Approve handles POST /api/v1/accounts/{address}/approve
// Only the owner may approve spending of its own balance.
func (s *Service) Approve(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.address(w, r)
	if !ok {
		return
	}
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	if caller != owner {
		writeError(w, "caller may only approve its own balance", http.StatusForbidden)
		return
	}

	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	asset, ok := s.assets[strings.ToUpper(req.Asset)]
	if !ok {
		writeError(w, "unknown asset: "+req.Asset, http.StatusBadRequest)
		return
	}
	spender, ok := s.spender(req.Spender)
	if !ok {
		writeError(w, "spender must be a book ticker or an address", http.StatusBadRequest)
		return
	}
	if req.Amount.IsNegative() {
		writeError(w, "amount must not be negative", http.StatusBadRequest)
		return
	}

	if err := s.accounts.Approve(asset.Address, owner, spender, fixed.FromDecimal(req.Amount)); err != nil {
		writeFailure(w, err)
		return
	}
	s.logger.Info("allowance set",
		"owner", owner.Hex(),
		"spender", spender.Hex(),
		"asset", asset.Symbol,
		"amount", req.Amount.String(),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"owner":   owner,
		"spender": spender,
		"asset":   asset.Symbol,
		"amount":  req.Amount,
	})
}

// Mint handles POST /api/v1/accounts/{address}/mint
// Development faucet; only registered when enabled in config.
func (s *Service) Mint(w http.ResponseWriter, r *http.Request) {
	to, ok := s.address(w, r)
	if !ok {
		return
	}
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	asset, ok := s.assets[strings.ToUpper(req.Asset)]
	if !ok {
		writeError(w, "unknown asset: "+req.Asset, http.StatusBadRequest)
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, "amount must be positive", http.StatusBadRequest)
		return
	}
	if err := s.accounts.Mint(asset.Address, to, fixed.FromDecimal(req.Amount)); err != nil {
		writeFailure(w, err)
		return
	}
	s.logger.Info("faucet mint", "to", to.Hex(), "asset", asset.Symbol, "amount", req.Amount.String())
	s.GetAccount(w, r)
}

// --- Request helpers ---

func (s *Service) book(w http.ResponseWriter, r *http.Request) (*book.Book, bool) {
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	b, ok := s.books.Get(ticker)
	if !ok {
		writeError(w, "book not found: "+ticker, http.StatusNotFound)
	}
	return b, ok
}

// owner finds the book holding the agreement named by the {id} parameter.
func (s *Service) owner(w http.ResponseWriter, r *http.Request) (*book.Book, model.Address, bool) {
	raw := chi.URLParam(r, "id")
	if !common.IsHexAddress(raw) {
		writeError(w, "agreement id must be a hex address", http.StatusBadRequest)
		return nil, model.Address{}, false
	}
	id := common.HexToAddress(raw)
	b, err := s.books.Owner(id)
	if err != nil {
		writeFailure(w, err)
		return nil, id, false
	}
	return b, id, true
}

func (s *Service) caller(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	raw := r.Header.Get(CallerHeader)
	if !common.IsHexAddress(raw) {
		writeError(w, fmt.Sprintf("%s header must be a hex address", CallerHeader), http.StatusBadRequest)
		return model.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Service) address(w http.ResponseWriter, r *http.Request) (model.Address, bool) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeError(w, "address must be hex", http.StatusBadRequest)
		return model.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func (s *Service) spender(v string) (model.Address, bool) {
	if b, ok := s.books.Get(strings.ToUpper(v)); ok {
		return b.Address(), true
	}
	if common.IsHexAddress(v) {
		return common.HexToAddress(v), true
	}
	return model.Address{}, false
}
