/*
handlers.go - HTTP handlers for the lending API

PURPOSE:
  Thin adapters between HTTP and the lending engine. Each handler decodes
  and validates the request, calls one Engine operation and renders the
  result. No lending rule lives here.

ERROR MAPPING (writeDomainError):
  lending.IsNotFound                     404 Not Found
  lending.IsConflict                     409 Conflict
  lending.IsRuleViolation                422 Unprocessable Entity
  ErrInvalidInput, ErrAmbiguous          400 Bad Request
  ErrPersist                             503 Service Unavailable
  anything else                          500

READING STATE:
  Engine mutations return live records. Handlers render them inside
  Engine.View so the JSON never races a concurrent request.

SEE ALSO:
  - server.go: Routes
  - dto.go:    Request/response types
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/warp/lending-engine/identity"
	"github.com/warp/lending-engine/lending"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// HistorySource lists stored snapshot revisions, newest first. Only a
// gateway that keeps history can back it.
type HistorySource interface {
	History(ctx context.Context, limit int) ([]RevisionDTO, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine  *lending.Engine
	State   *lending.State
	History HistorySource // nil when the gateway keeps no history

	validate *validator.Validate

	// Track the last loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler serving st through eng.
func NewHandler(eng *lending.Engine, st *lending.State) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Engine: eng, State: st, validate: v}
}

// =============================================================================
// RESOURCE HANDLERS
// =============================================================================

// ListResources returns the catalog, optionally filtered by ?kind=.
// GET /api/resources
func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	kind := lending.Kind(r.URL.Query().Get("kind"))
	dtos := []ResourceDTO{}
	_ = h.Engine.View(h.State, func(st *lending.State) error {
		for _, res := range st.Catalog.List() {
			if kind == "" || res.Kind() == kind {
				dtos = append(dtos, toResourceDTO(res))
			}
		}
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

// GetResource returns one resource.
// GET /api/resources/{id}
func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	h.renderResource(w, http.StatusOK, chi.URLParam(r, "id"))
}

func (h *Handler) renderResource(w http.ResponseWriter, status int, id string) {
	var dto ResourceDTO
	err := h.Engine.View(h.State, func(st *lending.State) error {
		res, err := st.Catalog.Get(id)
		if err != nil {
			return err
		}
		dto = toResourceDTO(res)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, dto)
}

// SearchResources narrows the catalog one field at a time.
// GET /api/resources/search?kind=book&title=..&author=..&publisher=..
// GET /api/resources/search?kind=magazine&name=..&publisher=..&publication_date=YYYY-MM
// GET /api/resources/search?kind=movie&title=..&publication_date=YYYY-MM-DD
func (h *Handler) SearchResources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var out SearchDTO
	err := h.Engine.View(h.State, func(st *lending.State) error {
		var (
			found  []lending.Resource
			unique lending.Resource
		)
		switch lending.Kind(q.Get("kind")) {
		case lending.KindBook:
			n := st.Catalog.Books().
				Where("title", q.Get("title"), lending.BookTitle).
				Where("author", q.Get("author"), lending.BookAuthor).
				Where("publisher", q.Get("publisher"), lending.BookPublisher)
			for _, b := range n.Candidates() {
				found = append(found, b)
			}
			if b, err := n.Unique(); err == nil {
				unique = b
			}
		case lending.KindMagazine:
			n := st.Catalog.Magazines().
				Where("name", q.Get("name"), lending.MagazineName).
				Where("publisher", q.Get("publisher"), lending.MagazinePublisher).
				Where("publication_date", q.Get("publication_date"), lending.MagazineIssue)
			for _, m := range n.Candidates() {
				found = append(found, m)
			}
			if m, err := n.Unique(); err == nil {
				unique = m
			}
		case lending.KindMovie:
			n := st.Catalog.Movies().
				Where("title", q.Get("title"), lending.MovieTitle).
				Where("publication_date", q.Get("publication_date"), lending.MovieDate)
			for _, m := range n.Candidates() {
				found = append(found, m)
			}
			if m, err := n.Unique(); err == nil {
				unique = m
			}
		default:
			return &lending.InputError{Field: "kind", Value: q.Get("kind"), Reason: "must be book, magazine or movie"}
		}

		out.Candidates = make([]ResourceDTO, 0, len(found))
		for _, res := range found {
			out.Candidates = append(out.Candidates, toResourceDTO(res))
		}
		if unique != nil {
			out.UniqueID = unique.ID()
		}
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateBook adds a book.
// POST /api/resources/books
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !h.decode(w, r, &req) {
		return
	}
	b, err := h.Engine.AddBook(r.Context(), h.State, lending.BookInput{
		Description: req.Description,
		Author:      req.Author,
		Title:       req.Title,
		Publisher:   req.Publisher,
		Copies:      req.Copies,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusCreated, b.ID())
}

// CreateMagazine adds a magazine issue.
// POST /api/resources/magazines
func (h *Handler) CreateMagazine(w http.ResponseWriter, r *http.Request) {
	var req CreateMagazineRequest
	if !h.decode(w, r, &req) {
		return
	}
	issue, err := lending.ParseYearMonth(req.PublicationDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.Engine.AddMagazine(r.Context(), h.State, lending.MagazineInput{
		Description:     req.Description,
		Name:            req.Name,
		PublicationDate: issue,
		Publisher:       req.Publisher,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusCreated, m.ID())
}

// CreateMovie adds a movie.
// POST /api/resources/movies
func (h *Handler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	var req CreateMovieRequest
	if !h.decode(w, r, &req) {
		return
	}
	date, err := lending.ParseDate(req.PublicationDate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	m, err := h.Engine.AddMovie(r.Context(), h.State, lending.MovieInput{
		Description:     req.Description,
		Title:           req.Title,
		PrincipalCast:   req.PrincipalCast,
		SecondaryCast:   req.SecondaryCast,
		PublicationDate: date,
		LibraryCopy:     req.LibraryCopy,
		LoanCopy:        req.LoanCopy,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusCreated, m.ID())
}

// AddCopies appends copies to a book.
// POST /api/resources/{id}/copies
func (h *Handler) AddCopies(w http.ResponseWriter, r *http.Request) {
	var req AddCopiesRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Engine.AddCopiesToBook(r.Context(), h.State, id, req.Count); err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusOK, id)
}

// SetMovieCopies declares which movie copies exist.
// PUT /api/resources/{id}/copies
func (h *Handler) SetMovieCopies(w http.ResponseWriter, r *http.Request) {
	var req SetMovieCopiesRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Engine.SetMovieCopies(r.Context(), h.State, id, req.LibraryCopy, req.LoanCopy); err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusOK, id)
}

// RemoveCopy removes one book copy (by sequence) or movie copy (by role).
// DELETE /api/resources/{id}/copies/{copy}
func (h *Handler) RemoveCopy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref, err := lending.ParseResourceRef(id + "#" + chi.URLParam(r, "copy"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.Engine.RemoveCopy(r.Context(), h.State, ref); err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderResource(w, http.StatusOK, id)
}

// DeleteResource removes a resource with no busy units.
// DELETE /api/resources/{id}
func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.RemoveResource(r.Context(), h.State, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStatus returns unit counts for the whole catalog.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	report := h.Engine.Status(h.State)
	dto := CatalogStatusDTO{Resources: []ResourceStatusDTO{}, Totals: toStatusDTO(report.Totals)}
	for _, s := range report.Resources {
		dto.Resources = append(dto.Resources, ResourceStatusDTO{
			ID:        s.ID,
			Kind:      string(s.Kind),
			Label:     s.Label,
			StatusDTO: toStatusDTO(s),
		})
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PATRON HANDLERS
// =============================================================================

// ListPatrons returns members then casual users.
// GET /api/patrons
func (h *Handler) ListPatrons(w http.ResponseWriter, r *http.Request) {
	dtos := []PatronDTO{}
	_ = h.Engine.View(h.State, func(st *lending.State) error {
		for _, m := range st.Registry.Members() {
			dtos = append(dtos, toPatronDTO(m))
		}
		for _, u := range st.Registry.CasualUsers() {
			dtos = append(dtos, toPatronDTO(u))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterMember enrols a member.
// POST /api/patrons/members
func (h *Handler) RegisterMember(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatronRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.Engine.RegisterMember(r.Context(), h.State, req.person())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderPatron(w, http.StatusCreated, m.NationalID)
}

// RegisterCasualUser records a walk-in patron.
// POST /api/patrons/casual
func (h *Handler) RegisterCasualUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterPatronRequest
	if !h.decode(w, r, &req) {
		return
	}
	u, err := h.Engine.RegisterCasualUser(r.Context(), h.State, req.person())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.renderPatron(w, http.StatusCreated, u.NationalID)
}

func (req RegisterPatronRequest) person() lending.Person {
	return lending.Person{NationalID: req.NationalID, Name: req.Name, Phone: req.Phone, Address: req.Address}
}

// GetPatron returns a patron by national ID.
// GET /api/patrons/{nid}
func (h *Handler) GetPatron(w http.ResponseWriter, r *http.Request) {
	h.renderPatron(w, http.StatusOK, chi.URLParam(r, "nid"))
}

func (h *Handler) renderPatron(w http.ResponseWriter, status int, nationalID string) {
	var dto PatronDTO
	err := h.Engine.View(h.State, func(st *lending.State) error {
		p, err := st.Registry.FindByNationalID(nationalID)
		if err != nil {
			return err
		}
		dto = toPatronDTO(p)
		return nil
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, status, dto)
}

// DeletePatron removes a member or casual user with no open holdings.
// DELETE /api/patrons/{nid}
func (h *Handler) DeletePatron(w http.ResponseWriter, r *http.Request) {
	nid := chi.URLParam(r, "nid")
	var member bool
	err := h.Engine.View(h.State, func(st *lending.State) error {
		p, err := st.Registry.FindByNationalID(nid)
		if err != nil {
			return err
		}
		member = p.IsMember()
		return nil
	})
	if err == nil {
		if member {
			err = h.Engine.DeleteMember(r.Context(), h.State, nid)
		} else {
			err = h.Engine.DeleteCasualUser(r.Context(), h.State, nid)
		}
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHoldings lists what a patron has out.
// GET /api/patrons/{nid}/holdings
func (h *Handler) GetHoldings(w http.ResponseWriter, r *http.Request) {
	hold, err := h.Engine.Holdings(h.State, chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	today := h.Engine.Today()
	dto := HoldingsDTO{
		Patron: PatronDTO{
			NationalID:   hold.Patron.NationalID,
			Name:         hold.Patron.Name,
			Phone:        hold.Patron.Phone,
			Address:      hold.Patron.Address,
			Member:       hold.MemberNumber != "",
			MemberNumber: hold.MemberNumber,
		},
		Loans: []LoanDTO{},
	}
	for _, l := range hold.Loans {
		ld := toLoanDTO(l.LoanRecord, today)
		ld.Label = l.Label
		days := l.DaysUntilDue
		ld.DaysUntilDue = &days
		dto.Patron.OpenLoans = append(dto.Patron.OpenLoans, l.ID)
		dto.Loans = append(dto.Loans, ld)
	}
	if c := hold.Consultation; c != nil {
		cd := toConsultationDTO(c.ConsultationRecord)
		cd.Label = c.Label
		dto.Consultation = &cd
		dto.Patron.OpenConsultation = c.ID
	}
	writeJSON(w, http.StatusOK, dto)
}

// ReturnAll returns every holding of a patron, item by item.
// POST /api/patrons/{nid}/return-all
func (h *Handler) ReturnAll(w http.ResponseWriter, r *http.Request) {
	outcomes, err := h.Engine.ReturnAll(r.Context(), h.State, chi.URLParam(r, "nid"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ReturnOutcomeDTO, 0, len(outcomes))
	for _, o := range outcomes {
		d := ReturnOutcomeDTO{Reference: o.Reference}
		if o.Err != nil {
			d.Error = o.Err.Error()
		} else {
			rd := toReceiptDTO(o.Receipt)
			d.Receipt = &rd
		}
		dtos = append(dtos, d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LOAN / CONSULTATION / RETURN HANDLERS
// =============================================================================

// OpenLoan lends a unit to a member.
// POST /api/loans
func (h *Handler) OpenLoan(w http.ResponseWriter, r *http.Request) {
	var req OpenHoldingRequest
	if !h.decode(w, r, &req) {
		return
	}
	loan, err := h.Engine.OpenLoan(r.Context(), h.State, req.NationalID, req.ResourceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLoanDTO(loan, h.Engine.Today()))
}

// ListLoans returns loans filtered by ?status=open (default), overdue or all.
// GET /api/loans
func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	today := h.Engine.Today()
	var loans []lending.LoanRecord
	switch status := r.URL.Query().Get("status"); status {
	case "", "open":
		loans = h.Engine.OpenLoans(h.State)
	case "overdue":
		loans = h.Engine.OverdueLoans(h.State, today)
	case "all":
		_ = h.Engine.View(h.State, func(st *lending.State) error {
			for _, l := range st.Loans.All() {
				loans = append(loans, *l)
			}
			return nil
		})
	default:
		writeError(w, http.StatusBadRequest, "Invalid status (use open, overdue or all)", nil)
		return
	}
	dtos := make([]LoanDTO, 0, len(loans))
	for _, l := range loans {
		dtos = append(dtos, toLoanDTO(l, today))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RenewLoan extends a loan.
// POST /api/loans/{id}/renew
func (h *Handler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	var req RenewRequest
	if !h.decode(w, r, &req) {
		return
	}
	loan, err := h.Engine.Renew(r.Context(), h.State, req.NationalID, chi.URLParam(r, "id"),
		lending.RenewOptions{OverrideWindow: req.OverrideWindow})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLoanDTO(loan, h.Engine.Today()))
}

// OpenConsultation gives a patron an on-premises unit.
// POST /api/consultations
func (h *Handler) OpenConsultation(w http.ResponseWriter, r *http.Request) {
	var req OpenHoldingRequest
	if !h.decode(w, r, &req) {
		return
	}
	con, err := h.Engine.OpenConsultation(r.Context(), h.State, req.NationalID, req.ResourceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConsultationDTO(con))
}

// ListConsultations returns consultations, ?status=open (default) or all.
// GET /api/consultations
func (h *Handler) ListConsultations(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && status != "open" && status != "all" {
		writeError(w, http.StatusBadRequest, "Invalid status (use open or all)", nil)
		return
	}
	dtos := []ConsultationDTO{}
	_ = h.Engine.View(h.State, func(st *lending.State) error {
		records := st.Consultations.Open()
		if status == "all" {
			records = st.Consultations.All()
		}
		for _, c := range records {
			dtos = append(dtos, toConsultationDTO(*c))
		}
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

// Return closes one holding.
// POST /api/returns
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if !h.decode(w, r, &req) {
		return
	}
	receipt, err := h.Engine.Return(r.Context(), h.State, req.NationalID, req.Reference)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptDTO(receipt))
}

// =============================================================================
// MISC HANDLERS
// =============================================================================

// CheckIdentity validates a national ID without registering anyone.
// GET /api/identity/{id}
func (h *Handler) CheckIdentity(w http.ResponseWriter, r *http.Request) {
	id := identity.Normalize(chi.URLParam(r, "id"))
	kind := identity.Classify(id)
	writeJSON(w, http.StatusOK, IdentityCheckDTO{
		NationalID: id,
		Valid:      kind != identity.KindInvalid,
		Kind:       string(kind),
	})
}

// ListHistory returns stored snapshot revisions, newest first.
// GET /api/history?limit=N
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusNotImplemented, "Storage driver keeps no history", nil)
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	revs, err := h.History.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list history", err)
		return
	}
	if revs == nil {
		revs = []RevisionDTO{}
	}
	writeJSON(w, http.StatusOK, revs)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return false
	}
	fields := make(map[string][]string)
	for _, fe := range verrs {
		fields[fe.Field()] = append(fields[fe.Field()], fe.Tag())
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:  "Invalid request",
		Code:   "invalid_input",
		Fields: fields,
	})
	return false
}

// writeDomainError maps lending errors to status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case lending.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, lending.ErrInvalidInput), errors.Is(err, lending.ErrAmbiguous):
		status = http.StatusBadRequest
	case lending.IsConflict(err):
		status = http.StatusConflict
	case lending.IsRuleViolation(err):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, lending.ErrPersist):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    errorCode(err),
		Details: err.Error(),
	})
}

var errorCodes = []struct {
	err  error
	code string
}{
	{lending.ErrNoCopyAvailable, "no_copy_available"},
	{lending.ErrQuotaExceeded, "quota_exceeded"},
	{lending.ErrDuplicateHolding, "duplicate_holding"},
	{lending.ErrAlreadyConsulting, "already_consulting"},
	{lending.ErrResourceInUse, "resource_in_use"},
	{lending.ErrPatronHasActiveHoldings, "patron_has_active_holdings"},
	{lending.ErrRenewalLimitReached, "renewal_limit_reached"},
	{lending.ErrRenewalWindowNotOpen, "renewal_window_not_open"},
	{lending.ErrLoanOverdue, "loan_overdue"},
	{lending.ErrLoanClosed, "record_closed"},
	{lending.ErrNotMember, "not_member"},
	{lending.ErrResourceExists, "resource_exists"},
	{lending.ErrPatronExists, "patron_exists"},
	{lending.ErrAmbiguous, "ambiguous"},
	{lending.ErrNotFound, "not_found"},
	{lending.ErrInvalidInput, "invalid_input"},
	{lending.ErrPersist, "persist_failed"},
}

func errorCode(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
