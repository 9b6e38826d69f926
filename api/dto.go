/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the lending domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Resources:     ResourceDTO, CopyDTO, StatusDTO, SearchDTO
                 CreateBookRequest, CreateMagazineRequest, CreateMovieRequest,
                 AddCopiesRequest, SetMovieCopiesRequest
  Patrons:       PatronDTO, HoldingsDTO, RegisterPatronRequest
  Holdings:      LoanDTO, ConsultationDTO, ReceiptDTO, ReturnOutcomeDTO
                 OpenHoldingRequest, ReturnRequest, RenewRequest
  History:       RevisionDTO
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry `validate` tags checked with go-playground/validator
  before a handler runs. Domain rules (checksums, dates, quotas) are still
  enforced by the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/lending-engine/factory"
	"github.com/warp/lending-engine/lending"
)

// =============================================================================
// RESOURCES
// =============================================================================

// ResourceDTO represents any catalog resource; fields not relevant to the
// kind are omitted.
type ResourceDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`

	// book
	Author    string    `json:"author,omitempty"`
	Title     string    `json:"title,omitempty"`
	Publisher string    `json:"publisher,omitempty"`
	Copies    []CopyDTO `json:"copies,omitempty"`

	// magazine
	Name           string `json:"name,omitempty"`
	InConsultation *bool  `json:"in_consultation,omitempty"`

	// magazine (YYYY-MM) and movie (YYYY-MM-DD)
	PublicationDate string `json:"publication_date,omitempty"`

	// movie
	PrincipalCast []string `json:"principal_cast,omitempty"`
	SecondaryCast []string `json:"secondary_cast,omitempty"`
	LibraryCopy   *bool    `json:"library_copy,omitempty"`
	InUse         *bool    `json:"in_use,omitempty"`
	LoanCopy      *bool    `json:"loan_copy,omitempty"`
	OnLoan        *bool    `json:"on_loan,omitempty"`

	Status StatusDTO `json:"status"`
}

type CopyDTO struct {
	Sequence int    `json:"sequence_number"`
	Activity string `json:"activity"`
}

type StatusDTO struct {
	Total          int             `json:"total"`
	Free           int             `json:"free"`
	OnLoan         int             `json:"on_loan"`
	OnConsultation int             `json:"on_consultation"`
	Utilization    decimal.Decimal `json:"utilization"`
}

// CatalogStatusDTO is the whole-catalog report.
type CatalogStatusDTO struct {
	Resources []ResourceStatusDTO `json:"resources"`
	Totals    StatusDTO           `json:"totals"`
}

type ResourceStatusDTO struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label"`
	StatusDTO
}

// SearchDTO is one step of a progressive lookup.
type SearchDTO struct {
	Candidates []ResourceDTO `json:"candidates"`
	UniqueID   string        `json:"unique_id,omitempty"`
}

type CreateBookRequest struct {
	Description string `json:"description"`
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	Publisher   string `json:"publisher" validate:"required"`
	Copies      int    `json:"copies" validate:"gte=0"`
}

type CreateMagazineRequest struct {
	Description     string `json:"description"`
	Name            string `json:"name" validate:"required"`
	PublicationDate string `json:"publication_date" validate:"required,len=7"`
	Publisher       string `json:"publisher" validate:"required"`
}

type CreateMovieRequest struct {
	Description     string   `json:"description"`
	Title           string   `json:"title" validate:"required"`
	PublicationDate string   `json:"publication_date" validate:"required,len=10"`
	PrincipalCast   []string `json:"principal_cast" validate:"max=2,dive,required"`
	SecondaryCast   []string `json:"secondary_cast" validate:"max=2,dive,required"`
	LibraryCopy     bool     `json:"library_copy"`
	LoanCopy        bool     `json:"loan_copy"`
}

type AddCopiesRequest struct {
	Count int `json:"count" validate:"gt=0"`
}

type SetMovieCopiesRequest struct {
	LibraryCopy bool `json:"library_copy"`
	LoanCopy    bool `json:"loan_copy"`
}

// =============================================================================
// PATRONS
// =============================================================================

type PatronDTO struct {
	NationalID       string   `json:"national_id"`
	Name             string   `json:"name"`
	Phone            string   `json:"phone"`
	Address          string   `json:"address"`
	Member           bool     `json:"member"`
	MemberNumber     string   `json:"member_number,omitempty"`
	OpenLoans        []string `json:"open_loans,omitempty"`
	OpenConsultation string   `json:"open_consultation,omitempty"`
}

type RegisterPatronRequest struct {
	NationalID string `json:"national_id" validate:"required,len=9"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required,numeric"`
	Address    string `json:"address" validate:"required"`
}

type HoldingsDTO struct {
	Patron       PatronDTO        `json:"patron"`
	Loans        []LoanDTO        `json:"loans"`
	Consultation *ConsultationDTO `json:"consultation,omitempty"`
}

// =============================================================================
// LOANS, CONSULTATIONS, RETURNS
// =============================================================================

type LoanDTO struct {
	ID               string `json:"id"`
	HolderNationalID string `json:"holder_national_id"`
	MemberNumber     string `json:"member_number"`
	Resource         string `json:"resource"`
	Label            string `json:"label,omitempty"`
	RequestDate      string `json:"request_date"`
	RequestTime      string `json:"request_time"`
	DueDate          string `json:"due_date"`
	ReturnedDate     string `json:"returned_date,omitempty"`
	RenewalCount     int    `json:"renewal_count"`
	DaysUntilDue     *int   `json:"days_until_due,omitempty"`
	Overdue          bool   `json:"overdue"`
}

type ConsultationDTO struct {
	ID               string `json:"id"`
	HolderNationalID string `json:"holder_national_id"`
	Resource         string `json:"resource"`
	Label            string `json:"label,omitempty"`
	RequestDate      string `json:"request_date"`
	RequestTime      string `json:"request_time"`
	ClosedTime       string `json:"closed_time,omitempty"`
}

// OpenHoldingRequest opens a loan or a consultation.
type OpenHoldingRequest struct {
	NationalID string `json:"national_id" validate:"required"`
	ResourceID string `json:"resource_id" validate:"required"`
}

type ReturnRequest struct {
	NationalID string `json:"national_id" validate:"required"`
	Reference  string `json:"reference" validate:"required"`
}

type RenewRequest struct {
	NationalID     string `json:"national_id" validate:"required"`
	OverrideWindow bool   `json:"override_window"`
}

type ReceiptDTO struct {
	Purpose      string `json:"purpose"`
	RecordID     string `json:"record_id"`
	Resource     string `json:"resource"`
	DueDate      string `json:"due_date,omitempty"`
	ReturnedDate string `json:"returned_date,omitempty"`
	ClosedTime   string `json:"closed_time,omitempty"`
	Overdue      bool   `json:"overdue"`
	DaysLate     int    `json:"days_late,omitempty"`
}

type ReturnOutcomeDTO struct {
	Reference string      `json:"reference"`
	Receipt   *ReceiptDTO `json:"receipt,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// =============================================================================
// SCENARIOS & MISC
// =============================================================================

// RevisionDTO summarises one stored snapshot revision.
type RevisionDTO struct {
	Seq           int64     `json:"seq"`
	Revision      string    `json:"revision"`
	TakenAt       time.Time `json:"taken_at"`
	Resources     int       `json:"resources"`
	Patrons       int       `json:"patrons"`
	Loans         int       `json:"loans"`
	Consultations int       `json:"consultations"`
	Bytes         int       `json:"bytes"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type LoadScenarioResponse struct {
	ScenarioID string         `json:"scenario_id"`
	Result     factory.Result `json:"result"`
}

type IdentityCheckDTO struct {
	NationalID string `json:"national_id"`
	Valid      bool   `json:"valid"`
	Kind       string `json:"kind,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERTERS - Call under Engine.View
// =============================================================================

func toResourceDTO(r lending.Resource) ResourceDTO {
	st := lending.StatusOf(r)
	dto := ResourceDTO{
		ID:     r.ID(),
		Kind:   string(r.Kind()),
		Label:  r.Label(),
		Status: toStatusDTO(st),
	}
	switch v := r.(type) {
	case *lending.Book:
		dto.Description = v.Description
		dto.Author, dto.Title, dto.Publisher = v.Author, v.Title, v.Publisher
		dto.Copies = []CopyDTO{}
		for _, c := range v.Copies {
			dto.Copies = append(dto.Copies, CopyDTO{Sequence: c.Sequence, Activity: string(c.Activity)})
		}
	case *lending.Magazine:
		dto.Description = v.Description
		dto.Name, dto.Publisher = v.Name, v.Publisher
		dto.PublicationDate = v.PublicationDate.String()
		dto.InConsultation = boolPtr(v.InConsultation)
	case *lending.Movie:
		dto.Description = v.Description
		dto.Title = v.Title
		dto.PublicationDate = v.PublicationDate.String()
		dto.PrincipalCast = append([]string(nil), v.PrincipalCast...)
		dto.SecondaryCast = append([]string(nil), v.SecondaryCast...)
		dto.LibraryCopy, dto.InUse = boolPtr(v.HasLibraryCopy), boolPtr(v.InUse)
		dto.LoanCopy, dto.OnLoan = boolPtr(v.HasLoanCopy), boolPtr(v.OnLoan)
	}
	return dto
}

func toStatusDTO(s lending.ResourceStatus) StatusDTO {
	return StatusDTO{
		Total:          s.Total,
		Free:           s.Free,
		OnLoan:         s.OnLoan,
		OnConsultation: s.OnConsultation,
		Utilization:    s.Utilization,
	}
}

func toPatronDTO(p lending.Patron) PatronDTO {
	d := p.Details()
	dto := PatronDTO{
		NationalID:       d.NationalID,
		Name:             d.Name,
		Phone:            d.Phone,
		Address:          d.Address,
		Member:           p.IsMember(),
		OpenConsultation: p.ConsultationID(),
	}
	if m, ok := p.(*lending.Member); ok {
		dto.MemberNumber = m.MemberNumber
		dto.OpenLoans = append([]string(nil), m.OpenLoans...)
	}
	return dto
}

func toLoanDTO(l lending.LoanRecord, today lending.Date) LoanDTO {
	return LoanDTO{
		ID:               l.ID,
		HolderNationalID: l.HolderNationalID,
		MemberNumber:     l.MemberNumber,
		Resource:         l.Resource.String(),
		RequestDate:      l.RequestDate.String(),
		RequestTime:      l.RequestTime.String(),
		DueDate:          l.DueDate.String(),
		ReturnedDate:     l.ReturnedDate.String(),
		RenewalCount:     l.RenewalCount,
		Overdue:          l.Overdue(today),
	}
}

func toConsultationDTO(c lending.ConsultationRecord) ConsultationDTO {
	return ConsultationDTO{
		ID:               c.ID,
		HolderNationalID: c.HolderNationalID,
		Resource:         c.Resource.String(),
		RequestDate:      c.RequestDate.String(),
		RequestTime:      c.RequestTime.String(),
		ClosedTime:       c.ClosedTime.String(),
	}
}

func toReceiptDTO(r lending.Receipt) ReceiptDTO {
	return ReceiptDTO{
		Purpose:      string(r.Purpose),
		RecordID:     r.RecordID,
		Resource:     r.Resource.String(),
		DueDate:      r.DueDate.String(),
		ReturnedDate: r.ReturnedDate.String(),
		ClosedTime:   r.ClosedTime.String(),
		Overdue:      r.Overdue,
		DaysLate:     r.DaysLate,
	}
}

func boolPtr(b bool) *bool { return &b }
