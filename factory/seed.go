/*
Package factory turns JSON seed documents into library state.

PURPOSE:
  Loads a catalog, patrons and optional opening holdings from a JSON
  document and applies it through the lending engine, so every seeded
  change passes the same rules and is persisted like an operator's.

JSON SCHEMA:
  {
    "books": [
      {"key": "foundation", "title": "Foundation", "author": "Isaac Asimov",
       "publisher": "Gnome Press", "copies": 2}
    ],
    "magazines": [
      {"key": "nat-geo", "name": "National Geographic",
       "publication_date": "2024-03", "publisher": "NGS"}
    ],
    "movies": [
      {"key": "dune", "title": "Dune", "publication_date": "2021-10-22",
       "principal_cast": ["Timothée Chalamet"], "library_copy": true, "loan_copy": true}
    ],
    "members":      [{"national_id": "12345678Z", "name": "Ana", "phone": "600111222", "address": "Calle Mayor 1"}],
    "casual_users": [{"national_id": "X0000000T", "name": "Ben", "phone": "600333444", "address": "Gran Via 2"}],
    "loans":         [{"national_id": "12345678Z", "resource": "foundation"}],
    "consultations": [{"national_id": "X0000000T", "resource": "nat-geo"}]
  }

  "resource" in loans and consultations is either a key declared above or
  an existing resource id.

IDEMPOTENCE:
  Resources and patrons that already exist are reused and reported as
  skipped, so applying the same document twice only adds holdings.

SEE ALSO:
  - scenarios.go: built-in demo documents
  - lending/engine.go: the operations applied here
*/
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/warp/lending-engine/lending"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

type Seed struct {
	Books         []BookJSON     `json:"books,omitempty"`
	Magazines     []MagazineJSON `json:"magazines,omitempty"`
	Movies        []MovieJSON    `json:"movies,omitempty"`
	Members       []PersonJSON   `json:"members,omitempty"`
	CasualUsers   []PersonJSON   `json:"casual_users,omitempty"`
	Loans         []HoldingJSON  `json:"loans,omitempty"`
	Consultations []HoldingJSON  `json:"consultations,omitempty"`
}

type BookJSON struct {
	Key         string `json:"key,omitempty"`
	Description string `json:"description,omitempty"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Publisher   string `json:"publisher"`
	Copies      int    `json:"copies"`
}

type MagazineJSON struct {
	Key             string `json:"key,omitempty"`
	Description     string `json:"description,omitempty"`
	Name            string `json:"name"`
	PublicationDate string `json:"publication_date"` // YYYY-MM
	Publisher       string `json:"publisher"`
}

type MovieJSON struct {
	Key             string   `json:"key,omitempty"`
	Description     string   `json:"description,omitempty"`
	Title           string   `json:"title"`
	PublicationDate string   `json:"publication_date"` // YYYY-MM-DD
	PrincipalCast   []string `json:"principal_cast,omitempty"`
	SecondaryCast   []string `json:"secondary_cast,omitempty"`
	LibraryCopy     bool     `json:"library_copy"`
	LoanCopy        bool     `json:"loan_copy"`
}

type PersonJSON struct {
	NationalID string `json:"national_id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
}

type HoldingJSON struct {
	NationalID string `json:"national_id"`
	Resource   string `json:"resource"`
}

// Result reports what Apply did.
type Result struct {
	Resources     map[string]string `json:"resources"` // seed key -> resource id
	Members       []string          `json:"members"`   // member numbers
	CasualUsers   []string          `json:"casual_users"`
	Loans         []string          `json:"loans"`
	Consultations []string          `json:"consultations"`
	Skipped       []string          `json:"skipped,omitempty"`
}

// Parse decodes a seed document.
func Parse(doc []byte) (Seed, error) {
	var s Seed
	if err := json.Unmarshal(doc, &s); err != nil {
		return Seed{}, fmt.Errorf("failed to parse seed JSON: %w", err)
	}
	return s, nil
}

// =============================================================================
// APPLY
// =============================================================================

// Apply runs the seed through eng in document order: books, magazines,
// movies, members, casual users, loans, consultations. It stops at the
// first error other than "already exists".
func Apply(ctx context.Context, eng *lending.Engine, st *lending.State, s Seed) (Result, error) {
	res := Result{Resources: make(map[string]string)}

	remember := func(key, id string) {
		if key != "" {
			res.Resources[key] = id
		}
	}
	existing := func(err error, what string) (string, bool) {
		var exists *lending.ExistsError
		if errors.As(err, &exists) {
			res.Skipped = append(res.Skipped, fmt.Sprintf("%s %s", what, exists.ExistingID))
			return exists.ExistingID, true
		}
		return "", false
	}

	for _, b := range s.Books {
		book, err := eng.AddBook(ctx, st, lending.BookInput{
			Description: b.Description,
			Author:      b.Author,
			Title:       b.Title,
			Publisher:   b.Publisher,
			Copies:      b.Copies,
		})
		if id, ok := existing(err, "book"); ok {
			remember(b.Key, id)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("book %q: %w", b.Title, err)
		}
		remember(b.Key, book.ID())
	}

	for _, m := range s.Magazines {
		issue, err := lending.ParseYearMonth(m.PublicationDate)
		if err != nil {
			return res, fmt.Errorf("magazine %q: %w", m.Name, err)
		}
		mag, err := eng.AddMagazine(ctx, st, lending.MagazineInput{
			Description:     m.Description,
			Name:            m.Name,
			PublicationDate: issue,
			Publisher:       m.Publisher,
		})
		if id, ok := existing(err, "magazine"); ok {
			remember(m.Key, id)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("magazine %q: %w", m.Name, err)
		}
		remember(m.Key, mag.ID())
	}

	for _, m := range s.Movies {
		date, err := lending.ParseDate(m.PublicationDate)
		if err != nil {
			return res, fmt.Errorf("movie %q: %w", m.Title, err)
		}
		movie, err := eng.AddMovie(ctx, st, lending.MovieInput{
			Description:     m.Description,
			Title:           m.Title,
			PrincipalCast:   m.PrincipalCast,
			SecondaryCast:   m.SecondaryCast,
			PublicationDate: date,
			LibraryCopy:     m.LibraryCopy,
			LoanCopy:        m.LoanCopy,
		})
		if id, ok := existing(err, "movie"); ok {
			remember(m.Key, id)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("movie %q: %w", m.Title, err)
		}
		remember(m.Key, movie.ID())
	}

	for _, p := range s.Members {
		m, err := eng.RegisterMember(ctx, st, p.person())
		if _, ok := existing(err, "member"); ok {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("member %s: %w", p.NationalID, err)
		}
		res.Members = append(res.Members, m.MemberNumber)
	}

	for _, p := range s.CasualUsers {
		u, err := eng.RegisterCasualUser(ctx, st, p.person())
		if _, ok := existing(err, "patron"); ok {
			continue
		}
		if err != nil {
			return res, fmt.Errorf("casual user %s: %w", p.NationalID, err)
		}
		res.CasualUsers = append(res.CasualUsers, u.NationalID)
	}

	resolve := func(ref string) string {
		if id, ok := res.Resources[ref]; ok {
			return id
		}
		return ref
	}

	for _, h := range s.Loans {
		loan, err := eng.OpenLoan(ctx, st, h.NationalID, resolve(h.Resource))
		if err != nil {
			return res, fmt.Errorf("loan of %q to %s: %w", h.Resource, h.NationalID, err)
		}
		res.Loans = append(res.Loans, loan.ID)
	}

	for _, h := range s.Consultations {
		con, err := eng.OpenConsultation(ctx, st, h.NationalID, resolve(h.Resource))
		if err != nil {
			return res, fmt.Errorf("consultation of %q by %s: %w", h.Resource, h.NationalID, err)
		}
		res.Consultations = append(res.Consultations, con.ID)
	}

	return res, nil
}

func (p PersonJSON) person() lending.Person {
	return lending.Person{NationalID: p.NationalID, Name: p.Name, Phone: p.Phone, Address: p.Address}
}
