package lending

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// CATALOG - All resources, indexed by id
// =============================================================================

// Catalog owns every resource and issues their ids. It holds no lock; the
// Engine serialises access.
type Catalog struct {
	byID      map[string]Resource
	books     []*Book
	magazines []*Magazine
	movies    []*Movie

	bookSeq     sequence
	magazineSeq sequence
	movieSeq    sequence
}

func NewCatalog() *Catalog {
	return &Catalog{
		byID:        make(map[string]Resource),
		bookSeq:     sequence{prefix: PrefixBook},
		magazineSeq: sequence{prefix: PrefixMagazine},
		movieSeq:    sequence{prefix: PrefixMovie},
	}
}

// BookInput describes a new book.
type BookInput struct {
	Description string
	Author      string
	Title       string
	Publisher   string
	Copies      int
}

// MagazineInput describes a new magazine issue.
type MagazineInput struct {
	Description     string
	Name            string
	PublicationDate YearMonth
	Publisher       string
}

// MovieInput describes a new movie and which of its two copies exist.
type MovieInput struct {
	Description     string
	Title           string
	PrincipalCast   []string
	SecondaryCast   []string
	PublicationDate Date
	LibraryCopy     bool
	LoanCopy        bool
}

// =============================================================================
// ADD
// =============================================================================

// AddBook creates a book with in.Copies free copies numbered from 1.
func (c *Catalog) AddBook(in BookInput) (*Book, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if in.Copies < 0 {
		return nil, &InputError{Field: "copies", Value: fmt.Sprint(in.Copies), Reason: "must not be negative"}
	}
	for _, b := range c.books {
		if sameText(b.Title, in.Title) && sameText(b.Author, in.Author) && sameText(b.Publisher, in.Publisher) {
			return nil, &ExistsError{ExistingID: b.id, Cause: ErrResourceExists}
		}
	}

	b := &Book{
		id:          c.bookSeq.next(),
		Description: in.Description,
		Author:      in.Author,
		Title:       in.Title,
		Publisher:   in.Publisher,
	}
	b.addCopies(in.Copies)
	c.insert(b)
	return b, nil
}

// AddMagazine creates a magazine issue, free.
func (c *Catalog) AddMagazine(in MagazineInput) (*Magazine, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if in.PublicationDate.IsZero() {
		return nil, &InputError{Field: "publication_date", Reason: "required"}
	}
	for _, m := range c.magazines {
		if sameText(m.Name, in.Name) && sameText(m.Publisher, in.Publisher) && m.PublicationDate == in.PublicationDate {
			return nil, &ExistsError{ExistingID: m.id, Cause: ErrResourceExists}
		}
	}

	m := &Magazine{
		id:              c.magazineSeq.next(),
		Description:     in.Description,
		Name:            in.Name,
		PublicationDate: in.PublicationDate,
		Publisher:       in.Publisher,
	}
	c.insert(m)
	return m, nil
}

// AddMovie creates a movie with the requested copies, all free.
func (c *Catalog) AddMovie(in MovieInput) (*Movie, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if in.PublicationDate.IsZero() {
		return nil, &InputError{Field: "publication_date", Reason: "required"}
	}
	if len(in.PrincipalCast) > MaxCastNames || len(in.SecondaryCast) > MaxCastNames {
		return nil, &InputError{Field: "cast", Reason: fmt.Sprintf("at most %d names per list", MaxCastNames)}
	}
	for _, m := range c.movies {
		if sameText(m.Title, in.Title) && m.PublicationDate.Equal(in.PublicationDate) {
			return nil, &ExistsError{ExistingID: m.id, Cause: ErrResourceExists}
		}
	}

	m := &Movie{
		id:              c.movieSeq.next(),
		Description:     in.Description,
		Title:           in.Title,
		PrincipalCast:   append([]string(nil), in.PrincipalCast...),
		SecondaryCast:   append([]string(nil), in.SecondaryCast...),
		PublicationDate: in.PublicationDate,
		HasLibraryCopy:  in.LibraryCopy,
		HasLoanCopy:     in.LoanCopy,
	}
	c.insert(m)
	return m, nil
}

func (c *Catalog) insert(r Resource) {
	c.byID[r.ID()] = r
	switch v := r.(type) {
	case *Book:
		c.books = append(c.books, v)
	case *Magazine:
		c.magazines = append(c.magazines, v)
	case *Movie:
		c.movies = append(c.movies, v)
	}
}

// =============================================================================
// COPIES
// =============================================================================

// AddCopiesToBook appends n free copies and returns them.
func (c *Catalog) AddCopiesToBook(bookID string, n int) ([]*Copy, error) {
	if n <= 0 {
		return nil, &InputError{Field: "copies", Value: fmt.Sprint(n), Reason: "must be positive"}
	}
	b, err := c.Book(bookID)
	if err != nil {
		return nil, err
	}
	return b.addCopies(n), nil
}

// SetMovieCopies declares which of the two movie copies exist. A copy that
// is in use cannot be dropped.
func (c *Catalog) SetMovieCopies(movieID string, hasLibrary, hasLoan bool) error {
	m, err := c.Movie(movieID)
	if err != nil {
		return err
	}
	if m.HasLibraryCopy && !hasLibrary && m.InUse {
		return fmt.Errorf("library copy of %s is in consultation: %w", m.id, ErrResourceInUse)
	}
	if m.HasLoanCopy && !hasLoan && m.OnLoan {
		return fmt.Errorf("loan copy of %s is out: %w", m.id, ErrResourceInUse)
	}
	m.HasLibraryCopy = hasLibrary
	m.HasLoanCopy = hasLoan
	return nil
}

// RemoveCopy removes one free unit: a book copy by sequence or a movie copy
// by role. Magazines have a single unit; remove the resource instead.
func (c *Catalog) RemoveCopy(ref ResourceRef) error {
	r, err := c.Get(ref.ResourceID)
	if err != nil {
		return err
	}
	switch v := r.(type) {
	case *Book:
		if ref.Copy.Sequence <= 0 {
			return &InputError{Field: "copy", Value: ref.String(), Reason: "book copies are selected by sequence"}
		}
		return v.removeCopy(ref.Copy.Sequence)
	case *Movie:
		switch ref.Copy.Role {
		case RoleLibrary:
			if !v.HasLibraryCopy {
				break
			}
			return c.SetMovieCopies(v.id, false, v.HasLoanCopy)
		case RoleLoan:
			if !v.HasLoanCopy {
				break
			}
			return c.SetMovieCopies(v.id, v.HasLibraryCopy, false)
		default:
			return &InputError{Field: "copy", Value: ref.String(), Reason: "movie copies are selected by role"}
		}
		return &NotFoundError{What: "copy", Key: ref.String()}
	default:
		return &InputError{Field: "copy", Value: ref.String(), Reason: "magazines have no removable copies"}
	}
}

// RemoveResource deletes a resource whose units are all free.
func (c *Catalog) RemoveResource(id string) error {
	r, err := c.Get(id)
	if err != nil {
		return err
	}
	if IsBusy(r) {
		return fmt.Errorf("%s %s: %w", r.Kind(), id, ErrResourceInUse)
	}
	delete(c.byID, id)
	switch r.(type) {
	case *Book:
		c.books = without(c.books, id)
	case *Magazine:
		c.magazines = without(c.magazines, id)
	case *Movie:
		c.movies = without(c.movies, id)
	}
	return nil
}

func without[T Resource](items []T, id string) []T {
	out := items[:0]
	for _, it := range items {
		if it.ID() != id {
			out = append(out, it)
		}
	}
	return out
}

// =============================================================================
// GET / LIST
// =============================================================================

func (c *Catalog) Get(id string) (Resource, error) {
	r, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, &NotFoundError{What: "resource", Key: id}
	}
	return r, nil
}

func (c *Catalog) Book(id string) (*Book, error) {
	return getAs[*Book](c, id, KindBook)
}

func (c *Catalog) Magazine(id string) (*Magazine, error) {
	return getAs[*Magazine](c, id, KindMagazine)
}

func (c *Catalog) Movie(id string) (*Movie, error) {
	return getAs[*Movie](c, id, KindMovie)
}

func getAs[T Resource](c *Catalog, id string, kind Kind) (T, error) {
	var zero T
	r, err := c.Get(id)
	if err != nil {
		return zero, err
	}
	v, ok := r.(T)
	if !ok {
		return zero, &InputError{Field: "resource", Value: id, Reason: fmt.Sprintf("is a %s, not a %s", r.Kind(), kind)}
	}
	return v, nil
}

// List returns books, then magazines, then movies, each ordered by id.
func (c *Catalog) List() []Resource {
	out := make([]Resource, 0, len(c.byID))
	for _, b := range sortedByID(c.books) {
		out = append(out, b)
	}
	for _, m := range sortedByID(c.magazines) {
		out = append(out, m)
	}
	for _, m := range sortedByID(c.movies) {
		out = append(out, m)
	}
	return out
}

func (c *Catalog) Len() int { return len(c.byID) }

func sortedByID[T Resource](items []T) []T {
	out := append([]T(nil), items...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// =============================================================================
// NARROWING - Progressive lookup
// =============================================================================

// Narrowing is a candidate set refined one field at a time. The operator
// sees Candidates after each step and stops once Unique succeeds.
type Narrowing[T Resource] struct {
	what  Kind
	keys  []string
	items []T
}

// Where keeps the candidates whose field matches value, ignoring case and
// surrounding spaces. key names the filter in error messages. An empty
// value skips the step.
func (n Narrowing[T]) Where(key, value string, field func(T) string) Narrowing[T] {
	if strings.TrimSpace(value) == "" {
		return n
	}
	out := Narrowing[T]{what: n.what, keys: append(append([]string(nil), n.keys...), key+"="+value)}
	for _, it := range n.items {
		if sameText(field(it), value) {
			out.items = append(out.items, it)
		}
	}
	return out
}

// Candidates returns the remaining matches ordered by id.
func (n Narrowing[T]) Candidates() []T {
	return sortedByID(n.items)
}

// Unique returns the single remaining candidate, or NotFound / Ambiguous.
func (n Narrowing[T]) Unique() (T, error) {
	var zero T
	switch len(n.items) {
	case 0:
		return zero, &NotFoundError{What: string(n.what), Key: strings.Join(n.keys, ", ")}
	case 1:
		return n.items[0], nil
	default:
		return zero, fmt.Errorf("%d %ss match %s: %w", len(n.items), n.what, strings.Join(n.keys, ", "), ErrAmbiguous)
	}
}

func (c *Catalog) Books() Narrowing[*Book] {
	return Narrowing[*Book]{what: KindBook, items: append([]*Book(nil), c.books...)}
}

func (c *Catalog) Magazines() Narrowing[*Magazine] {
	return Narrowing[*Magazine]{what: KindMagazine, items: append([]*Magazine(nil), c.magazines...)}
}

func (c *Catalog) Movies() Narrowing[*Movie] {
	return Narrowing[*Movie]{what: KindMovie, items: append([]*Movie(nil), c.movies...)}
}

// Field accessors for Where.
func BookTitle(b *Book) string             { return b.Title }
func BookAuthor(b *Book) string            { return b.Author }
func BookPublisher(b *Book) string         { return b.Publisher }
func MagazineName(m *Magazine) string      { return m.Name }
func MagazinePublisher(m *Magazine) string { return m.Publisher }
func MagazineIssue(m *Magazine) string     { return m.PublicationDate.String() }
func MovieTitle(m *Movie) string           { return m.Title }
func MovieDate(m *Movie) string            { return m.PublicationDate.String() }

// FindBookByTitleAuthorPublisher narrows title, then author, then publisher.
func (c *Catalog) FindBookByTitleAuthorPublisher(title, author, publisher string) (*Book, error) {
	return c.Books().
		Where("title", title, BookTitle).
		Where("author", author, BookAuthor).
		Where("publisher", publisher, BookPublisher).
		Unique()
}

// FindMagazineByNameDateByPublisher narrows name, then publisher, then issue.
func (c *Catalog) FindMagazineByNameDateByPublisher(name, publisher string, issue YearMonth) (*Magazine, error) {
	return c.Magazines().
		Where("name", name, MagazineName).
		Where("publisher", publisher, MagazinePublisher).
		Where("publication_date", issue.String(), MagazineIssue).
		Unique()
}

// FindMovieByTitleAndDate narrows title, then publication date.
func (c *Catalog) FindMovieByTitleAndDate(title string, date Date) (*Movie, error) {
	return c.Movies().
		Where("title", title, MovieTitle).
		Where("publication_date", date.String(), MovieDate).
		Unique()
}

// =============================================================================
// HELPERS
// =============================================================================

func sameText(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &InputError{Field: field, Reason: "required"}
	}
	return nil
}
