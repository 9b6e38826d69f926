package factory

// Scenario is a named seed for demos and tests.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Seed        Seed   `json:"-"`
}

var (
	ana   = PersonJSON{NationalID: "12345678Z", Name: "Ana García", Phone: "600111222", Address: "Calle Mayor 1, Madrid"}
	luis  = PersonJSON{NationalID: "00000001R", Name: "Luis Pérez", Phone: "600222333", Address: "Calle Sol 5, Sevilla"}
	marta = PersonJSON{NationalID: "00000002W", Name: "Marta Ruiz", Phone: "600444555", Address: "Av. Diagonal 10, Barcelona"}
	ben   = PersonJSON{NationalID: "X0000000T", Name: "Ben Carter", Phone: "600333444", Address: "Gran Vía 2, Madrid"}
	yuki  = PersonJSON{NationalID: "Y0000000Z", Name: "Yuki Tanaka", Phone: "600555666", Address: "Calle Luna 3, Valencia"}
)

var foundation = BookJSON{
	Key:       "foundation",
	Title:     "Foundation",
	Author:    "Isaac Asimov",
	Publisher: "Gnome Press",
	Copies:    2,
}

var dune = MovieJSON{
	Key:             "dune",
	Title:           "Dune",
	PublicationDate: "2021-10-22",
	PrincipalCast:   []string{"Timothée Chalamet", "Rebecca Ferguson"},
	SecondaryCast:   []string{"Oscar Isaac", "Zendaya"},
	LibraryCopy:     true,
	LoanCopy:        true,
}

// Scenarios lists the built-in demo documents.
var Scenarios = []Scenario{
	{
		ID:          "foundation",
		Name:        "Two copies of Foundation",
		Description: "One book with two copies and two members: the second loan takes copy 2, a third request finds none",
		Seed: Seed{
			Books:   []BookJSON{foundation},
			Members: []PersonJSON{ana, luis},
		},
	},
	{
		ID:          "dune",
		Name:        "Dune, one copy per role",
		Description: "A movie with a library copy and a loan copy; a member borrows while a casual user watches on premises",
		Seed: Seed{
			Movies:        []MovieJSON{dune},
			Members:       []PersonJSON{ana},
			CasualUsers:   []PersonJSON{ben},
			Loans:         []HoldingJSON{{NationalID: ana.NationalID, Resource: "dune"}},
			Consultations: []HoldingJSON{{NationalID: ben.NationalID, Resource: "dune"}},
		},
	},
	{
		ID:          "busy-branch",
		Name:        "Busy branch",
		Description: "Mixed catalog with a member at the loan quota and a magazine in consultation",
		Seed: Seed{
			Books: []BookJSON{
				foundation,
				{Key: "hobbit", Title: "The Hobbit", Author: "J. R. R. Tolkien", Publisher: "Allen & Unwin", Copies: 3},
				{Key: "quijote", Title: "Don Quijote de la Mancha", Author: "Miguel de Cervantes", Publisher: "Francisco de Robles", Copies: 1},
				{Key: "sapiens", Title: "Sapiens", Author: "Yuval Noah Harari", Publisher: "Debate", Copies: 2},
			},
			Magazines: []MagazineJSON{
				{Key: "natgeo-mar", Name: "National Geographic", PublicationDate: "2024-03", Publisher: "National Geographic Society"},
				{Key: "natgeo-apr", Name: "National Geographic", PublicationDate: "2024-04", Publisher: "National Geographic Society"},
			},
			Movies: []MovieJSON{
				dune,
				{Key: "amelie", Title: "Amélie", PublicationDate: "2001-04-25", PrincipalCast: []string{"Audrey Tautou"}, LibraryCopy: true},
			},
			Members:     []PersonJSON{ana, luis, marta},
			CasualUsers: []PersonJSON{ben, yuki},
			Loans: []HoldingJSON{
				{NationalID: ana.NationalID, Resource: "foundation"},
				{NationalID: ana.NationalID, Resource: "hobbit"},
				{NationalID: ana.NationalID, Resource: "dune"},
				{NationalID: luis.NationalID, Resource: "quijote"},
			},
			Consultations: []HoldingJSON{
				{NationalID: ben.NationalID, Resource: "natgeo-mar"},
				{NationalID: marta.NationalID, Resource: "sapiens"},
			},
		},
	},
}

// FindScenario looks up a built-in scenario by id.
func FindScenario(id string) (Scenario, bool) {
	for _, s := range Scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}
