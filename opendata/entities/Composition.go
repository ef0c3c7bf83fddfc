package entities

// Composition links a medicine to one of its substances (dlp_slozeni).
type Composition struct {
	MedicineCode  string `json:"sukl_code"`
	SubstanceCode string `json:"substance_code"`
	Amount        string `json:"amount,omitempty"`
	Unit          string `json:"unit,omitempty"`
}

// Substance is one row of dlp_lecivelatky.
type Substance struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	NameEN    string `json:"name_en,omitempty"`
	NameLower string `json:"-"` // Pre-computed: strings.ToLower(Name)
}
