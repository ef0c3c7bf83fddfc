package entities

// Dataset is one complete load of the open-data tables, in file order.
type Dataset struct {
	Medicines          []Medicine
	Compositions       []Composition
	Substances         []Substance
	ATCGroups          []ATCGroup
	Documents          []DocumentNames
	Prices             []PriceRecord
	PricesHaveValidity bool // the price file carried a validity column
	Pharmacies         []Pharmacy
}
