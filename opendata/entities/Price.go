package entities

import "time"

// PriceRecord is one row of the price and reimbursement list (dlp_cau).
// Nil pointers mean the column was missing or empty.
type PriceRecord struct {
	Code            string     `json:"sukl_code"`
	MaxPrice        *float64   `json:"max_price,omitempty"`
	Reimbursement   *float64   `json:"reimbursement_amount,omitempty"`
	Copay           *float64   `json:"patient_copay,omitempty"`
	IndicationGroup string     `json:"indication_group,omitempty"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
}

// PriceInfo is the derived current price view of a medicine.
type PriceInfo struct {
	MaxPrice        *float64 `json:"max_price"`
	Reimbursement   *float64 `json:"reimbursement_amount"`
	Copay           *float64 `json:"patient_copay"`
	IsReimbursed    bool     `json:"is_reimbursed"`
	IndicationGroup string   `json:"indication_group,omitempty"`
}
