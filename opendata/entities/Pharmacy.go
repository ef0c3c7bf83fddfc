package entities

// Pharmacy is one row of lekarny_seznam.
type Pharmacy struct {
	ID            string   `json:"pharmacy_id"`
	Name          string   `json:"name"`
	Street        string   `json:"street,omitempty"`
	City          string   `json:"city"`
	PostalCode    string   `json:"postal_code,omitempty"`
	District      string   `json:"district,omitempty"`
	Region        string   `json:"region,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Email         string   `json:"email,omitempty"`
	Web           string   `json:"web,omitempty"`
	Operator      string   `json:"operator,omitempty"`
	Emergency     string   `json:"-"` // raw POHOTOVOST value
	MailOrder     string   `json:"-"` // raw ZASILKOVY_PRODEJ value
	Has24hService bool     `json:"has_24h_service"`
	InternetSales bool     `json:"has_internet_sales"`
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
}
