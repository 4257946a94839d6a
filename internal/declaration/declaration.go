// Package declaration defines the customs declaration aggregate consumed
// by the submission pipeline. The aggregate is produced upstream (invoice
// extraction, classification, duty calculation) and is read-only here.
package declaration

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Submission status values recorded back onto the declaration after an
// attempt completes.
const (
	StatusDraft     = "draft"
	StatusSubmitted = "submitted"
	StatusFailed    = "failed"
)

// Party identifies a shipper, consignee or broker referenced by a
// declaration.
type Party struct {
	Name         string `json:"name"`
	TaxID        string `json:"tax_id,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// Container is one shipping container attached to the header.
type Container struct {
	Number     string `json:"number"`
	SealNumber string `json:"seal_number,omitempty"`
	Size       string `json:"size,omitempty"`
}

// Levy is an arbitrary per-item levy beyond duty and wharfage.
type Levy struct {
	Code   string  `json:"code"`
	Amount float64 `json:"amount"`
}

// LineItem is one declared line of goods.
type LineItem struct {
	TariffNumber    string   `json:"tariff_number"`
	Description     string   `json:"description"`
	Quantity        float64  `json:"quantity"`
	UnitCode        string   `json:"unit_code,omitempty"`
	CountryOfOrigin string   `json:"country_of_origin,omitempty"`
	FOBValue        float64  `json:"fob_value"`
	CIFValue        float64  `json:"cif_value"`
	FreightCharge   float64  `json:"freight_charge,omitempty"`
	InsuranceCharge float64  `json:"insurance_charge,omitempty"`
	CustomsDuty     float64  `json:"customs_duty,omitempty"`
	Wharfage        float64  `json:"wharfage,omitempty"`
	OtherLevies     []Levy   `json:"other_levies,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// Declaration is the aggregate root for one customs entry.
type Declaration struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Country        string `json:"country"`

	Vessel          string    `json:"vessel,omitempty"`
	ManifestNumber  string    `json:"manifest_number,omitempty"`
	BillOfLading    string    `json:"bill_of_lading,omitempty"`
	ArrivalDate     time.Time `json:"arrival_date,omitempty"`
	DeclarationDate time.Time `json:"declaration_date"`
	PortOfLoading   string    `json:"port_of_loading,omitempty"`
	PortOfDischarge string    `json:"port_of_discharge,omitempty"`
	CPC             string    `json:"cpc,omitempty"`
	CurrencyCode    string    `json:"currency_code,omitempty"`
	ExchangeRate    float64   `json:"exchange_rate,omitempty"`
	CountryOfOrigin string    `json:"country_of_origin,omitempty"`
	GrossWeight     float64   `json:"gross_weight,omitempty"`
	NetWeight       float64   `json:"net_weight,omitempty"`
	PackageCount    int       `json:"package_count,omitempty"`
	PackageType     string    `json:"package_type,omitempty"`
	FreightTotal    float64   `json:"freight_total,omitempty"`
	InsuranceTotal  float64   `json:"insurance_total,omitempty"`

	ShipmentRef string `json:"shipment_ref,omitempty"`
	Shipper     *Party `json:"shipper,omitempty"`
	Consignee   *Party `json:"consignee,omitempty"`
	Broker      *Party `json:"broker,omitempty"`

	Containers  []Container `json:"containers,omitempty"`
	HeaderNotes []string    `json:"header_notes,omitempty"`

	// Line items may arrive from three upstream sources. Resolution
	// priority is fixed: Items, then InvoiceItems, then RawItems.
	// Callers must resolve once via ResolveItems, not pick ad hoc.
	Items        []LineItem `json:"items,omitempty"`
	InvoiceItems []LineItem `json:"invoice_items,omitempty"`
	RawItems     []LineItem `json:"raw_items,omitempty"`

	SequenceNumber int  `json:"sequence_number"`
	Amendment      bool `json:"amendment,omitempty"`

	SubmissionStatus    string `json:"submission_status,omitempty"`
	SubmissionReference string `json:"submission_reference,omitempty"`
}

// Load reads a declaration aggregate from a JSON file.
func Load(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read declaration: %w", err)
	}
	var d Declaration
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse declaration: %w", err)
	}
	if d.ID == "" {
		return nil, fmt.Errorf("declaration missing id")
	}
	return &d, nil
}
