package wire

import (
	"fmt"
	"strings"
	"time"

	"tradewire/internal/declaration"
)

// Record type tags. The first field of every T12 line identifies the
// record's structure.
const (
	TagHeader     = "01"
	TagContainer  = "02"
	TagHeaderInfo = "03"
	TagItem       = "10"
	TagCharge     = "11"
	TagTax        = "12"
	TagItemInfo   = "13"
	TagTrailer    = "99"
)

// Charge and tax codes used inside charge/tax records.
const (
	ChargeFreight   = "FRT"
	ChargeInsurance = "INS"
	TaxCustomsDuty  = "ICD"
	TaxWharfage     = "WHF"
)

const crlf = "\r\n"

// Document is a fully rendered wire document. It is immutable once
// produced by the encoder.
type Document struct {
	Content   string
	Filename  string
	TraderID  string
	LineCount int
	ItemCount int
}

// Options carries the per-submission inputs the encoder needs beyond
// the declaration itself.
type Options struct {
	TraderID string
	// Items as resolved by declaration.ResolveItems. The encoder never
	// re-derives the source precedence.
	Items     []declaration.LineItem
	Sequence  int
	Amendment bool
}

// Encoder renders declarations into T12 documents.
type Encoder struct{}

// NewEncoder returns a ready encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode emits the fixed record sequence: header, containers, header
// info, then per item an item record with its charge/tax/info records,
// and finally the trailer. The trailer's only data field is the total
// line count including the trailer line itself.
func (e *Encoder) Encode(d *declaration.Declaration, opts Options) (*Document, error) {
	if opts.TraderID == "" {
		return nil, fmt.Errorf("encode: trader id required")
	}
	if len(opts.Items) == 0 {
		return nil, fmt.Errorf("encode: declaration %s has no line items", d.ID)
	}

	var lines []string
	lines = append(lines, e.headerRecord(d))

	for _, c := range d.Containers {
		lines = append(lines, record(TagContainer,
			Text(c.Number, 17),
			Text(c.SealNumber, 15),
			Text(c.Size, 4),
		))
	}

	for _, note := range d.HeaderNotes {
		lines = append(lines, record(TagHeaderInfo, Text(note, 70)))
	}

	for i, item := range opts.Items {
		lineNo := int64(i + 1)
		lines = append(lines, e.itemRecord(lineNo, item))
		lines = append(lines, e.chargeRecords(lineNo, item)...)
		lines = append(lines, e.taxRecords(lineNo, item)...)
		for _, note := range item.Notes {
			lines = append(lines, record(TagItemInfo, Numeric(lineNo, 4), Text(note, 70)))
		}
	}

	total := len(lines) + 1
	lines = append(lines, record(TagTrailer, Numeric(int64(total), 6)))

	doc := &Document{
		Content:   strings.Join(lines, crlf) + crlf,
		Filename:  Filename(opts.TraderID, d.DeclarationDate, opts.Sequence, opts.Amendment),
		TraderID:  opts.TraderID,
		LineCount: total,
		ItemCount: len(opts.Items),
	}
	return doc, nil
}

func (e *Encoder) headerRecord(d *declaration.Declaration) string {
	consignee := partyName(d.Consignee)
	shipper := partyName(d.Shipper)
	broker := partyName(d.Broker)

	return record(TagHeader,
		Text(d.ManifestNumber, 12),
		Text(d.Vessel, 20),
		Date(d.ArrivalDate),
		Text(d.PortOfLoading, 5),
		Text(d.PortOfDischarge, 5),
		Text(d.CPC, 4),
		Text(d.CurrencyCode, 3),
		Decimal(d.ExchangeRate, 4),
		CountryCode(d.CountryOfOrigin),
		Decimal(d.GrossWeight, 2),
		Decimal(d.NetWeight, 2),
		Numeric(int64(d.PackageCount), 6),
		Text(d.PackageType, 3),
		Text(d.BillOfLading, 20),
		Text(consignee, 35),
		Text(shipper, 35),
		Text(broker, 35),
	)
}

func (e *Encoder) itemRecord(lineNo int64, item declaration.LineItem) string {
	return record(TagItem,
		Numeric(lineNo, 4),
		TariffNumber(item.TariffNumber),
		Text(item.Description, 35),
		Decimal(item.Quantity, 2),
		Text(item.UnitCode, 3),
		CountryCode(item.CountryOfOrigin),
		Decimal(item.FOBValue, 2),
		Decimal(item.CIFValue, 2),
	)
}

// chargeRecords emits freight and insurance allocations, each only when
// its amount is positive.
func (e *Encoder) chargeRecords(lineNo int64, item declaration.LineItem) []string {
	var out []string
	if item.FreightCharge > 0 {
		out = append(out, record(TagCharge, Numeric(lineNo, 4), ChargeFreight, Decimal(item.FreightCharge, 2)))
	}
	if item.InsuranceCharge > 0 {
		out = append(out, record(TagCharge, Numeric(lineNo, 4), ChargeInsurance, Decimal(item.InsuranceCharge, 2)))
	}
	return out
}

// taxRecords emits duty, wharfage and any other levies, each only when
// its amount is positive.
func (e *Encoder) taxRecords(lineNo int64, item declaration.LineItem) []string {
	var out []string
	if item.CustomsDuty > 0 {
		out = append(out, record(TagTax, Numeric(lineNo, 4), TaxCustomsDuty, Decimal(item.CustomsDuty, 2)))
	}
	if item.Wharfage > 0 {
		out = append(out, record(TagTax, Numeric(lineNo, 4), TaxWharfage, Decimal(item.Wharfage, 2)))
	}
	for _, levy := range item.OtherLevies {
		if levy.Amount > 0 {
			out = append(out, record(TagTax, Numeric(lineNo, 4), Text(levy.Code, 3), Decimal(levy.Amount, 2)))
		}
	}
	return out
}

func record(fields ...string) string {
	return strings.Join(fields, Delimiter)
}

func partyName(p *declaration.Party) string {
	if p == nil {
		return ""
	}
	return p.Name
}

// Filename builds the deterministic upload name: trader id left-padded
// to 6 digits, declaration date as DDMMYYYY, then a dot and the 3-digit
// sequence. Amendments carry a literal A between the date and the dot.
//
// Filename("1234", 2025-03-02, 1, false) == "00123402032025.001"
func Filename(traderID string, date time.Time, sequence int, amendment bool) string {
	id := traderID
	if len(id) < 6 {
		id = strings.Repeat("0", 6-len(id)) + id
	}
	amend := ""
	if amendment {
		amend = "A"
	}
	return fmt.Sprintf("%s%s%s.%03d", id, date.Format("02012006"), amend, sequence)
}
