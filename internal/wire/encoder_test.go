package wire

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewire/internal/declaration"
)

func sampleDeclaration() *declaration.Declaration {
	return &declaration.Declaration{
		ID:              "dec-001",
		Country:         "BB",
		Vessel:          "MV Caribbean Star",
		ManifestNumber:  "MAN-2025-118",
		BillOfLading:    "BOL-55821",
		ArrivalDate:     time.Date(2025, 2, 27, 0, 0, 0, 0, time.UTC),
		DeclarationDate: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		PortOfLoading:   "USMIA",
		PortOfDischarge: "BBBGI",
		CPC:             "4000",
		CurrencyCode:    "USD",
		ExchangeRate:    2.0281,
		CountryOfOrigin: "USA",
		GrossWeight:     1250.5,
		NetWeight:       1100.25,
		PackageCount:    48,
		PackageType:     "CTN",
		Consignee:       &declaration.Party{Name: "Island Imports Ltd"},
		Shipper:         &declaration.Party{Name: "Miami Freight Co"},
		SequenceNumber:  1,
	}
}

func TestFilename(t *testing.T) {
	date := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "00123402032025.001", Filename("1234", date, 1, false))
	assert.Equal(t, "00123402032025A.001", Filename("1234", date, 1, true))
	assert.Equal(t, "99887702032025.012", Filename("998877", date, 12, false))
}

func TestEncode_RecordOrder(t *testing.T) {
	d := sampleDeclaration()
	d.Containers = []declaration.Container{{Number: "MSCU1234567", SealNumber: "S-99"}}
	d.HeaderNotes = []string{"perishable goods"}

	items := []declaration.LineItem{
		{
			TariffNumber:    "8471.30",
			Description:     "Laptop computers",
			Quantity:        10,
			UnitCode:        "NMB",
			CountryOfOrigin: "CHN",
			FOBValue:        8500,
			CIFValue:        8900,
			FreightCharge:   300,
			InsuranceCharge: 100,
			CustomsDuty:     1780,
			Wharfage:        89,
			Notes:           []string{"serials on file"},
		},
		{
			TariffNumber: "4901.99",
			Description:  "Printed manuals",
			Quantity:     200,
			FOBValue:     400,
			CIFValue:     430,
		},
	}

	doc, err := NewEncoder().Encode(d, Options{TraderID: "1234", Items: items, Sequence: 1})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(doc.Content, "\r\n"), "\r\n")
	tags := make([]string, len(lines))
	for i, l := range lines {
		tags[i] = strings.SplitN(l, Delimiter, 2)[0]
	}
	want := []string{
		TagHeader,
		TagContainer,
		TagHeaderInfo,
		TagItem, TagCharge, TagCharge, TagTax, TagTax, TagItemInfo,
		TagItem,
		TagTrailer,
	}
	if diff := cmp.Diff(want, tags); diff != "" {
		t.Errorf("record order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, doc.ItemCount)
	assert.Equal(t, "00123402032025.001", doc.Filename)
	assert.True(t, strings.HasSuffix(doc.Content, "\r\n"))
}

func TestEncode_TrailerLineCount(t *testing.T) {
	shapes := []struct {
		name       string
		containers int
		notes      int
		items      []declaration.LineItem
	}{
		{
			name:  "single bare item",
			items: []declaration.LineItem{{TariffNumber: "1", Description: "x", FOBValue: 1, CIFValue: 1}},
		},
		{
			name:       "containers and levies",
			containers: 3,
			notes:      2,
			items: []declaration.LineItem{
				{TariffNumber: "1", Description: "a", FOBValue: 1, CIFValue: 1, CustomsDuty: 5, Wharfage: 1,
					OtherLevies: []declaration.Levy{{Code: "ENV", Amount: 2}, {Code: "VAT", Amount: 0}}},
				{TariffNumber: "2", Description: "b", FOBValue: 1, CIFValue: 1, FreightCharge: 3,
					Notes: []string{"n1", "n2", "n3"}},
			},
		},
	}

	for _, shape := range shapes {
		t.Run(shape.name, func(t *testing.T) {
			d := sampleDeclaration()
			for i := 0; i < shape.containers; i++ {
				d.Containers = append(d.Containers, declaration.Container{Number: "C"})
			}
			for i := 0; i < shape.notes; i++ {
				d.HeaderNotes = append(d.HeaderNotes, "note")
			}

			doc, err := NewEncoder().Encode(d, Options{TraderID: "42", Items: shape.items, Sequence: 1})
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSuffix(doc.Content, "\r\n"), "\r\n")
			assert.Equal(t, len(lines), doc.LineCount)

			trailer := lines[len(lines)-1]
			fields := strings.Split(trailer, Delimiter)
			require.Len(t, fields, 2, "trailer carries exactly one data field")
			assert.Equal(t, TagTrailer, fields[0])
			assert.Equal(t, Numeric(int64(len(lines)), 6), fields[1])
		})
	}
}

func TestEncode_PositiveAmountsOnly(t *testing.T) {
	d := sampleDeclaration()
	items := []declaration.LineItem{{
		TariffNumber: "8471.30",
		Description:  "No charges",
		FOBValue:     100,
		CIFValue:     100,
		// all charge/tax amounts zero
	}}
	doc, err := NewEncoder().Encode(d, Options{TraderID: "1", Items: items, Sequence: 1})
	require.NoError(t, err)
	assert.NotContains(t, doc.Content, Delimiter+ChargeFreight+Delimiter)
	assert.NotContains(t, doc.Content, Delimiter+TaxCustomsDuty+Delimiter)
	assert.Equal(t, 3, doc.LineCount) // header, item, trailer
}

func TestEncode_Errors(t *testing.T) {
	d := sampleDeclaration()
	_, err := NewEncoder().Encode(d, Options{TraderID: "1", Items: nil, Sequence: 1})
	assert.Error(t, err)

	_, err = NewEncoder().Encode(d, Options{Items: []declaration.LineItem{{}}, Sequence: 1})
	assert.Error(t, err)
}
