package declaration

// ItemSource names which upstream source supplied the line items for a
// submission attempt. It is resolved exactly once per attempt and passed
// down the pipeline so the precedence is never re-derived mid-flight.
type ItemSource string

const (
	SourceDeclaration ItemSource = "declaration"
	SourceInvoice     ItemSource = "invoice"
	SourceRaw         ItemSource = "raw"
	SourceNone        ItemSource = "none"
)

// ResolveItems applies the fixed source precedence: explicit declaration
// items win over invoice-derived items, which win over the raw generic
// array. An empty result is not an error here; the orchestrator decides
// whether missing items block the submission.
func ResolveItems(d *Declaration) (ItemSource, []LineItem) {
	switch {
	case len(d.Items) > 0:
		return SourceDeclaration, d.Items
	case len(d.InvoiceItems) > 0:
		return SourceInvoice, d.InvoiceItems
	case len(d.RawItems) > 0:
		return SourceRaw, d.RawItems
	default:
		return SourceNone, nil
	}
}
