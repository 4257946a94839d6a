package submit

import (
	"strconv"

	"tradewire/internal/declaration"
)

// PrecheckResult separates blocking errors from advisory warnings.
// Errors block submission unless the caller sets the override flag;
// warnings are surfaced and never block.
type PrecheckResult struct {
	Errors   []string
	Warnings []string
}

// Blocked reports whether the declaration may not be submitted.
func (p PrecheckResult) Blocked(override bool) bool {
	return len(p.Errors) > 0 && !override
}

// Precheck validates submission preconditions. Items must already have
// been resolved once by the orchestrator.
func Precheck(d *declaration.Declaration, items []declaration.LineItem) PrecheckResult {
	var res PrecheckResult

	if len(items) == 0 {
		res.Errors = append(res.Errors, "declaration has no line items")
	}
	if d.DeclarationDate.IsZero() {
		res.Errors = append(res.Errors, "declaration date is missing")
	}
	for i, item := range items {
		if item.TariffNumber == "" {
			res.Errors = append(res.Errors, "line item "+strconv.Itoa(i+1)+" has no tariff number")
		}
	}

	if d.ArrivalDate.IsZero() {
		res.Warnings = append(res.Warnings, "arrival date is missing")
	}
	if d.BillOfLading == "" {
		res.Warnings = append(res.Warnings, "bill of lading number is missing")
	}
	if d.Consignee == nil || d.Consignee.ContactPhone == "" && d.Consignee.ContactEmail == "" {
		res.Warnings = append(res.Warnings, "consignee contact details are missing")
	}
	if d.Vessel == "" {
		res.Warnings = append(res.Warnings, "vessel name is missing")
	}

	return res
}
