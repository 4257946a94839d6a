package declaration

import "testing"

func TestResolveItems_Precedence(t *testing.T) {
	decl := []LineItem{{Description: "from declaration"}}
	inv := []LineItem{{Description: "from invoice"}}
	raw := []LineItem{{Description: "from raw"}}

	tests := []struct {
		name string
		d    Declaration
		want ItemSource
		desc string
	}{
		{"declaration wins", Declaration{Items: decl, InvoiceItems: inv, RawItems: raw}, SourceDeclaration, "from declaration"},
		{"invoice over raw", Declaration{InvoiceItems: inv, RawItems: raw}, SourceInvoice, "from invoice"},
		{"raw as last resort", Declaration{RawItems: raw}, SourceRaw, "from raw"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, items := ResolveItems(&tt.d)
			if source != tt.want {
				t.Errorf("source = %s, want %s", source, tt.want)
			}
			if len(items) != 1 || items[0].Description != tt.desc {
				t.Errorf("items = %v, want single %q", items, tt.desc)
			}
		})
	}
}

func TestResolveItems_Empty(t *testing.T) {
	source, items := ResolveItems(&Declaration{})
	if source != SourceNone {
		t.Errorf("source = %s, want %s", source, SourceNone)
	}
	if items != nil {
		t.Errorf("items = %v, want nil", items)
	}
}
