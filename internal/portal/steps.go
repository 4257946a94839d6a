package portal

import (
	"context"
	"fmt"
	"sort"
)

// Default selector chains for the portal login form. Job credentials
// may override the first selector per field.
var (
	loginUserSelectors   = []string{"#username", "[name='username']", "[name='txtUserName']", "#user"}
	loginPassSelectors   = []string{"#password", "[name='password']", "[name='txtPassword']", "#pass"}
	loginButtonSelectors = []string{"#login", "[name='btnLogin']", "button[type='submit']", "input[type='submit']"}
	newEntrySelectors    = []string{"#btnNewEntry", "[name='btnNewDeclaration']", "a[href*='NewEntry']"}
	addItemSelectors     = []string{"#btnAddItem", "[name='btnAddItem']", "a[href*='AddItem']"}
	saveItemSelectors    = []string{"#btnSaveItem", "[name='btnSaveItem']", "button.save-item"}
	submitSelectors      = []string{"#btnSubmit", "[name='btnSubmit']", "input[type='submit'][value='Submit']"}
)

// headerMappings maps declaration header fields to their selector
// chains on the entry form.
var headerMappings = []FieldMapping{
	{Field: "vessel", Selectors: []string{"#txtVessel", "[name='txtVesselName']", "[name='vessel']"}},
	{Field: "manifest_number", Selectors: []string{"#txtManifest", "[name='txtManifestNo']", "[name='manifest']"}},
	{Field: "bill_of_lading", Selectors: []string{"#txtBOL", "[name='txtBillOfLading']", "[name='bol']"}},
	{Field: "arrival_date", Selectors: []string{"#txtArrivalDate", "[name='txtArrivalDate']"}, Type: FieldDate},
	{Field: "port_of_loading", Selectors: []string{"#selPortLoading", "[name='selPortOfLoading']"}, Type: FieldSelect},
	{Field: "port_of_discharge", Selectors: []string{"#selPortDischarge", "[name='selPortOfDischarge']"}, Type: FieldSelect},
	{Field: "cpc", Selectors: []string{"#txtCPC", "[name='txtCPC']"}},
	{Field: "currency_code", Selectors: []string{"#selCurrency", "[name='selCurrency']"}, Type: FieldSelect},
	{Field: "country_of_origin", Selectors: []string{"#selOrigin", "[name='selCountryOfOrigin']"}, Type: FieldSelect},
	{Field: "gross_weight", Selectors: []string{"#txtGrossWeight", "[name='txtGrossWeight']"}},
	{Field: "package_count", Selectors: []string{"#txtPackages", "[name='txtNoOfPackages']"}},
	{Field: "consignee", Selectors: []string{"#txtConsignee", "[name='txtConsigneeName']"}},
	{Field: "shipper", Selectors: []string{"#txtShipper", "[name='txtShipperName']"}},
}

// itemMappings maps line-item fields on the add-item dialog.
var itemMappings = []FieldMapping{
	{Field: "tariff_number", Selectors: []string{"#txtTariff", "[name='txtTariffNo']"}},
	{Field: "description", Selectors: []string{"#txtDescription", "[name='txtGoodsDescription']"}},
	{Field: "quantity", Selectors: []string{"#txtQuantity", "[name='txtQty']"}},
	{Field: "country_of_origin", Selectors: []string{"#selItemOrigin", "[name='selItemOrigin']"}, Type: FieldSelect},
	{Field: "fob_value", Selectors: []string{"#txtFOB", "[name='txtFOBValue']"}},
	{Field: "cif_value", Selectors: []string{"#txtCIF", "[name='txtCIFValue']"}},
}

// BuildSteps turns a job into the ordered pipeline: navigate,
// authenticate, then for submissions fill the header, add each item and
// submit. Validation runs after the pipeline, not as a step.
func BuildSteps(e *Engine, job *Job) []Step {
	loc := e.Locator()

	loginURL := job.LoginURL
	if loginURL == "" {
		loginURL = job.BaseURL
	}

	steps := []Step{
		{
			Name: "navigate_login",
			Run: func(ctx context.Context) error {
				if err := e.driver.Navigate(ctx, loginURL); err != nil {
					return err
				}
				return e.driver.WaitStable(ctx)
			},
		},
		{
			Name: "authenticate",
			Run: func(ctx context.Context) error {
				userSel := withOverride(job.Credentials.FieldSelectors, "username", loginUserSelectors)
				passSel := withOverride(job.Credentials.FieldSelectors, "password", loginPassSelectors)
				btnSel := withOverride(job.Credentials.FieldSelectors, "login_button", loginButtonSelectors)

				if err := loc.Apply(ctx, FieldMapping{Field: "username", Selectors: userSel}, job.Credentials.Username); err != nil {
					return err
				}
				if err := loc.Apply(ctx, FieldMapping{Field: "password", Selectors: passSel}, job.Credentials.Password); err != nil {
					return err
				}
				if err := clickFirst(ctx, e.driver, btnSel); err != nil {
					return err
				}
				return e.driver.WaitStable(ctx)
			},
		},
	}

	if job.Action == JobActionLoginTest {
		return steps
	}

	if job.BaseURL != "" && job.BaseURL != loginURL {
		steps = append(steps, Step{
			Name: "navigate_entry_form",
			Run: func(ctx context.Context) error {
				if err := e.driver.Navigate(ctx, job.BaseURL); err != nil {
					return err
				}
				if err := clickFirst(ctx, e.driver, newEntrySelectors); err == nil {
					return e.driver.WaitStable(ctx)
				}
				return e.driver.WaitStable(ctx)
			},
		})
	}

	header := job.HeaderData
	if len(header) == 0 {
		header = job.FormData
	}
	steps = append(steps, Step{
		Name: "fill_header",
		Run: func(ctx context.Context) error {
			return fillMapped(ctx, loc, headerMappings, header)
		},
	})

	for i := range job.Items {
		item := job.Items[i]
		steps = append(steps, Step{
			Name: fmt.Sprintf("add_item_%d", i+1),
			Run: func(ctx context.Context) error {
				if err := clickFirst(ctx, e.driver, addItemSelectors); err != nil {
					return err
				}
				if err := e.driver.WaitStable(ctx); err != nil {
					return err
				}
				if err := fillMapped(ctx, loc, itemMappings, item); err != nil {
					return err
				}
				if err := clickFirst(ctx, e.driver, saveItemSelectors); err != nil {
					return err
				}
				return e.driver.WaitStable(ctx)
			},
		})
	}

	steps = append(steps, Step{
		Name: "submit",
		Run: func(ctx context.Context) error {
			if err := clickFirst(ctx, e.driver, submitSelectors); err != nil {
				return err
			}
			return e.driver.WaitStable(ctx)
		},
	})

	return steps
}

// fillMapped applies every mapping that has data, in a stable order so
// reruns behave identically.
func fillMapped(ctx context.Context, loc *Locator, mappings []FieldMapping, data map[string]string) error {
	byField := make(map[string]FieldMapping, len(mappings))
	var order []string
	for _, m := range mappings {
		byField[m.Field] = m
		order = append(order, m.Field)
	}

	// Fields present in the data but not in the mapping table are
	// applied last by their raw name, so portals with extra fields
	// still get their values.
	var extras []string
	for k := range data {
		if _, ok := byField[k]; !ok {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)

	for _, field := range order {
		value, ok := data[field]
		m := byField[field]
		if !ok && m.Default == "" {
			continue
		}
		if err := loc.Apply(ctx, m, value); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	}
	for _, field := range extras {
		m := FieldMapping{Field: field, Selectors: []string{"[name='" + field + "']", "#" + field}}
		if err := loc.Apply(ctx, m, data[field]); err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
	}
	return nil
}

func withOverride(overrides map[string]string, field string, defaults []string) []string {
	if sel, ok := overrides[field]; ok && sel != "" {
		return append([]string{sel}, defaults...)
	}
	return defaults
}

func clickFirst(ctx context.Context, d Driver, selectors []string) error {
	for _, sel := range selectors {
		if ok, err := d.Has(ctx, sel); err == nil && ok {
			return d.Click(ctx, sel)
		}
	}
	return fmt.Errorf("none of %d button selectors resolved", len(selectors))
}
