package portal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tradewire/internal/assist"
)

func TestResolve_FallbackOrder(t *testing.T) {
	driver := newFakeDriver()
	driver.selectors["[name='txtVesselName']"] = true

	loc := NewLocator(driver, nil, zap.NewNop())
	sel, err := loc.Resolve(context.Background(), FieldMapping{
		Field:     "vessel",
		Selectors: []string{"#txtVessel", "[name='txtVesselName']", "[name='vessel']"},
	})
	require.NoError(t, err)
	assert.Equal(t, "[name='txtVesselName']", sel)
}

func TestResolve_PrefersEarlierSelector(t *testing.T) {
	driver := newFakeDriver()
	driver.selectors["#txtVessel"] = true
	driver.selectors["[name='txtVesselName']"] = true

	loc := NewLocator(driver, nil, zap.NewNop())
	sel, err := loc.Resolve(context.Background(), FieldMapping{
		Field:     "vessel",
		Selectors: []string{"#txtVessel", "[name='txtVesselName']"},
	})
	require.NoError(t, err)
	assert.Equal(t, "#txtVessel", sel)
}

func TestResolve_AssistantSuggestionVerified(t *testing.T) {
	driver := newFakeDriver()
	driver.selectors["#ctl00_txtVessel2024"] = true // portal got redesigned

	assistant := &scriptedAssistant{
		suggestion:   assist.SelectorSuggestion{Selector: "#ctl00_txtVessel2024"},
		suggestionOK: true,
	}
	loc := NewLocator(driver, assistant, zap.NewNop())
	sel, err := loc.Resolve(context.Background(), FieldMapping{
		Field:     "vessel",
		Selectors: []string{"#txtVessel", "[name='txtVesselName']"},
	})
	require.NoError(t, err)
	assert.Equal(t, "#ctl00_txtVessel2024", sel)
}

func TestResolve_UnverifiableSuggestionDiscarded(t *testing.T) {
	driver := newFakeDriver() // nothing resolves

	assistant := &scriptedAssistant{
		suggestion:   assist.SelectorSuggestion{Selector: "#hallucinated"},
		suggestionOK: true,
	}
	loc := NewLocator(driver, assistant, zap.NewNop())
	_, err := loc.Resolve(context.Background(), FieldMapping{
		Field:     "vessel",
		Selectors: []string{"#txtVessel"},
	})
	assert.Error(t, err, "a suggestion that does not resolve must never be applied")
}

func TestResolve_FieldNameSuggestion(t *testing.T) {
	driver := newFakeDriver()
	driver.selectors[`[name="VesselName"]`] = true

	assistant := &scriptedAssistant{
		suggestion:   assist.SelectorSuggestion{FieldName: "VesselName"},
		suggestionOK: true,
	}
	loc := NewLocator(driver, assistant, zap.NewNop())
	sel, err := loc.Resolve(context.Background(), FieldMapping{
		Field:     "vessel",
		Selectors: []string{"#txtVessel"},
	})
	require.NoError(t, err)
	assert.Equal(t, `[name="VesselName"]`, sel)
}

func TestApply_TransformAndDefault(t *testing.T) {
	driver := newFakeDriver()
	driver.selectors["#txtOrigin"] = true

	loc := NewLocator(driver, nil, zap.NewNop())
	m := FieldMapping{
		Field:     "country_of_origin",
		Selectors: []string{"#txtOrigin"},
		Transform: func(v string) string { return v + "!" },
		Default:   "USA",
	}

	require.NoError(t, loc.Apply(context.Background(), m, ""))
	assert.Equal(t, "USA!", driver.fills["#txtOrigin"])

	require.NoError(t, loc.Apply(context.Background(), m, "CHN"))
	assert.Equal(t, "CHN!", driver.fills["#txtOrigin"])
}

func TestApply_EmptyValueNoDefault(t *testing.T) {
	driver := newFakeDriver()
	loc := NewLocator(driver, nil, zap.NewNop())
	// No selector resolves, but an empty value is a no-op before
	// resolution ever happens.
	err := loc.Apply(context.Background(), FieldMapping{Field: "x", Selectors: []string{"#gone"}}, "")
	assert.NoError(t, err)
}
