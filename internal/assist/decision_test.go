package assist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want RecoveryDecision
	}{
		{
			name: "valid recoverable",
			raw:  `{"recoverable":true,"action":"wait_and_retry","action_details":{"wait_seconds":5},"reasoning":"page still loading"}`,
			want: RecoveryDecision{Recoverable: true, Action: ActionWaitAndRetry,
				ActionDetails: ActionDetails{WaitSeconds: 5}, Reasoning: "page still loading"},
		},
		{
			name: "malformed json fails closed",
			raw:  `the page seems broken, maybe retry?`,
			want: RecoveryDecision{Recoverable: false, Action: ActionAbort, Reasoning: "unparseable recovery response"},
		},
		{
			name: "unknown action fails closed",
			raw:  `{"recoverable":true,"action":"reboot_server"}`,
			want: RecoveryDecision{Recoverable: false, Action: ActionAbort, Reasoning: "recovery action outside vocabulary: reboot_server"},
		},
		{
			name: "abort flagged recoverable is still abort",
			raw:  `{"recoverable":true,"action":"abort","reasoning":"session expired"}`,
			want: RecoveryDecision{Recoverable: false, Action: ActionAbort, Reasoning: "session expired"},
		},
		{
			name: "non-recoverable normalizes action to abort",
			raw:  `{"recoverable":false,"action":"retry"}`,
			want: RecoveryDecision{Recoverable: false, Action: ActionAbort},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDecision([]byte(tt.raw)))
		})
	}
}

func TestParseSuggestion(t *testing.T) {
	s, ok := ParseSuggestion([]byte(`{"selector":"#txtVesselName","reasoning":"label matches"}`))
	assert.True(t, ok)
	assert.Equal(t, "#txtVesselName", s.Selector)

	_, ok = ParseSuggestion([]byte(`{"selector":""}`))
	assert.False(t, ok)

	_, ok = ParseSuggestion([]byte(`try the vessel field`))
	assert.False(t, ok)
}

func TestParseInterpretation(t *testing.T) {
	r := ParseInterpretation([]byte(`{"success":true,"confidence":0.8,"reference":"C-2025-0042"}`))
	assert.True(t, r.Success)
	assert.Equal(t, 0.8, r.Confidence)
	assert.Equal(t, "C-2025-0042", r.Reference)

	r = ParseInterpretation([]byte(`not json`))
	assert.False(t, r.Success)
	assert.Equal(t, 0.0, r.Confidence)

	r = ParseInterpretation([]byte(`{"success":true,"confidence":3.5}`))
	assert.Equal(t, 1.0, r.Confidence)
}
