package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv() map[string]interface{} {
	return map[string]interface{}{
		"outputs": map[string]interface{}{
			"analysis": map[string]interface{}{
				"status": "success",
				"score":  0.92,
				"count":  float64(3),
				"ready":  true,
			},
			"review": map[string]interface{}{
				"approved": false,
			},
		},
		"context": map[string]interface{}{
			"environment": "production",
		},
	}
}

func TestEvaluateComparisons(t *testing.T) {
	env := testEnv()
	cases := []struct {
		source string
		want   bool
	}{
		{`outputs.analysis.status == 'success'`, true},
		{`outputs.analysis.status != 'success'`, false},
		{`outputs.analysis.status == "failed"`, false},
		{`outputs.analysis.score > 0.9`, true},
		{`outputs.analysis.score >= 0.92`, true},
		{`outputs.analysis.score < 0.9`, false},
		{`outputs.analysis.count <= 3`, true},
		{`outputs.analysis.count == 3`, true},
		{`outputs["analysis"]["status"] == 'success'`, true},
		{`context.environment == 'production'`, true},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.source, env)
		require.NoError(t, err, tc.source)
		assert.Equal(t, tc.want, got, tc.source)
	}
}

func TestEvaluateBooleanOperators(t *testing.T) {
	env := testEnv()
	cases := []struct {
		source string
		want   bool
	}{
		{`outputs.analysis.ready`, true},
		{`!outputs.analysis.ready`, false},
		{`outputs.review.approved`, false},
		{`!outputs.review.approved`, true},
		{`outputs.analysis.ready && outputs.review.approved`, false},
		{`outputs.analysis.ready || outputs.review.approved`, true},
		{`(outputs.analysis.score > 0.9) && (outputs.analysis.status == 'success')`, true},
		{`true`, true},
		{`false || outputs.analysis.ready`, true},
	}
	for _, tc := range cases {
		got, err := Evaluate(tc.source, env)
		require.NoError(t, err, tc.source)
		assert.Equal(t, tc.want, got, tc.source)
	}
}

// A missing lookup must never enable a node: every comparison against an
// undefined value is false, != included.
func TestEvaluateUndefinedLookups(t *testing.T) {
	env := testEnv()
	cases := []string{
		`outputs.missing.status == 'success'`,
		`outputs.missing.status != 'success'`,
		`outputs.analysis.absent > 0`,
		`outputs.analysis.absent == nil`,
		`outputs.missing.status`,
		`nowhere.at.all`,
	}
	for _, source := range cases {
		got, err := Evaluate(source, env)
		require.NoError(t, err, source)
		assert.False(t, got, source)
	}

	// Negation of an undefined lookup is true: undefined is falsy.
	got, err := Evaluate(`!outputs.missing.status`, env)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateTypeMismatch(t *testing.T) {
	env := testEnv()

	// Ordering across mismatched types is false, not an error.
	got, err := Evaluate(`outputs.analysis.status > 5`, env)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = Evaluate(`outputs.analysis.score == 'high'`, env)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		``,
		`outputs.analysis.status ==`,
		`outputs.analysis.status = 'success'`,
		`(outputs.analysis.ready`,
		`outputs.analysis.status == 'unterminated`,
		`outputs.analysis.status & true`,
		`outputs.[x]`,
		`1 == 2 extra`,
	}
	for _, source := range cases {
		_, err := Parse(source)
		assert.Error(t, err, source)
	}
}

func TestExprReuse(t *testing.T) {
	expr, err := Parse(`outputs.analysis.score > threshold`)
	require.NoError(t, err)

	assert.False(t, expr.Eval(map[string]interface{}{
		"outputs":   map[string]interface{}{"analysis": map[string]interface{}{"score": 0.5}},
		"threshold": 0.9,
	}))
	assert.True(t, expr.Eval(map[string]interface{}{
		"outputs":   map[string]interface{}{"analysis": map[string]interface{}{"score": 0.95}},
		"threshold": 0.9,
	}))
}

func TestEvaluateNumericLiterals(t *testing.T) {
	env := map[string]interface{}{
		"outputs": map[string]interface{}{
			"calc": map[string]interface{}{"delta": -2.5},
		},
	}
	got, err := Evaluate(`outputs.calc.delta < -1`, env)
	require.NoError(t, err)
	assert.True(t, got)
}
