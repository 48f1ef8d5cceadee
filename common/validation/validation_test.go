package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmissionRule(t *testing.T) {
	rule, err := NewAdmissionRule(`entry.duration >= 0 && size(entry.title) <= 10`)
	require.NoError(t, err)

	assert.NoError(t, rule.Admit("Intro", 120))
	assert.NoError(t, rule.Admit("", 0))
	assert.ErrorIs(t, rule.Admit("Intro", -1), ErrRejected)
	assert.ErrorIs(t, rule.Admit("A very long title", 5), ErrRejected)
}

func TestAdmissionRule_Empty(t *testing.T) {
	rule, err := NewAdmissionRule("")
	require.NoError(t, err)
	assert.NoError(t, rule.Admit("anything", -100))

	var nilRule *AdmissionRule
	assert.NoError(t, nilRule.Admit("anything", -100))
}

func TestNewAdmissionRule_Invalid(t *testing.T) {
	_, err := NewAdmissionRule(`entry.duration >=`)
	assert.ErrorContains(t, err, "CEL compilation error")

	_, err = NewAdmissionRule(`entry.duration + 1`)
	assert.ErrorContains(t, err, "must return bool")
}

func TestValidateMergePatch(t *testing.T) {
	v := NewPatchValidator()

	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"title only", `{"title":"New"}`, ""},
		{"both fields", `{"title":"New","duration":90}`, ""},
		{"not an object", `[1,2]`, "JSON object"},
		{"empty", `{}`, "empty"},
		{"id not editable", `{"id":7}`, `"id" is not editable`},
		{"likes not editable", `{"likes":7}`, "not editable"},
		{"remove title", `{"title":null}`, "cannot be removed"},
		{"title wrong type", `{"title":5}`, "must be a string"},
		{"duration fractional", `{"duration":1.5}`, "whole number"},
		{"duration wrong type", `{"duration":"90"}`, "must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateMergePatch([]byte(tt.doc))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
