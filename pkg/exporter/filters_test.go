package exporter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	errs "knexport/pkg/errors"
)

func TestFiltersValidate(t *testing.T) {
	tests := []struct {
		name    string
		filters Filters
		wantErr bool
	}{
		{"no bounds", Filters{}, false},
		{"from only", Filters{FromYM: "2024-01"}, false},
		{"to only", Filters{ToYM: "2024-12"}, false},
		{"same month", Filters{FromYM: "2024-10", ToYM: "2024-10"}, false},
		{"ordered", Filters{FromYM: "2023-11", ToYM: "2024-02"}, false},
		{"month 13", Filters{FromYM: "2024-13"}, true},
		{"month 00", Filters{ToYM: "2024-00"}, true},
		{"single digit month", Filters{FromYM: "2024-1"}, true},
		{"full date", Filters{FromYM: "2024-01-01"}, true},
		{"slash separator", Filters{ToYM: "2024/01"}, true},
		{"reversed", Filters{FromYM: "2024-05", ToYM: "2024-04"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filters.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errs.IsType(err, errs.ErrorTypeValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInRange(t *testing.T) {
	tests := []struct {
		ym, from, to string
		want         bool
	}{
		{"2024-10", "", "", true},
		{"2024-10", "2024-10", "2024-10", true},
		{"2024-09", "2024-10", "2024-10", false},
		{"2024-11", "2024-10", "2024-10", false},
		{"2024-01", "2023-12", "", true},
		{"2023-11", "2023-12", "", false},
		{"2025-01", "", "2024-12", false},
		{"2024-12", "", "2024-12", true},
		// malformed values fail open
		{"", "2024-10", "2024-10", true},
		{"2024", "2024-10", "2024-10", true},
		{"Oct 2024", "2024-10", "2024-10", true},
		{"2024-1", "2024-10", "2024-10", true},
	}

	for _, tt := range tests {
		t.Run(tt.ym+"_"+tt.from+"_"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, InRange(tt.ym, tt.from, tt.to))
		})
	}
}

func TestFiltersBounds(t *testing.T) {
	f := Filters{FromYM: "2024-03", ToYM: "2024-06"}

	assert.True(t, f.AboveRange("2024-07"))
	assert.False(t, f.AboveRange("2024-06"))
	assert.False(t, f.AboveRange("garbage"))

	assert.True(t, f.BelowRange("2024-02"))
	assert.False(t, f.BelowRange("2024-03"))
	assert.False(t, f.BelowRange(""))

	open := Filters{}
	assert.False(t, open.AboveRange("2999-12"))
	assert.False(t, open.BelowRange("1900-01"))
	assert.Equal(t, "… to …", open.String())
	assert.Equal(t, "2024-03 to 2024-06", f.String())
}
