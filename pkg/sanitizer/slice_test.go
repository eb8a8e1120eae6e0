package sanitizer

import (
	"reflect"
	"testing"
)

func TestNormalizeAliases(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "lowercase and collapse",
			input: []string{"Hair Cut", "  TRIM "},
			want:  []string{"hair cut", "trim"},
		},
		{
			name:  "punctuation becomes space",
			input: []string{"kid's cut", "hot-towel shave"},
			want:  []string{"kid s cut", "hot towel shave"},
		},
		{
			name:  "remove duplicates",
			input: []string{"Fade", "fade", "FADE"},
			want:  []string{"fade"},
		},
		{
			name:  "filter empty strings",
			input: []string{"fade", "", "  ", "--"},
			want:  []string{"fade"},
		},
		{
			name:  "empty input",
			input: nil,
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAliases(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeAliases(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
