package sanitizer

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "dashed US number",
			input: "555-123-4567",
			want:  "+15551234567",
		},
		{
			name:  "with parentheses",
			input: "(212) 555-1234",
			want:  "+12125551234",
		},
		{
			name:  "leading country code",
			input: "+1 212 555 1234",
			want:  "+12125551234",
		},
		{
			name:  "international number keeps its country",
			input: "+972541234567",
			want:  "+972541234567",
		},
		{
			name:  "leading and trailing spaces",
			input: "  5551234567  ",
			want:  "+15551234567",
		},
		{
			name:  "too short",
			input: "12345",
			want:  "",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "letters only",
			input: "call me",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.input); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	inputs := []string{"555-123-4567", "+972541234567", "(212) 555-1234"}
	for _, in := range inputs {
		once := NormalizePhone(in)
		if twice := NormalizePhone(once); twice != once {
			t.Errorf("NormalizePhone not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestDigitsOnly(t *testing.T) {
	if got := DigitsOnly("(555) 123-4567 ext"); got != "5551234567" {
		t.Errorf("DigitsOnly = %q", got)
	}
}
