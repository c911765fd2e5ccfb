package utils

import "testing"

func TestNormalizeCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"próxima", "PROXIMA"},
		{"  Começar ", "COMECAR"},
		{"dúvida qual o prazo?", "DUVIDA QUAL O PRAZO?"},
		{"b", "B"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeCommand(tt.input); got != tt.want {
				t.Errorf("NormalizeCommand(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLastDigits(t *testing.T) {
	tests := []struct {
		address string
		want    string
	}{
		{"5511987657291@s.whatsapp.net", "7291"},
		{"123", "123"},
		{"abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			if got := LastDigits(tt.address, 4); got != tt.want {
				t.Errorf("LastDigits(%q) = %q, want %q", tt.address, got, tt.want)
			}
		})
	}
}
