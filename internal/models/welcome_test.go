package models

import (
	"strings"
	"testing"
)

func TestWelcomeConfig_Render(t *testing.T) {
	tests := []struct {
		name     string
		cfg      WelcomeConfig
		welcome  string
		goodbye  string
		noInvite bool
	}{
		{
			name:     "defaults without group name or link",
			cfg:      WelcomeConfig{Enabled: true},
			welcome:  "Olá Ana! 👋\n\nVi que você entrou no grupo *do quiz*.",
			goodbye:  "Oi Ana! 👋",
			noInvite: true,
		},
		{
			name:    "default goodbye carries the invite link",
			cfg:     WelcomeConfig{GroupName: "Renda Extra", InviteLink: "https://chat.whatsapp.com/abc"},
			welcome: "*Renda Extra*",
			goodbye: "👉 https://chat.whatsapp.com/abc",
		},
		{
			name:    "custom templates",
			cfg:     WelcomeConfig{GroupName: "G", WelcomeMessage: "{name} ({phone}) em {group}", GoodbyeMessage: "tchau {name}"},
			welcome: "Ana (5511) em G",
			goodbye: "tchau Ana",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Welcome("Ana", "5511"); !strings.Contains(got, tt.welcome) {
				t.Errorf("Welcome() = %q, want it to contain %q", got, tt.welcome)
			}
			got := tt.cfg.Goodbye("Ana", "5511")
			if !strings.Contains(got, tt.goodbye) {
				t.Errorf("Goodbye() = %q, want it to contain %q", got, tt.goodbye)
			}
			if tt.noInvite && strings.Contains(got, "{invite_link}") {
				t.Errorf("Goodbye() left a placeholder: %q", got)
			}
		})
	}
}

func TestWelcomeConfig_UnknownNameFallsBack(t *testing.T) {
	cfg := DefaultWelcomeConfig("g1@g.us")
	if got := cfg.Welcome(" ", "5511"); !strings.HasPrefix(got, "Olá amigo(a)!") {
		t.Errorf("Welcome() = %q", got)
	}
}

func TestWelcomeConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WelcomeConfig
		wantErr bool
	}{
		{"default", *DefaultWelcomeConfig("g1@g.us"), false},
		{"long welcome", WelcomeConfig{WelcomeMessage: strings.Repeat("á", MaxWelcomeMessageLength+1)}, true},
		{"long goodbye", WelcomeConfig{GoodbyeMessage: strings.Repeat("x", MaxWelcomeMessageLength+1)}, true},
		{"plain http link", WelcomeConfig{InviteLink: "http://chat.whatsapp.com/abc"}, true},
		{"max length", WelcomeConfig{WelcomeMessage: strings.Repeat("á", MaxWelcomeMessageLength)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
