package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTopic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "Accents and stopwords removed",
			text: "Qual é o prazo de validação das vendas no programa?",
			want: "prazo validacao vendas",
		},
		{
			name: "Only first three keywords",
			text: "Quantos níveis de recompensa existem e quais benefícios extras?",
			want: "niveis recompensa existem",
		},
		{
			name: "Empty text",
			text: "",
			want: DefaultTopic,
		},
		{
			name: "Only short words",
			text: "O que é?",
			want: DefaultTopic,
		},
		{
			name: "Repeated words collapse",
			text: "Bônus bônus bônus mensal",
			want: "bonus mensal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTopic(tt.text))
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	used := []string{"prazo validacao vendas", "niveis recompensa existem"}

	assert.True(t, IsDuplicate("prazo validacao vendas", used), "equal topic")
	assert.True(t, IsDuplicate("validacao prazo cadastro", used), "two shared keywords")
	assert.False(t, IsDuplicate("prazo saque conta", used), "one shared keyword")
	assert.False(t, IsDuplicate("geral", nil))
	assert.True(t, IsDuplicate("geral", []string{"geral"}))
}

func TestValidateAndGetTopic(t *testing.T) {
	used := []string{"prazo validacao vendas"}

	valid, topic := ValidateAndGetTopic("Qual o prazo de validação das vendas?", used)
	assert.False(t, valid)
	assert.Equal(t, "prazo validacao vendas", topic)

	valid, topic = ValidateAndGetTopic("Como funciona o saque do saldo?", used)
	assert.True(t, valid)
	assert.Equal(t, "funciona saque saldo", topic)
}

func TestFormatUsedTopics(t *testing.T) {
	assert.Equal(t, "  (nenhum)", FormatUsedTopics(nil))
	assert.Equal(t, "  🚫 a b\n  🚫 c d", FormatUsedTopics([]string{"a b", "c d"}))
}
