package knowledge

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContext(t *testing.T) {
	passages := []Passage{
		{Content: "regra um"},
		{Content: "regra dois"},
		{Content: "regra três"},
	}

	got := FormatContext(passages, 2)
	assert.Equal(t, "[Trecho 1]\nregra um\n\n[Trecho 2]\nregra dois\n", got)
	assert.Empty(t, FormatContext(nil, 8))
}

func TestWeaviateSearch_ParsesPassages(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/graphql" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"Get":{"Document":[
			{"content":"Vendas são validadas em 30 dias.","source":"regulamento.pdf"},
			{"content":"","source":"vazio"},
			{"content":"Níveis: bronze, prata e ouro.","source":"regulamento.pdf"}
		]}}}`))
	}))
	defer srv.Close()

	s, err := NewWeaviateSearch(strings.TrimPrefix(srv.URL, "http://"), "http", "Document")
	require.NoError(t, err)

	passages, err := s.Search(context.Background(), "prazos de validação", 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "regulamento.pdf", passages[0].Source)
	assert.Contains(t, passages[1].Content, "bronze")

	assert.Contains(t, body, "Document")
	assert.Contains(t, body, "nearText")
}

func TestWeaviateSearch_GraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"class not found"}]}`))
	}))
	defer srv.Close()

	s, err := NewWeaviateSearch(strings.TrimPrefix(srv.URL, "http://"), "http", "Document")
	require.NoError(t, err)

	_, err = s.Search(context.Background(), "q", 10)
	assert.Error(t, err)
}
