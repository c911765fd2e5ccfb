// Package knowledge retrieves regulation passages used as question context,
// hint material and doubt answers.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mroshb/group_quiz_bot/internal/metrics"
	"github.com/mroshb/group_quiz_bot/pkg/errors"
	"github.com/mroshb/group_quiz_bot/pkg/logger"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

type Passage struct {
	Content string `json:"content"`
	Source  string `json:"source"`
}

// KnowledgeSearch returns ranked passages for a query. An empty result is
// not an error.
type KnowledgeSearch interface {
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// FormatContext renders the first max passages as numbered excerpts.
func FormatContext(passages []Passage, max int) string {
	if len(passages) > max {
		passages = passages[:max]
	}
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		parts = append(parts, fmt.Sprintf("[Trecho %d]\n%s\n", i+1, p.Content))
	}
	return strings.Join(parts, "\n")
}

// WeaviateSearch runs nearText queries over a passage class with
// "content" and "source" properties.
type WeaviateSearch struct {
	client    *weaviate.Client
	className string
}

func NewWeaviateSearch(host, scheme, className string) (*WeaviateSearch, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "create weaviate client")
	}
	return &WeaviateSearch{client: client, className: className}, nil
}

func (s *WeaviateSearch) Search(ctx context.Context, query string, topK int) ([]Passage, error) {
	start := time.Now()
	passages, err := s.search(ctx, query, topK)
	metrics.ObserveSearch(time.Since(start), err)
	return passages, err
}

func (s *WeaviateSearch) search(ctx context.Context, query string, topK int) ([]Passage, error) {
	nearText := s.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	result, err := s.client.GraphQL().Get().
		WithClassName(s.className).
		WithFields(graphql.Field{Name: "content"}, graphql.Field{Name: "source"}).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "semantic search")
	}
	if len(result.Errors) > 0 {
		return nil, errors.New(errors.ErrCodeInternalError, "search error: "+result.Errors[0].Message)
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	rows, ok := get[s.className].([]interface{})
	if !ok {
		return nil, nil
	}

	passages := make([]Passage, 0, len(rows))
	for _, row := range rows {
		obj, ok := row.(map[string]interface{})
		if !ok {
			continue
		}
		content, _ := obj["content"].(string)
		if content == "" {
			continue
		}
		source, _ := obj["source"].(string)
		passages = append(passages, Passage{Content: content, Source: source})
	}

	logger.Debug("Knowledge search completed", "query", query, "results", len(passages))
	return passages, nil
}
