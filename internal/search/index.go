// internal/search/index.go
package search

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"template-verifier/internal/common/errors"
	"template-verifier/internal/common/logger"
	"template-verifier/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const DefaultIndexName = "reference-templates"

// Index keeps a searchable projection of the template repository. The
// repository stays the source of truth.
type Index interface {
	Index(ctx context.Context, rec models.TemplateRecord) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, q Query) (*Result, error)
}

// TemplateIndex is the Elasticsearch implementation of Index.
type TemplateIndex struct {
	client  *elasticsearch.Client
	index   string
	refresh string
	logger  logger.Logger
}

type IndexOption func(*TemplateIndex)

// WithRefresh sets the refresh policy of writes ("true", "wait_for" or "").
func WithRefresh(policy string) IndexOption {
	return func(i *TemplateIndex) { i.refresh = policy }
}

func NewTemplateIndex(client *elasticsearch.Client, index string, log logger.Logger, opts ...IndexOption) *TemplateIndex {
	if index == "" {
		index = DefaultIndexName
	}
	i := &TemplateIndex{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "template-index", "index": index}),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *TemplateIndex) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return i.transportError(ctx, "ensure_index", err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return errors.NewSearchQueryFailedError("ensure_index", fmt.Errorf("exists check returned %s", res.Status()))
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return err
	}
	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithContext(ctx),
		i.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return i.transportError(ctx, "ensure_index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		msg := res.String()
		if strings.Contains(msg, "resource_already_exists_exception") {
			return nil
		}
		return errors.NewSearchQueryFailedError("ensure_index", stderrors.New(msg))
	}
	i.logger.Info("template index created", nil)
	return nil
}

func (i *TemplateIndex) Index(ctx context.Context, rec models.TemplateRecord) error {
	body, err := json.Marshal(newDocument(rec))
	if err != nil {
		return fmt.Errorf("encode template document: %w", err)
	}
	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(body),
		Refresh:    i.refresh,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return i.transportError(ctx, "index_template", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewSearchQueryFailedError("index_template", stderrors.New(res.String()))
	}
	return nil
}

// Remove deletes a template document; a missing document is not an error.
func (i *TemplateIndex) Remove(ctx context.Context, id string) error {
	req := esapi.DeleteRequest{
		Index:      i.index,
		DocumentID: id,
		Refresh:    i.refresh,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return i.transportError(ctx, "remove_template", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.NewSearchQueryFailedError("remove_template", stderrors.New(res.String()))
	}
	return nil
}

type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Score  *float64 `json:"_score"`
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs q against the index. A missing index yields an empty result.
func (i *TemplateIndex) Search(ctx context.Context, q Query) (*Result, error) {
	q = q.Normalize()
	body, err := json.Marshal(buildSearchQuery(q))
	if err != nil {
		return nil, fmt.Errorf("encode search query: %w", err)
	}
	req := esapi.SearchRequest{
		Index:          []string{i.index},
		Body:           bytes.NewReader(body),
		From:           &q.From,
		Size:           &q.Size,
		TrackTotalHits: true,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, i.transportError(ctx, "search_templates", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return &Result{Hits: []Hit{}}, nil
	}
	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError("search_templates", stderrors.New(res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewSearchQueryFailedError("search_templates", fmt.Errorf("decode response: %w", err))
	}

	out := &Result{Hits: make([]Hit, 0, len(r.Hits.Hits)), Total: r.Hits.Total.Value, Took: r.Took}
	for _, h := range r.Hits.Hits {
		hit := Hit{
			TemplateID:  h.Source.TemplateID,
			Board:       h.Source.Board,
			Program:     h.Source.Program,
			Description: h.Source.Description,
			CreatedAt:   h.Source.CreatedAt,
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}
	i.logger.Debug("template search completed", map[string]interface{}{
		"text":  q.Text,
		"total": out.Total,
		"took":  out.Took,
	})
	return out, nil
}

func (i *TemplateIndex) transportError(ctx context.Context, op string, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewSearchTimeoutError(op)
	}
	return errors.NewElasticsearchConnectionFailedError(err)
}
