// Package search maintains the Elasticsearch projection behind the admin
// application list.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"loan-intake/internal/common/errors"
	"loan-intake/internal/common/logger"
	"loan-intake/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type Index struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Index {
	return &Index{client: client, index: index, logger: log}
}

// document is what gets indexed for one application.
type document struct {
	models.ApplicationSummary
	PriorityRank int `json:"priorityRank"`
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		ByStatus        termsAgg `json:"by_status"`
		ByPriority      termsAgg `json:"by_priority"`
		AvgLoanAmount   avgAgg   `json:"avg_loan_amount"`
		AvgProgress     avgAgg   `json:"avg_progress"`
		SubmittedLast7d struct {
			DocCount int `json:"doc_count"`
		} `json:"submitted_last_7d"`
	} `json:"aggregations"`
}

type termsAgg struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"buckets"`
}

type avgAgg struct {
	Value *float64 `json:"value"`
}

// Index upserts the projection of one application.
func (s *Index) Index(ctx context.Context, summary models.ApplicationSummary) error {
	body, err := json.Marshal(document{ApplicationSummary: summary, PriorityRank: summary.Priority.Rank()})
	if err != nil {
		return errors.NewSearchIndexFailedError(summary.ID, err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: summary.ID,
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.NewSearchIndexFailedError(summary.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return errors.NewSearchIndexFailedError(summary.ID, fmt.Errorf("index request failed: %s", res.String()))
	}

	s.logger.Debug("Application indexed", map[string]interface{}{
		"applicationId": summary.ID,
		"status":        string(summary.Status),
	})
	return nil
}

// List returns one page of applications matching q.
func (s *Index) List(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	q.Normalize()

	resp, err := s.search(ctx, buildListQuery(q))
	if err != nil {
		return nil, err
	}

	items := make([]models.ApplicationSummary, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		items = append(items, hit.Source.ApplicationSummary)
	}
	return &models.ListResult{
		Items:    items,
		Total:    resp.Hits.Total.Value,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// TabCounts counts applications per status for the admin tabs. Every status
// is present in the result, with zero when nothing matches.
func (s *Index) TabCounts(ctx context.Context, text string) (*models.TabCounts, error) {
	resp, err := s.search(ctx, buildTabsQuery(text))
	if err != nil {
		return nil, err
	}

	counts := &models.TabCounts{
		All:      resp.Hits.Total.Value,
		ByStatus: make(map[models.ApplicationStatus]int, len(models.AllStatuses)),
	}
	for _, st := range models.AllStatuses {
		counts.ByStatus[st] = 0
	}
	for _, b := range resp.Aggregations.ByStatus.Buckets {
		counts.ByStatus[models.ApplicationStatus(b.Key)] = b.DocCount
	}
	return counts, nil
}

// Stats summarises the whole application book for the admin dashboard.
func (s *Index) Stats(ctx context.Context) (*models.Stats, error) {
	resp, err := s.search(ctx, buildStatsQuery())
	if err != nil {
		return nil, err
	}

	stats := &models.Stats{
		Total:           resp.Hits.Total.Value,
		ByStatus:        make(map[models.ApplicationStatus]int, len(models.AllStatuses)),
		ByPriority:      make(map[models.Priority]int, len(models.AllPriorities)),
		SubmittedLast7d: resp.Aggregations.SubmittedLast7d.DocCount,
	}
	for _, st := range models.AllStatuses {
		stats.ByStatus[st] = 0
	}
	for _, p := range models.AllPriorities {
		stats.ByPriority[p] = 0
	}
	for _, b := range resp.Aggregations.ByStatus.Buckets {
		stats.ByStatus[models.ApplicationStatus(b.Key)] = b.DocCount
	}
	for _, b := range resp.Aggregations.ByPriority.Buckets {
		stats.ByPriority[models.Priority(b.Key)] = b.DocCount
	}
	if v := resp.Aggregations.AvgLoanAmount.Value; v != nil {
		stats.AverageLoanAmount = *v
	}
	if v := resp.Aggregations.AvgProgress.Value; v != nil {
		stats.AverageProgress = *v
	}
	return stats, nil
}

func (s *Index) search(ctx context.Context, query map[string]interface{}) (*searchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("elasticsearch", err)
		}
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, errors.NewSearchQueryFailedError(fmt.Errorf("search query failed: %s %s", res.Status(), msg))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	return &out, nil
}
