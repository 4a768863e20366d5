// Package donorindex keeps a searchable copy of the donor table in
// Elasticsearch and serves geo-filtered candidate lookups from it.
package donorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/matching"
)

var (
	ErrIndexNotFound = errors.New("INDEX_NOT_FOUND")
	ErrSearchFailed  = errors.New("SEARCH_QUERY_FAILED")
)

const defaultPageSize = 500

type Options struct {
	Name        string
	BulkWorkers int
	FlushBytes  int
	PageSize    int // hits per candidate search request
}

type Index struct {
	client *elasticsearch.Client
	opts   Options
	logger logger.Logger
	now    func() time.Time
}

func New(client *elasticsearch.Client, opts Options, log logger.Logger) *Index {
	if opts.Name == "" {
		opts.Name = "donors"
	}
	if opts.BulkWorkers <= 0 {
		opts.BulkWorkers = 2
	}
	if opts.FlushBytes <= 0 {
		opts.FlushBytes = 1 << 20
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Index{
		client: client,
		opts:   opts,
		logger: log.WithFields(map[string]interface{}{"index": opts.Name}),
		now:    time.Now,
	}
}

func (ix *Index) Name() string { return ix.opts.Name }

// EnsureIndex creates the index with its geo_point mapping if it does not
// exist. recreate drops an existing index first. It reports whether the
// index was created.
func (ix *Index) EnsureIndex(ctx context.Context, recreate bool) (bool, error) {
	res, err := ix.client.Indices.Exists([]string{ix.opts.Name}, ix.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("check index %s: %w", ix.opts.Name, err)
	}
	res.Body.Close()

	exists := res.StatusCode == http.StatusOK
	if !exists && res.StatusCode != http.StatusNotFound {
		return false, fmt.Errorf("check index %s: %s", ix.opts.Name, res.Status())
	}

	if exists && recreate {
		del, err := ix.client.Indices.Delete([]string{ix.opts.Name}, ix.client.Indices.Delete.WithContext(ctx))
		if err != nil {
			return false, fmt.Errorf("delete index %s: %w", ix.opts.Name, err)
		}
		defer del.Body.Close()
		if del.IsError() {
			return false, fmt.Errorf("delete index %s: %s", ix.opts.Name, del.String())
		}
		exists = false
	}
	if exists {
		return false, nil
	}

	created, err := ix.client.Indices.Create(ix.opts.Name,
		ix.client.Indices.Create.WithContext(ctx),
		ix.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return false, fmt.Errorf("create index %s: %w", ix.opts.Name, err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return false, fmt.Errorf("create index %s: %s", ix.opts.Name, created.String())
	}

	ix.logger.Info("donor index created", nil)
	return true, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Candidates returns every indexed donor matching q. The search is paged
// with search_after, PageSize hits at a time, so the pool handed to the
// ranker is never truncated.
func (ix *Index) Candidates(ctx context.Context, q CandidateQuery) ([]matching.DonorProfile, error) {
	var (
		donors []matching.DonorProfile
		after  *int64
	)
	for {
		page, err := ix.searchPage(ctx, buildCandidateQuery(q, ix.opts.PageSize, after))
		if err != nil {
			return nil, err
		}
		for _, doc := range page {
			donors = append(donors, doc.Donor())
		}
		if len(page) < ix.opts.PageSize {
			return donors, nil
		}
		last := page[len(page)-1].ID
		after = &last
	}
}

func (ix *Index) searchPage(ctx context.Context, query map[string]interface{}) ([]Document, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{ix.opts.Name},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, ix.opts.Name)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	docs := make([]Document, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		docs[i] = hit.Source
	}
	return docs, nil
}

// BulkStats summarises one BulkIndex call.
type BulkStats struct {
	Indexed   uint64   `json:"indexed"`
	Failed    uint64   `json:"failed"`
	FailedIDs []string `json:"failedIds,omitempty"`
}

// BulkIndex writes donors to the index, replacing documents with the same
// id. Per-document failures are counted, not returned as an error.
func (ix *Index) BulkIndex(ctx context.Context, donors []matching.DonorProfile) (BulkStats, error) {
	var (
		stats BulkStats
		mu    sync.Mutex
	)

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:      ix.opts.Name,
		Client:     ix.client,
		NumWorkers: ix.opts.BulkWorkers,
		FlushBytes: ix.opts.FlushBytes,
		Refresh:    "wait_for",
		OnError: func(_ context.Context, err error) {
			ix.logger.Error("bulk indexer error", map[string]interface{}{"error": err})
		},
	})
	if err != nil {
		return stats, fmt.Errorf("create bulk indexer: %w", err)
	}

	now := ix.now()
	for _, d := range donors {
		data, err := json.Marshal(FromDonor(d, now))
		if err != nil {
			return stats, fmt.Errorf("encode donor %d: %w", d.ID, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: strconv.FormatInt(d.ID, 10),
			Body:       bytes.NewReader(data),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				stats.FailedIDs = append(stats.FailedIDs, item.DocumentID)
				mu.Unlock()
				reason := res.Error.Reason
				if err != nil {
					reason = err.Error()
				}
				ix.logger.Warn("donor not indexed", map[string]interface{}{
					"donorId": item.DocumentID,
					"status":  res.Status,
					"reason":  reason,
				})
			},
		})
		if err != nil {
			return stats, fmt.Errorf("queue donor %d: %w", d.ID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return stats, fmt.Errorf("flush bulk indexer: %w", err)
	}

	s := bi.Stats()
	stats.Indexed = s.NumIndexed + s.NumCreated + s.NumUpdated
	stats.Failed = s.NumFailed
	return stats, nil
}
