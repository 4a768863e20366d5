package donorindex

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifelink-workers/internal/common/logger"
	"lifelink-workers/internal/matching"
)

// fakeCluster answers the handful of endpoints the index uses.
type fakeCluster struct {
	mu         sync.Mutex
	exists     bool
	created    string
	deleted    bool
	searches   []map[string]interface{}
	searchHits []Document // sorted by id
	searchCode int
	indexed    []string
	rejectIDs  map[string]bool
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/donors":
		if f.exists {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodDelete && r.URL.Path == "/donors":
		f.deleted = true
		f.exists = false
		io.WriteString(w, `{"acknowledged":true}`)
	case r.Method == http.MethodPut && r.URL.Path == "/donors":
		body, _ := io.ReadAll(r.Body)
		f.created = string(body)
		f.exists = true
		io.WriteString(w, `{"acknowledged":true,"index":"donors"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		f.search(w, r)
	case strings.HasSuffix(r.URL.Path, "/_bulk"):
		f.bulk(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{}`)
	}
}

// search pages through searchHits the way an id-sorted search_after query
// would.
func (f *fakeCluster) search(w http.ResponseWriter, r *http.Request) {
	query := map[string]interface{}{}
	json.NewDecoder(r.Body).Decode(&query)
	f.searches = append(f.searches, query)

	if f.searchCode != 0 {
		w.WriteHeader(f.searchCode)
		io.WriteString(w, `{"error":{"type":"index_not_found_exception"},"status":404}`)
		return
	}

	size := len(f.searchHits)
	if v, ok := query["size"].(float64); ok {
		size = int(v)
	}
	after := int64(math.MinInt64)
	if sa, ok := query["search_after"].([]interface{}); ok && len(sa) == 1 {
		after = int64(sa[0].(float64))
	}

	hits := []map[string]interface{}{}
	for _, doc := range f.searchHits {
		if doc.ID <= after || len(hits) == size {
			continue
		}
		hits = append(hits, map[string]interface{}{"_source": doc, "sort": []int64{doc.ID}})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"hits": map[string]interface{}{"hits": hits},
	})
}

func (f *fakeCluster) lastSearch() map[string]interface{} {
	if len(f.searches) == 0 {
		return nil
	}
	return f.searches[len(f.searches)-1]
}

func (f *fakeCluster) bulk(w http.ResponseWriter, r *http.Request) {
	var (
		items     []map[string]interface{}
		hasErrors bool
	)
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 1<<20), 1<<20)
	for sc.Scan() {
		var action map[string]map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil {
			continue
		}
		meta, ok := action["index"]
		if !ok {
			continue
		}
		sc.Scan() // document line
		id, _ := meta["_id"].(string)
		if f.rejectIDs[id] {
			hasErrors = true
			items = append(items, map[string]interface{}{"index": map[string]interface{}{
				"_id": id, "status": 400,
				"error": map[string]interface{}{"type": "mapper_parsing_exception", "reason": "failed to parse field [location]"},
			}})
			continue
		}
		f.indexed = append(f.indexed, id)
		items = append(items, map[string]interface{}{"index": map[string]interface{}{"_id": id, "status": 201, "result": "created"}})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"took": 1, "errors": hasErrors, "items": items})
}

func newTestIndex(t *testing.T, cluster *fakeCluster) *Index {
	return newTestIndexWithOptions(t, cluster, Options{Name: "donors", BulkWorkers: 1})
}

func newTestIndexWithOptions(t *testing.T, cluster *fakeCluster, opts Options) *Index {
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	ix := New(client, opts, logger.NewTestLogger(t))
	ix.now = func() time.Time { return time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC) }
	return ix
}

// ==========================
// Index management
// ==========================

func TestIndex_EnsureIndex_CreatesWithGeoMapping(t *testing.T) {
	cluster := &fakeCluster{}
	ix := newTestIndex(t, cluster)

	created, err := ix.EnsureIndex(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, cluster.created, `"geo_point"`)

	created, err = ix.EnsureIndex(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestIndex_EnsureIndex_Recreate(t *testing.T) {
	cluster := &fakeCluster{exists: true}
	ix := newTestIndex(t, cluster)

	created, err := ix.EnsureIndex(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, cluster.deleted)
}

// ==========================
// Candidate search
// ==========================

func TestIndex_Candidates(t *testing.T) {
	cluster := &fakeCluster{searchHits: []Document{
		{ID: 4, BloodGroup: "O-", Location: &geoPoint{Lat: 12.9, Lon: 77.6}, LastDonationDate: "2026-01-10", Available: true, Approved: true},
		{ID: 9, BloodGroup: "A+", Available: true, Approved: true},
	}}
	ix := newTestIndex(t, cluster)

	donors, err := ix.Candidates(context.Background(), CandidateQuery{
		Groups: []matching.BloodGroup{matching.APositive, matching.ONegative},
		Center: matching.Coordinates{Latitude: 12.97, Longitude: 77.59},
	})
	require.NoError(t, err)
	require.Len(t, donors, 2)

	assert.Equal(t, matching.ONegative, donors[0].BloodGroup)
	require.NotNil(t, donors[0].LastDonation)
	assert.Equal(t, "2026-01-10", donors[0].LastDonation.Format(dateLayout))
	assert.True(t, math.IsNaN(donors[1].Location.Latitude))

	require.Len(t, cluster.searches, 1)
	assert.EqualValues(t, defaultPageSize, cluster.lastSearch()["size"])
	encoded, _ := json.Marshal(cluster.lastSearch())
	assert.NotContains(t, string(encoded), "geo_distance")
	assert.Contains(t, string(encoded), `"sort":[{"id":"asc"}]`)
	assert.Contains(t, string(encoded), `"bloodGroup":["A+","O-"]`)
}

func TestIndex_Candidates_PagesThroughEveryHit(t *testing.T) {
	cluster := &fakeCluster{}
	for id := int64(1); id <= 5; id++ {
		cluster.searchHits = append(cluster.searchHits, Document{ID: id, BloodGroup: "B+", Available: true, Approved: true})
	}
	ix := newTestIndexWithOptions(t, cluster, Options{Name: "donors", BulkWorkers: 1, PageSize: 2})

	donors, err := ix.Candidates(context.Background(), CandidateQuery{Groups: []matching.BloodGroup{matching.BPositive}})
	require.NoError(t, err)

	ids := make([]int64, len(donors))
	for i, d := range donors {
		ids[i] = d.ID
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)

	require.Len(t, cluster.searches, 3)
	assert.NotContains(t, cluster.searches[0], "search_after")
	assert.Equal(t, []interface{}{float64(2)}, cluster.searches[1]["search_after"])
	assert.Equal(t, []interface{}{float64(4)}, cluster.searches[2]["search_after"])
	for _, q := range cluster.searches {
		assert.EqualValues(t, 2, q["size"])
	}
}

func TestIndex_Candidates_FullLastPageEndsOnEmptyPage(t *testing.T) {
	cluster := &fakeCluster{searchHits: []Document{
		{ID: 1, BloodGroup: "O+", Available: true, Approved: true},
		{ID: 2, BloodGroup: "O+", Available: true, Approved: true},
	}}
	ix := newTestIndexWithOptions(t, cluster, Options{Name: "donors", BulkWorkers: 1, PageSize: 2})

	donors, err := ix.Candidates(context.Background(), CandidateQuery{Groups: []matching.BloodGroup{matching.OPositive}})
	require.NoError(t, err)
	assert.Len(t, donors, 2)
	assert.Len(t, cluster.searches, 2)
}

func TestIndex_Candidates_OptInRadiusKeepsDonorsWithoutLocation(t *testing.T) {
	cluster := &fakeCluster{}
	ix := newTestIndex(t, cluster)

	_, err := ix.Candidates(context.Background(), CandidateQuery{
		Groups:   []matching.BloodGroup{matching.APositive},
		Center:   matching.Coordinates{Latitude: 12.97, Longitude: 77.59},
		RadiusKm: 25,
	})
	require.NoError(t, err)

	encoded, _ := json.Marshal(cluster.lastSearch())
	assert.Contains(t, string(encoded), `"distance":"25km"`)
	assert.Contains(t, string(encoded), `"must_not":{"exists":{"field":"location"}}`)
	assert.Contains(t, string(encoded), `"minimum_should_match":1`)
}

func TestIndex_Candidates_NoRadiusWithoutCenter(t *testing.T) {
	cluster := &fakeCluster{}
	ix := newTestIndex(t, cluster)

	_, err := ix.Candidates(context.Background(), CandidateQuery{
		Groups:   []matching.BloodGroup{matching.ABPositive},
		Center:   matching.Coordinates{Latitude: 120, Longitude: 0},
		RadiusKm: 25,
	})
	require.NoError(t, err)

	encoded, _ := json.Marshal(cluster.lastSearch())
	assert.NotContains(t, string(encoded), "geo_distance")
}

func TestIndex_Candidates_MissingIndex(t *testing.T) {
	cluster := &fakeCluster{searchCode: http.StatusNotFound}
	ix := newTestIndex(t, cluster)

	_, err := ix.Candidates(context.Background(), CandidateQuery{Groups: []matching.BloodGroup{matching.OPositive}})
	assert.True(t, errors.Is(err, ErrIndexNotFound))
}

// ==========================
// Bulk indexing
// ==========================

func TestIndex_BulkIndex(t *testing.T) {
	cluster := &fakeCluster{exists: true, rejectIDs: map[string]bool{"3": true}}
	ix := newTestIndex(t, cluster)

	last := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	donors := []matching.DonorProfile{
		{ID: 1, BloodGroup: matching.APositive, Location: matching.Coordinates{Latitude: 12.9, Longitude: 77.6}, LastDonation: &last},
		{ID: 2, BloodGroup: matching.ONegative},
		{ID: 3, BloodGroup: matching.BNegative},
	}

	stats, err := ix.BulkIndex(context.Background(), donors)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Indexed)
	assert.EqualValues(t, 1, stats.Failed)
	assert.Equal(t, []string{"3"}, stats.FailedIDs)
	assert.ElementsMatch(t, []string{"1", "2"}, cluster.indexed)
}

func TestFromDonor_DropsInvalidLocation(t *testing.T) {
	doc := FromDonor(matching.DonorProfile{ID: 5, Location: matching.Coordinates{Latitude: 200}}, time.Now())
	assert.Nil(t, doc.Location)
	assert.Empty(t, doc.LastDonationDate)
}
