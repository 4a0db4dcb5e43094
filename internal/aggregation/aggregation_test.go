package aggregation

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/index"
	internalErrors "github.com/gcbaptista/go-search-service/internal/errors"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

func testDefinition() config.IndexDefinition {
	return config.IndexDefinition{
		Name: "products",
		Fields: []config.FieldDefinition{
			{Name: "title", Type: model.FieldTypeText, Stored: true, Indexed: true},
			{Name: "category", Type: model.FieldTypeKeyword, Stored: true, Indexed: true, Fast: true},
			{Name: "price", Type: model.FieldTypeFloat, Stored: true, Fast: true},
			{Name: "stock", Type: model.FieldTypeInteger, Stored: true},
			{Name: "released", Type: model.FieldTypeDate, Stored: true, Fast: true},
		},
	}
}

type product struct {
	id       string
	category string
	price    float64
	released string
}

var products = []product{
	{"p1", "books", 10, "2024-01-15"},
	{"p2", "books", 20, "2024-01-20"},
	{"p3", "games", 35, "2024-02-01"},
	{"p4", "games", 60, "2024-03-10"},
	{"p5", "music", 5, "2024-03-11"},
}

func setup(t *testing.T) (*index.Snapshot, []index.DocKey) {
	t.Helper()
	e := index.New(testDefinition(), "")
	w := e.Writer()
	for _, p := range products {
		released, err := model.ParseDate(p.released)
		require.NoError(t, err)
		w.Add(model.Document{ID: p.id, Fields: map[string]model.Value{
			"title":    model.TextValue("product " + p.id),
			"category": model.KeywordValue(p.category),
			"price":    model.FloatValue(p.price),
			"released": model.DateValue(released),
		}})
	}
	w.Add(model.Document{ID: "p6", Fields: map[string]model.Value{"title": model.TextValue("no price")}})
	snap, err := w.Commit()
	require.NoError(t, err)

	var keys []index.DocKey
	snap.ForEachLive(func(key index.DocKey) { keys = append(keys, key) })
	return snap, keys
}

func run(t *testing.T, reqs ...services.AggregationRequest) map[string]interface{} {
	t.Helper()
	snap, keys := setup(t)
	def := testDefinition()
	require.NoError(t, Validate(&def, reqs))
	out, err := Compute(context.Background(), snap, keys, reqs)
	require.NoError(t, err)
	return out
}

func TestStatsMatchReferenceComputation(t *testing.T) {
	out := run(t,
		services.AggregationRequest{Name: "s", Type: TypeStats, Field: "price"},
		services.AggregationRequest{Name: "x", Type: TypeExtendedStats, Field: "price"},
	)

	var sum, lo, hi float64 = 0, math.Inf(1), math.Inf(-1)
	for _, p := range products {
		sum += p.price
		lo = math.Min(lo, p.price)
		hi = math.Max(hi, p.price)
	}
	n := float64(len(products))
	mean := sum / n
	var sq float64
	for _, p := range products {
		sq += (p.price - mean) * (p.price - mean)
	}

	s := out["s"].(map[string]interface{})
	assert.Equal(t, len(products), s["count"])
	assert.Equal(t, lo, s["min"])
	assert.Equal(t, hi, s["max"])
	assert.InDelta(t, sum, s["sum"], 1e-9)
	assert.InDelta(t, mean, s["avg"], 1e-9)

	x := out["x"].(map[string]interface{})
	assert.InDelta(t, sq/n, x["variance"], 1e-9)
	assert.InDelta(t, math.Sqrt(sq/n), x["std_deviation"], 1e-9)
}

func TestExtendedStatsVariance(t *testing.T) {
	epochMillis := 1.7e12

	tests := []struct {
		name     string
		values   []float64
		variance float64
	}{
		{name: "small values", values: []float64{2, 4, 4, 4, 5, 5, 7, 9}, variance: 4},
		{name: "epoch milliseconds", values: []float64{epochMillis, epochMillis + 2}, variance: 1},
		{name: "large constant", values: []float64{epochMillis, epochMillis, epochMillis}, variance: 0},
		{name: "single value", values: []float64{1e15}, variance: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newStats(tt.values).extended()
			assert.InDelta(t, tt.variance, out["variance"], 1e-9)
			assert.InDelta(t, math.Sqrt(tt.variance), out["std_deviation"], 1e-9)
		})
	}
}

func TestSingleMetrics(t *testing.T) {
	out := run(t,
		services.AggregationRequest{Name: "avg", Type: TypeAvg, Field: "price"},
		services.AggregationRequest{Name: "min", Type: TypeMin, Field: "price"},
		services.AggregationRequest{Name: "max", Type: TypeMax, Field: "price"},
		services.AggregationRequest{Name: "sum", Type: TypeSum, Field: "price"},
		services.AggregationRequest{Name: "count", Type: TypeValueCount, Field: "price"},
		services.AggregationRequest{Name: "distinct", Type: TypeCardinality, Field: "category"},
	)

	assert.InDelta(t, 26.0, out["avg"].(map[string]interface{})["value"], 1e-9)
	assert.Equal(t, 5.0, out["min"].(map[string]interface{})["value"])
	assert.Equal(t, 60.0, out["max"].(map[string]interface{})["value"])
	assert.InDelta(t, 130.0, out["sum"].(map[string]interface{})["value"], 1e-9)
	assert.Equal(t, 5, out["count"].(map[string]interface{})["value"])
	assert.Equal(t, 3, out["distinct"].(map[string]interface{})["value"])
}

func TestMetricsOverEmptySet(t *testing.T) {
	snap, _ := setup(t)
	out, err := Compute(context.Background(), snap, nil, []services.AggregationRequest{
		{Name: "s", Type: TypeStats, Field: "price"},
		{Name: "avg", Type: TypeAvg, Field: "price"},
		{Name: "p", Type: TypePercentiles, Field: "price", Percents: []float64{50}},
	})
	require.NoError(t, err)

	s := out["s"].(map[string]interface{})
	assert.Equal(t, 0, s["count"])
	assert.Nil(t, s["min"])
	assert.Nil(t, s["avg"])
	assert.Nil(t, out["avg"].(map[string]interface{})["value"])
	assert.Nil(t, out["p"].(map[string]interface{})["values"].(map[string]interface{})["50.0"])
}

func TestTermsWithSubAggregation(t *testing.T) {
	out := run(t, services.AggregationRequest{
		Name: "by_category", Type: TypeTerms, Field: "category", Size: 2,
		Aggregations: []services.AggregationRequest{{Name: "avg_price", Type: TypeAvg, Field: "price"}},
	})

	terms := out["by_category"].(map[string]interface{})
	buckets := terms["buckets"].([]map[string]interface{})
	require.Len(t, buckets, 2)

	// Equal counts order by key.
	assert.Equal(t, "books", buckets[0]["key"])
	assert.Equal(t, 2, buckets[0]["doc_count"])
	assert.InDelta(t, 15.0, buckets[0]["avg_price"].(map[string]interface{})["value"], 1e-9)
	assert.Equal(t, "games", buckets[1]["key"])
	assert.InDelta(t, 47.5, buckets[1]["avg_price"].(map[string]interface{})["value"], 1e-9)
	assert.Equal(t, 1, terms["sum_other_doc_count"])
}

func TestRange(t *testing.T) {
	ten, fifty := 10.0, 50.0
	out := run(t, services.AggregationRequest{
		Name: "prices", Type: TypeRange, Field: "price",
		Ranges: []services.RangeSpec{{To: &ten}, {From: &ten, To: &fifty}, {From: &fifty, Key: "expensive"}},
	})

	buckets := out["prices"].(map[string]interface{})["buckets"].([]map[string]interface{})
	require.Len(t, buckets, 3)
	assert.Equal(t, "*-10", buckets[0]["key"])
	assert.Equal(t, 1, buckets[0]["doc_count"])
	assert.Equal(t, "10-50", buckets[1]["key"])
	assert.Equal(t, 3, buckets[1]["doc_count"], "from is inclusive and to is exclusive")
	assert.Equal(t, "expensive", buckets[2]["key"])
	assert.Equal(t, 1, buckets[2]["doc_count"])
}

func TestHistogram(t *testing.T) {
	out := run(t, services.AggregationRequest{Name: "h", Type: TypeHistogram, Field: "price", Interval: 20})

	buckets := out["h"].(map[string]interface{})["buckets"].([]map[string]interface{})
	var keys []float64
	var counts []int
	for _, b := range buckets {
		keys = append(keys, b["key"].(float64))
		counts = append(counts, b["doc_count"].(int))
	}
	assert.Equal(t, []float64{0, 20, 60}, keys, "empty intermediate buckets are omitted")
	assert.Equal(t, []int{2, 2, 1}, counts)
}

func TestDateHistogram(t *testing.T) {
	out := run(t, services.AggregationRequest{Name: "monthly", Type: TypeDateHistogram, Field: "released", CalendarInterval: "month"})

	buckets := out["monthly"].(map[string]interface{})["buckets"].([]map[string]interface{})
	require.Len(t, buckets, 3)
	jan := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, jan.UnixMilli(), buckets[0]["key"])
	assert.Equal(t, "2024-01-01T00:00:00Z", buckets[0]["key_as_string"])
	assert.Equal(t, 2, buckets[0]["doc_count"])
	assert.Equal(t, "2024-03-01T00:00:00Z", buckets[2]["key_as_string"])
}

func TestWeekStartsOnMonday(t *testing.T) {
	ci, err := parseCalendarInterval("week")
	require.NoError(t, err)
	sunday := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), ci.bucketStart(sunday))
}

func TestPercentiles(t *testing.T) {
	out := run(t, services.AggregationRequest{Name: "p", Type: TypePercentiles, Field: "price", Percents: []float64{50, 25, 99.5}})

	values := out["p"].(map[string]interface{})["values"].(map[string]interface{})
	// sorted prices: 5 10 20 35 60
	assert.InDelta(t, 20.0, values["50.0"], 1e-9)
	assert.InDelta(t, 10.0, values["25.0"], 1e-9)
	assert.InDelta(t, 59.5, values["99.5"], 1e-9)
}

func TestValidate(t *testing.T) {
	def := testDefinition()
	tests := []struct {
		name  string
		req   services.AggregationRequest
		field string
	}{
		{"unknown type", services.AggregationRequest{Name: "a", Type: "median", Field: "price"}, "aggregations[0].agg_type"},
		{"unknown field", services.AggregationRequest{Name: "a", Type: TypeAvg, Field: "missing"}, "aggregations[0].field"},
		{"not fast", services.AggregationRequest{Name: "a", Type: TypeAvg, Field: "stock"}, "aggregations[0].field"},
		{"keyword metric", services.AggregationRequest{Name: "a", Type: TypeAvg, Field: "category"}, "aggregations[0].field"},
		{"date histogram on number", services.AggregationRequest{Name: "a", Type: TypeDateHistogram, Field: "price"}, "aggregations[0].field"},
		{"negative interval", services.AggregationRequest{Name: "a", Type: TypeHistogram, Field: "price", Interval: -1}, "aggregations[0].interval"},
		{"bad calendar interval", services.AggregationRequest{Name: "a", Type: TypeDateHistogram, Field: "released", CalendarInterval: "fortnight"}, "aggregations[0].calendar_interval"},
		{"empty ranges", services.AggregationRequest{Name: "a", Type: TypeRange, Field: "price"}, "aggregations[0].ranges"},
		{"metric with sub-aggregation", services.AggregationRequest{
			Name: "a", Type: TypeAvg, Field: "price",
			Aggregations: []services.AggregationRequest{{Name: "b", Type: TypeMax, Field: "price"}},
		}, "aggregations[0].aggregations"},
		{"invalid nested", services.AggregationRequest{
			Name: "a", Type: TypeTerms, Field: "category",
			Aggregations: []services.AggregationRequest{{Name: "b", Type: TypeMax, Field: "stock"}},
		}, "aggregations[0].aggregations[0].field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&def, []services.AggregationRequest{tt.req})
			var validationErr *internalErrors.ValidationError
			require.True(t, errors.As(err, &validationErr), "expected a validation error, got %v", err)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}
