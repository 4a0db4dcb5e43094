// Package aggregation computes bucket and metric summaries over a set of matching
// documents. The response layout follows the Elasticsearch aggregation format.
package aggregation

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/go-search-service/index"
	"github.com/gcbaptista/go-search-service/model"
	"github.com/gcbaptista/go-search-service/services"
)

// Compute runs every aggregation over keys. Top-level aggregations run concurrently;
// sub-aggregations are computed per bucket. reqs must have passed Validate.
func Compute(ctx context.Context, snap *index.Snapshot, keys []index.DocKey, reqs []services.AggregationRequest) (map[string]interface{}, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	results := make([]interface{}, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		i, r := i, r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = compute(snap, keys, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(reqs))
	for i, r := range reqs {
		out[r.Name] = results[i]
	}
	return out, nil
}

func computeAll(snap *index.Snapshot, keys []index.DocKey, reqs []services.AggregationRequest, into map[string]interface{}) {
	for _, r := range reqs {
		into[r.Name] = compute(snap, keys, r)
	}
}

func compute(snap *index.Snapshot, keys []index.DocKey, r services.AggregationRequest) interface{} {
	switch r.Type {
	case TypeTerms:
		return terms(snap, keys, r)
	case TypeRange:
		return ranges(snap, keys, r)
	case TypeHistogram:
		return histogram(snap, keys, r)
	case TypeDateHistogram:
		return dateHistogram(snap, keys, r)
	case TypeCardinality:
		seen := make(map[string]bool)
		forEachValue(snap, keys, r.Field, func(_ index.DocKey, _ model.Value, s string) {
			seen[s] = true
		})
		return map[string]interface{}{"value": len(seen)}
	case TypeValueCount, TypeCount:
		n := 0
		forEachValue(snap, keys, r.Field, func(index.DocKey, model.Value, string) { n++ })
		return map[string]interface{}{"value": n}
	case TypePercentiles:
		return percentiles(numbers(snap, keys, r.Field), r.Percents)
	}

	s := newStats(numbers(snap, keys, r.Field))
	switch r.Type {
	case TypeStats:
		return s.basic()
	case TypeExtendedStats:
		return s.extended()
	case TypeAvg:
		return map[string]interface{}{"value": s.avgValue()}
	case TypeMin:
		return map[string]interface{}{"value": s.minValue()}
	case TypeMax:
		return map[string]interface{}{"value": s.maxValue()}
	case TypeSum:
		return map[string]interface{}{"value": s.sum}
	}
	return nil
}

// forEachValue calls fn for every value of field in keys. Multi-valued keyword fields
// produce one call per value. s is the canonical string form of the value.
func forEachValue(snap *index.Snapshot, keys []index.DocKey, field string, fn func(key index.DocKey, v model.Value, s string)) {
	for _, key := range keys {
		v, ok := snap.Value(key, field)
		if !ok {
			continue
		}
		if v.Kind == model.FieldTypeKeyword {
			seen := make(map[string]bool)
			for _, s := range v.Strings() {
				if !seen[s] {
					seen[s] = true
					fn(key, v, s)
				}
			}
			continue
		}
		fn(key, v, v.Key())
	}
}

// numbers returns the numeric value of field for every document that has one.
func numbers(snap *index.Snapshot, keys []index.DocKey, field string) []float64 {
	out := make([]float64, 0, len(keys))
	for _, key := range keys {
		if v, ok := snap.Value(key, field); ok {
			if n, ok := v.Number(); ok {
				out = append(out, n)
			}
		}
	}
	return out
}

type stats struct {
	count        int
	min, max     float64
	sum          float64
	sumOfSquares float64
	mean         float64
	m2           float64 // sum of squared deviations from mean
}

// newStats accumulates the variance with Welford's online update, which stays
// accurate for large values such as epoch milliseconds.
func newStats(values []float64) stats {
	s := stats{min: math.Inf(1), max: math.Inf(-1)}
	for _, v := range values {
		s.count++
		s.sum += v
		s.sumOfSquares += v * v
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)

		delta := v - s.mean
		s.mean += delta / float64(s.count)
		s.m2 += delta * (v - s.mean)
	}
	return s
}

func (s stats) minValue() interface{} {
	if s.count == 0 {
		return nil
	}
	return s.min
}

func (s stats) maxValue() interface{} {
	if s.count == 0 {
		return nil
	}
	return s.max
}

func (s stats) avgValue() interface{} {
	if s.count == 0 {
		return nil
	}
	return s.sum / float64(s.count)
}

func (s stats) basic() map[string]interface{} {
	return map[string]interface{}{
		"count": s.count,
		"min":   s.minValue(),
		"max":   s.maxValue(),
		"avg":   s.avgValue(),
		"sum":   s.sum,
	}
}

// extended adds the population variance and standard deviation.
func (s stats) extended() map[string]interface{} {
	out := s.basic()
	out["sum_of_squares"] = s.sumOfSquares
	if s.count == 0 {
		out["variance"] = nil
		out["std_deviation"] = nil
		return out
	}
	variance := s.m2 / float64(s.count)
	out["variance"] = variance
	out["std_deviation"] = math.Sqrt(variance)
	return out
}

// percentiles uses linear interpolation between the closest ranks.
func percentiles(values []float64, percents []float64) map[string]interface{} {
	if len(percents) == 0 {
		percents = defaultPercents
	}
	sort.Float64s(values)

	out := make(map[string]interface{}, len(percents))
	for _, p := range percents {
		key := percentKey(p)
		if len(values) == 0 {
			out[key] = nil
			continue
		}
		rank := p / 100 * float64(len(values)-1)
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		out[key] = values[lo] + (rank-float64(lo))*(values[hi]-values[lo])
	}
	return map[string]interface{}{"values": out}
}

func percentKey(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s
		}
	}
	return s + ".0"
}

// bucket groups the documents that fall under one key.
type bucket struct {
	key    interface{}
	sortBy string  // keyword buckets
	num    float64 // numeric buckets
	keys   []index.DocKey
}

func (b *bucket) render(snap *index.Snapshot, subs []services.AggregationRequest) map[string]interface{} {
	out := map[string]interface{}{
		"key":       b.key,
		"doc_count": len(b.keys),
	}
	computeAll(snap, b.keys, subs, out)
	return out
}

func terms(snap *index.Snapshot, keys []index.DocKey, r services.AggregationRequest) interface{} {
	byKey := make(map[string]*bucket)
	var order []*bucket
	forEachValue(snap, keys, r.Field, func(key index.DocKey, v model.Value, s string) {
		b, ok := byKey[s]
		if !ok {
			b = &bucket{sortBy: s}
			switch v.Kind {
			case model.FieldTypeKeyword:
				b.key = s
			case model.FieldTypeInteger:
				b.key = v.Int
			case model.FieldTypeDate:
				b.key = v.Time.UnixMilli()
			default:
				b.key, _ = v.Number()
			}
			b.num, _ = v.Number()
			byKey[s] = b
			order = append(order, b)
		}
		b.keys = append(b.keys, key)
	})

	numeric := true
	for _, b := range order {
		if _, isString := b.key.(string); isString {
			numeric = false
			break
		}
	}
	sort.SliceStable(order, func(i, j int) bool {
		if len(order[i].keys) != len(order[j].keys) {
			return len(order[i].keys) > len(order[j].keys)
		}
		if numeric {
			return order[i].num < order[j].num
		}
		return order[i].sortBy < order[j].sortBy
	})

	size := r.Size
	if size == 0 {
		size = defaultTermsSize
	}
	other := 0
	if len(order) > size {
		for _, b := range order[size:] {
			other += len(b.keys)
		}
		order = order[:size]
	}

	buckets := make([]map[string]interface{}, 0, len(order))
	for _, b := range order {
		out := b.render(snap, r.Aggregations)
		if t, ok := dateKeyString(snap, r.Field, b.num); ok {
			out["key_as_string"] = t
		}
		buckets = append(buckets, out)
	}
	return map[string]interface{}{
		"buckets":             buckets,
		"sum_other_doc_count": other,
	}
}

func dateKeyString(snap *index.Snapshot, field string, millis float64) (string, bool) {
	f, ok := snap.Definition().Field(field)
	if !ok || f.Type != model.FieldTypeDate {
		return "", false
	}
	return time.UnixMilli(int64(millis)).UTC().Format(time.RFC3339), true
}

func ranges(snap *index.Snapshot, keys []index.DocKey, r services.AggregationRequest) interface{} {
	buckets := make([]map[string]interface{}, 0, len(r.Ranges))
	for _, rg := range r.Ranges {
		var matched []index.DocKey
		for _, key := range keys {
			v, ok := snap.Value(key, r.Field)
			if !ok {
				continue
			}
			n, ok := v.Number()
			if !ok {
				continue
			}
			if rg.From != nil && n < *rg.From {
				continue
			}
			if rg.To != nil && n >= *rg.To {
				continue
			}
			matched = append(matched, key)
		}

		b := &bucket{key: rangeKey(rg), keys: matched}
		out := b.render(snap, r.Aggregations)
		if rg.From != nil {
			out["from"] = *rg.From
		}
		if rg.To != nil {
			out["to"] = *rg.To
		}
		buckets = append(buckets, out)
	}
	return map[string]interface{}{"buckets": buckets}
}

func rangeKey(rg services.RangeSpec) string {
	if rg.Key != "" {
		return rg.Key
	}
	bound := func(f *float64) string {
		if f == nil {
			return "*"
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	}
	return bound(rg.From) + "-" + bound(rg.To)
}

// numericBuckets groups documents by bucketOf(value) and returns the buckets sorted
// by key. Empty intermediate buckets are omitted.
func numericBuckets(snap *index.Snapshot, keys []index.DocKey, field string, bucketOf func(float64) float64) []*bucket {
	byKey := make(map[float64]*bucket)
	for _, key := range keys {
		v, ok := snap.Value(key, field)
		if !ok {
			continue
		}
		n, ok := v.Number()
		if !ok {
			continue
		}
		k := bucketOf(n)
		b, ok := byKey[k]
		if !ok {
			b = &bucket{num: k}
			byKey[k] = b
		}
		b.keys = append(b.keys, key)
	}

	out := make([]*bucket, 0, len(byKey))
	for _, b := range byKey {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].num < out[j].num })
	return out
}

func histogram(snap *index.Snapshot, keys []index.DocKey, r services.AggregationRequest) interface{} {
	interval := r.Interval
	if interval == 0 {
		interval = defaultHistogramInterval
	}
	list := numericBuckets(snap, keys, r.Field, func(n float64) float64 {
		return math.Floor(n/interval) * interval
	})

	buckets := make([]map[string]interface{}, 0, len(list))
	for _, b := range list {
		b.key = b.num
		buckets = append(buckets, b.render(snap, r.Aggregations))
	}
	return map[string]interface{}{"buckets": buckets}
}

func dateHistogram(snap *index.Snapshot, keys []index.DocKey, r services.AggregationRequest) interface{} {
	ci, _ := parseCalendarInterval(r.CalendarInterval)
	list := numericBuckets(snap, keys, r.Field, func(n float64) float64 {
		return float64(ci.bucketStart(time.UnixMilli(int64(n))).UnixMilli())
	})

	buckets := make([]map[string]interface{}, 0, len(list))
	for _, b := range list {
		b.key = int64(b.num)
		out := b.render(snap, r.Aggregations)
		out["key_as_string"] = time.UnixMilli(int64(b.num)).UTC().Format(time.RFC3339)
		buckets = append(buckets, out)
	}
	return map[string]interface{}{"buckets": buckets}
}
