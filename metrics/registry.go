package metrics

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/mstoykov/atlas"
)

const maxNameLength = 128

// nameRE allows ASCII word characters, dots, and any Unicode letter, so
// "hello.World_in_한글" is a valid metric name but "special\n\t" is not.
var nameRE = regexp.MustCompile(`^[0-9A-Za-z_.\p{L}]+$`)

func checkName(name string) bool {
	if name == "" || len(name) > maxNameLength {
		return false
	}
	return nameRE.MatchString(name)
}

// seriesKey uniquely identifies a (MetricId, TagSet) series; atlas nodes
// are themselves comparable, so a registered metric's pointer plus the
// tag set's node is a valid map key.
type seriesKey struct {
	metric *Metric
	node   *atlas.Node
}

// Registry is the process-wide home for every named metric and every
// tagged series recorded against it. Registration takes a write lock;
// handle lookup takes a read lock on the hit path and upgrades to a write
// lock only to create a series that hasn't been seen before.
type Registry struct {
	rootTagSet *atlas.Node

	metricsLock sync.RWMutex
	metrics     map[string]*Metric

	seriesLock sync.RWMutex
	series     map[seriesKey]Sink
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rootTagSet: atlas.New(),
		metrics:    make(map[string]*Metric),
		series:     make(map[seriesKey]Sink),
	}
}

// NewMetric registers name with kind, or returns the existing *Metric if
// name was already registered with the same kind and value type. A
// conflicting re-registration is an error.
func (r *Registry) NewMetric(name string, kind MetricType, t ...ValueType) (*Metric, error) {
	if !checkName(name) {
		return nil, fmt.Errorf("invalid metric name %q", name)
	}
	contains := Default
	if len(t) > 0 {
		contains = t[0]
	}

	r.metricsLock.Lock()
	defer r.metricsLock.Unlock()

	if existing, ok := r.metrics[name]; ok {
		if err := existing.sameAs(kind, contains); err != nil {
			return nil, err
		}
		return existing, nil
	}

	m := &Metric{Name: name, Type: kind, Contains: contains, id: len(r.metrics) + 1}
	r.metrics[name] = m
	return m, nil
}

// Get returns a previously registered metric by name, if any.
func (r *Registry) Get(name string) (*Metric, bool) {
	r.metricsLock.RLock()
	defer r.metricsLock.RUnlock()
	m, ok := r.metrics[name]
	return m, ok
}

// All returns every registered metric, in no particular order.
func (r *Registry) All() []*Metric {
	r.metricsLock.RLock()
	defer r.metricsLock.RUnlock()
	out := make([]*Metric, 0, len(r.metrics))
	for _, m := range r.metrics {
		out = append(out, m)
	}
	return out
}

// BranchTagSetRootWith returns a TagSet seeded with raw, branched from the
// registry's shared root node so equal tag sets from different callers
// collapse onto the same atlas nodes.
func (r *Registry) BranchTagSetRootWith(raw map[string]string) *TagSet {
	node := r.rootTagSet
	for k, v := range raw {
		node = node.AddLink(k, v)
	}
	return &TagSet{tags: node}
}

// ResolveTags interns name/value pairs into a canonical SampleTags,
// branched from an existing TagSet (typically the scenario's base tags).
// Duplicate keys take the last value, matching TagSet.AddTag's overwrite
// semantics.
func (r *Registry) ResolveTags(base *TagSet, pairs ...[2]string) *SampleTags {
	node := r.rootTagSet
	if base != nil {
		node = base.tags
	}
	for _, kv := range pairs {
		node = node.AddLink(kv[0], kv[1])
	}
	return &SampleTags{tags: node}
}

// GetHandle returns the Sink for (m, tags), creating it on first use.
// Creation is idempotent under concurrent callers: the write-locked
// second lookup re-checks before inserting.
func (r *Registry) GetHandle(m *Metric, tags *SampleTags) Sink {
	node := r.rootTagSet
	if tags != nil && tags.tags != nil {
		node = tags.tags
	}
	key := seriesKey{metric: m, node: node}

	r.seriesLock.RLock()
	sink, ok := r.series[key]
	r.seriesLock.RUnlock()
	if ok {
		return sink
	}

	r.seriesLock.Lock()
	defer r.seriesLock.Unlock()
	if sink, ok := r.series[key]; ok {
		return sink
	}
	sink = NewSink(m.Type)
	r.series[key] = sink
	return sink
}

// seriesSnapshot is one (metric, tags) entry as seen by Summarize.
type seriesSnapshot struct {
	Metric *Metric
	Tags   map[string]string
	Sink   Sink
}

// Summarize returns one snapshot per registered series. Callers format
// each sink independently (counters need the run duration for their
// per-second rate).
func (r *Registry) Summarize() []seriesSnapshot {
	r.seriesLock.RLock()
	defer r.seriesLock.RUnlock()

	out := make([]seriesSnapshot, 0, len(r.series))
	for key, sink := range r.series {
		tags := (&SampleTags{tags: key.node}).CloneTags()
		out = append(out, seriesSnapshot{
			Metric: key.metric,
			Tags:   tags,
			Sink:   sink,
		})
	}
	return out
}
