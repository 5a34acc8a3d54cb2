// Package metrics holds the mesh metric set and exposes it to Prometheus.
//
// Mesh metrics carry label sets that vary per series (a voltage reading may
// or may not name a sensor channel), so they are not modelled as fixed-label
// vectors. Registry stores them by name and label set and is registered as
// an unchecked collector.
package metrics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Kind int

const (
	KindGauge Kind = iota
	KindCounter
)

func (k Kind) String() string {
	if k == KindCounter {
		return "counter"
	}
	return "gauge"
}

var (
	ErrUndeclared       = errors.New("metric not declared")
	ErrAlreadyDeclared  = errors.New("metric already declared")
	ErrKindMismatch     = errors.New("operation does not match metric kind")
	ErrNegativeIncrease = errors.New("counter cannot decrease")
)

type Label struct {
	Key   string
	Value string
}

// Labels is an ordered list of label pairs. Two Labels naming the same pairs
// in a different order address the same series.
type Labels []Label

// Pairs builds Labels from alternating keys and values. A trailing key
// without a value is dropped.
func Pairs(kv ...string) Labels {
	out := make(Labels, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, Label{Key: kv[i], Value: kv[i+1]})
	}
	return out
}

// With returns a copy of l with one more pair appended.
func (l Labels) With(key, value string) Labels {
	out := make(Labels, len(l), len(l)+1)
	copy(out, l)
	return append(out, Label{Key: key, Value: value})
}

// canonical sorts a copy of l by key. Label values are forced to valid
// UTF-8; node names come straight off the radio.
func (l Labels) canonical() (keys, values []string) {
	sorted := make(Labels, len(l))
	copy(sorted, l)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	keys = make([]string, len(sorted))
	values = make([]string, len(sorted))
	for i, p := range sorted {
		keys[i] = p.Key
		values[i] = strings.ToValidUTF8(p.Value, "�")
	}
	return keys, values
}

func seriesKey(keys, values []string) string {
	var b strings.Builder
	for i := range keys {
		b.WriteString(keys[i])
		b.WriteByte(0xff)
		b.WriteString(values[i])
		b.WriteByte(0xfe)
	}
	return b.String()
}

type series struct {
	keys    []string
	values  []string
	value   float64
	updated time.Time
}

type family struct {
	name   string
	kind   Kind
	help   string
	series map[string]*series
	descs  map[string]*prometheus.Desc
}

func (f *family) desc(keys []string) *prometheus.Desc {
	sig := strings.Join(keys, "\xff")
	if d, ok := f.descs[sig]; ok {
		return d
	}
	d := prometheus.NewDesc(f.name, f.help, keys, nil)
	f.descs[sig] = d
	return d
}

// Registry is the process-wide mesh metric store. Gauges keep their last
// value for the life of the process; counters that have not been updated
// within the idle timeout are dropped on the next scrape.
type Registry struct {
	mu          sync.Mutex
	families    map[string]*family
	idleTimeout time.Duration
	now         func() time.Time
}

type RegistryOption func(*Registry)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

// NewRegistry builds an empty registry. idleTimeout <= 0 disables counter
// eviction.
func NewRegistry(idleTimeout time.Duration, opts ...RegistryOption) *Registry {
	r := &Registry{
		families:    make(map[string]*family),
		idleTimeout: idleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Declare(name string, kind Kind, help string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[name]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyDeclared, name)
	}
	r.families[name] = &family{
		name:   name,
		kind:   kind,
		help:   help,
		series: make(map[string]*series),
		descs:  make(map[string]*prometheus.Desc),
	}
	return nil
}

// Set stores value for the gauge series identified by labels.
func (r *Registry) Set(name string, labels Labels, value float64) error {
	return r.update(name, labels, func(f *family, s *series) error {
		if f.kind != KindGauge {
			return fmt.Errorf("%w: set on %s %s", ErrKindMismatch, f.kind, name)
		}
		s.value = value
		return nil
	})
}

// Add increments the series identified by labels. Counters only accept
// non-negative deltas.
func (r *Registry) Add(name string, labels Labels, delta float64) error {
	return r.update(name, labels, func(f *family, s *series) error {
		if f.kind == KindCounter && delta < 0 {
			return fmt.Errorf("%w: %s by %v", ErrNegativeIncrease, name, delta)
		}
		s.value += delta
		return nil
	})
}

func (r *Registry) update(name string, labels Labels, apply func(*family, *series) error) error {
	keys, values := labels.canonical()
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUndeclared, name)
	}
	key := seriesKey(keys, values)
	s, ok := f.series[key]
	if !ok {
		s = &series{keys: keys, values: values}
	}
	if err := apply(f, s); err != nil {
		return err
	}
	s.updated = now
	f.series[key] = s
	return nil
}

// Value returns the current value of one series.
func (r *Registry) Value(name string, labels Labels) (float64, bool) {
	keys, values := labels.canonical()
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[name]
	if !ok {
		return 0, false
	}
	s, ok := f.series[seriesKey(keys, values)]
	if !ok {
		return 0, false
	}
	return s.value, true
}

// SeriesCount reports how many series a metric currently holds.
func (r *Registry) SeriesCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.families[name]; ok {
		return len(f.series)
	}
	return 0
}

// Describe sends nothing: the label dimensions are only known at write time.
func (r *Registry) Describe(chan<- *prometheus.Desc) {}

func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	for _, m := range r.snapshot() {
		ch <- m
	}
}

func (r *Registry) snapshot() []prometheus.Metric {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]prometheus.Metric, 0, len(r.families))
	for _, f := range r.families {
		valueType := prometheus.GaugeValue
		if f.kind == KindCounter {
			valueType = prometheus.CounterValue
		}
		for key, s := range f.series {
			if f.kind == KindCounter && r.idleTimeout > 0 && now.Sub(s.updated) > r.idleTimeout {
				delete(f.series, key)
				continue
			}
			desc := f.desc(s.keys)
			m, err := prometheus.NewConstMetric(desc, valueType, s.value, s.values...)
			if err != nil {
				m = prometheus.NewInvalidMetric(desc, err)
			}
			out = append(out, m)
		}
	}
	return out
}
