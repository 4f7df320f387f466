package reconciler

import "sync"

// LabelKey identifies one set of published session gauges.
type LabelKey struct {
	Address    string
	ClientID   string
	Identifier string
	Volume     string
	Namespace  string
	Pod        string
}

func (k LabelKey) values() []string {
	return []string{k.Address, k.ClientID, k.Identifier, k.Volume, k.Namespace, k.Pod}
}

// Values are the gauges published for one LabelKey.
type Values struct {
	Flushes   float64
	Completed float64
	InFlight  float64
}

type series struct {
	mu sync.Mutex
	v  Values
}

// GaugeStore holds session gauges. Updates to one key never block or
// corrupt another key.
type GaugeStore struct {
	mu     sync.RWMutex
	series map[LabelKey]*series
}

// NewGaugeStore creates an empty GaugeStore.
func NewGaugeStore() *GaugeStore {
	return &GaugeStore{series: make(map[LabelKey]*series)}
}

func (s *GaugeStore) lookup(key LabelKey) *series {
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if ok {
		return sr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[key]; !ok {
		sr = &series{}
		s.series[key] = sr
	}
	return sr
}

// Get returns the published values for key.
func (s *GaugeStore) Get(key LabelKey) (Values, bool) {
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if !ok {
		return Values{}, false
	}
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.v, true
}

// Set overwrites the values for key.
func (s *GaugeStore) Set(key LabelKey, v Values) {
	sr := s.lookup(key)
	sr.mu.Lock()
	sr.v = v
	sr.mu.Unlock()
}

// Observe applies a freshly reported sample to key using reset-safe
// accumulation and returns the published values.
func (s *GaugeStore) Observe(key LabelKey, reported Values) Values {
	sr := s.lookup(key)
	sr.mu.Lock()
	defer sr.mu.Unlock()

	sr.v = Values{
		Flushes:   accumulate(sr.v.Flushes, reported.Flushes),
		Completed: accumulate(sr.v.Completed, reported.Completed),
		InFlight:  reported.InFlight,
	}
	return sr.v
}

// Delete stops publishing key. It reports whether key was tracked.
func (s *GaugeStore) Delete(key LabelKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.series[key]
	delete(s.series, key)
	return ok
}

// Len returns the number of tracked label keys.
func (s *GaugeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series)
}

// each calls fn with a consistent copy of every series.
func (s *GaugeStore) each(fn func(LabelKey, Values)) {
	s.mu.RLock()
	keys := make([]LabelKey, 0, len(s.series))
	all := make([]*series, 0, len(s.series))
	for k, sr := range s.series {
		keys = append(keys, k)
		all = append(all, sr)
	}
	s.mu.RUnlock()

	for i, sr := range all {
		sr.mu.Lock()
		v := sr.v
		sr.mu.Unlock()
		fn(keys[i], v)
	}
}

// accumulate keeps a counter from visibly regressing to zero when the ceph
// client restarts and its local counters reset.
func accumulate(prev, cur float64) float64 {
	if cur == 0 && prev > 0 {
		return prev
	}
	return cur
}
