package stats

// Multi forwards every measurement to each of its collectors.
type Multi []Collector

// Compile-time check that Multi implements Collector.
var _ Collector = Multi(nil)

// NewMulti returns a collector fanning out to the non-nil collectors. It
// returns a Noop when none remain and the collector itself when only one does.
func NewMulti(collectors ...Collector) Collector {
	var m Multi
	for _, c := range collectors {
		if c != nil {
			m = append(m, c)
		}
	}
	switch len(m) {
	case 0:
		return NewNoop()
	case 1:
		return m[0]
	}
	return m
}

func (m Multi) IncCounter(name string, delta int64) {
	for _, c := range m {
		c.IncCounter(name, delta)
	}
}

func (m Multi) SetGauge(name string, value int64) {
	for _, c := range m {
		c.SetGauge(name, value)
	}
}

func (m Multi) ObserveHistogram(name string, value float64) {
	for _, c := range m {
		c.ObserveHistogram(name, value)
	}
}
