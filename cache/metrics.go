package cache

// NoopMetrics is a drop-in Metrics implementation that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) Hit(string)                {}
func (NoopMetrics) Miss(string)               {}
func (NoopMetrics) Evict(string, EvictReason) {}
func (NoopMetrics) Size(string, int)          {}
func (NoopMetrics) Invalidate(int)            {}

var _ Metrics = NoopMetrics{}
