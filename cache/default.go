package cache

import "sync"

var (
	defaultMu      sync.Mutex
	defaultCluster *Cluster[[]byte]
)

// InitDefault builds the process-wide byte-slice cluster returned by Default.
// It must be called once, explicitly; later calls return ErrDefaultInitialized
// and leave the existing cluster untouched.
func InitDefault(opt Options[[]byte]) (*Cluster[[]byte], error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCluster != nil {
		return defaultCluster, ErrDefaultInitialized
	}
	c, err := New(opt)
	if err != nil {
		return nil, err
	}
	defaultCluster = c
	return c, nil
}

// Default returns the cluster built by InitDefault.
func Default() (*Cluster[[]byte], error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultCluster == nil {
		return nil, ErrDefaultNotInitialized
	}
	return defaultCluster, nil
}
