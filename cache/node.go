package cache

// node is an intrusive doubly linked list element owned by a shard.
// Head is MRU, tail is LRU.
type node[V any] struct {
	Entry[V]

	prev *node[V]
	next *node[V]
}
