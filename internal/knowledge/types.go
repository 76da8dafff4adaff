package knowledge

// Entry is one chunk of text queued for insertion, paired with its
// metadata. Metadata must be map[string]string to comply with chromem-go
// requirements.
type Entry struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Record is a stored chunk as returned by lookups.
type Record struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Result is a single search hit. Distance is 1 minus cosine similarity,
// so results sort ascending (smaller means closer).
type Result struct {
	Record
	Distance float32 `json:"distance"`
}

// Stats summarizes the state of the store.
type Stats struct {
	TotalChunks    int    `json:"total_chunks"`
	CollectionName string `json:"collection_name"`
	Path           string `json:"path"`
}

// SearchOption configures Query behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK   int
	filter map[string]string
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		c.topK = k
	}
}

// WithFilter restricts results to chunks whose metadata matches the
// given key/value pair. Multiple calls compose with AND logic.
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithFilterMap merges a whole metadata filter map at once.
func WithFilterMap(filter map[string]string) SearchOption {
	return func(c *searchConfig) {
		if len(filter) == 0 {
			return
		}
		if c.filter == nil {
			c.filter = make(map[string]string, len(filter))
		}
		for k, v := range filter {
			c.filter[k] = v
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{topK: 5}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
