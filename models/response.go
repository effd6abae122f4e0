package models

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	// Success indicates whether the page could be scored at all. A feature
	// that finds no candidate does not clear it; see Misses.
	Success bool `json:"success"`

	// Product holds the extracted values. Missed features are empty.
	Product *Product `json:"product,omitempty"`

	// Scores holds the winning score per feature.
	Scores map[Feature]float64 `json:"scores,omitempty"`

	// Misses lists the features no candidate was selected for.
	Misses []Feature `json:"misses,omitempty"`

	// Candidates holds the top scored candidates per feature when the
	// request asked for them.
	Candidates map[Feature][]CandidateInfo `json:"candidates,omitempty"`

	// Elements is the number of elements in the parsed document.
	Elements int `json:"elements,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing TimingInfo `json:"timing"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// CandidateInfo describes one scored element.
type CandidateInfo struct {
	Index int     `json:"index"`
	Tag   string  `json:"tag"`
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// CompareResponse is the response for POST /api/v1/compare.
type CompareResponse struct {
	Success bool         `json:"success"`
	Match   bool         `json:"match"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ParseMs is the time spent parsing markup and geometry.
	ParseMs int64 `json:"parse_ms"`

	// ScoringMs is the time spent running the rulesets.
	ScoringMs int64 `json:"scoring_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string     `json:"status"`
	Uptime   string     `json:"uptime"`
	Version  string     `json:"version"`
	Viewport Viewport   `json:"viewport"`
	Cache    CacheStats `json:"cache"`
}

// CacheStats reports response cache usage.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
