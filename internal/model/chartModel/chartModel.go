package chartModel

// RawChartResponse mirrors the provider's v8 chart payload. Close
// values are pointers because the provider emits null for buckets
// without a traded close.
type RawChartResponse struct {
	Chart RawChart `json:"chart"`
}

type RawChart struct {
	Result []RawChartResult `json:"result"`
	Error  *RawChartError   `json:"error"`
}

type RawChartResult struct {
	Timestamp  []int64       `json:"timestamp"`
	Indicators RawIndicators `json:"indicators"`
}

type RawIndicators struct {
	Quote []RawQuote `json:"quote"`
}

type RawQuote struct {
	Close []*float64 `json:"close"`
}

type RawChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
