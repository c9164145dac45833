package sweep

// Result is the structured outcome returned by a manual or scheduled sweep
// run. The same value backs the diagnostic API response.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
