package llm

// DefaultMaxTokens is the fallback output budget when a request does
// not specify max_tokens. Re-extraction responses are small JSON
// documents, so the default stays modest.
const DefaultMaxTokens = 1024

// ExtractOptionalInt reads an int-valued option, falling back to def
// when the key is absent, the wrong type, or rejected by the validator.
func ExtractOptionalInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	raw, ok := opts[key]
	if !ok {
		return def
	}
	val, ok := SafeInt(raw)
	if !ok {
		return def
	}
	if valid != nil && !valid(val) {
		return def
	}
	return val
}

// ExtractOptionalString reads a string-valued option with the same
// fallback behavior as ExtractOptionalInt.
func ExtractOptionalString(opts map[string]any, key, def string, valid func(string) bool) string {
	raw, ok := opts[key]
	if !ok {
		return def
	}
	val, ok := raw.(string)
	if !ok {
		return def
	}
	if valid != nil && !valid(val) {
		return def
	}
	return val
}

// ExtractOptionalFloat64 reads a float-valued option, accepting ints
// for convenience, with the same fallback behavior as
// ExtractOptionalInt.
func ExtractOptionalFloat64(opts map[string]any, key string, def float64, valid func(float64) bool) float64 {
	raw, ok := opts[key]
	if !ok {
		return def
	}

	var val float64
	switch v := raw.(type) {
	case float64:
		val = v
	case float32:
		val = float64(v)
	case int:
		val = float64(v)
	case int64:
		val = float64(v)
	default:
		return def
	}

	if valid != nil && !valid(val) {
		return def
	}
	return val
}
