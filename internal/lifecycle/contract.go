package lifecycle

// DefaultContract returns the built-in generation contract. The pipeline core
// treats the contract as opaque data; these defaults only exist so a run
// always carries a fully-populated contract even without a brand preset.
func DefaultContract() map[string]any {
	return map[string]any{
		"tone":     "professional",
		"audience": "general",
		"language": "en",
		"formats":  []any{"summary", "article", "social_post"},
		"drafting": map[string]any{
			"temperature":  0.7,
			"max_variants": 1,
		},
		"review": map[string]any{
			"min_quality_score": 0.6,
		},
	}
}

// ResolveContract layers the generation contract: built-in defaults, then
// brand-preset defaults, then explicit per-run overrides. Later layers win
// per field. Nested maps are merged; lists and scalars replace the lower
// layer wholesale. Nil layers are skipped. Inputs are never mutated.
func ResolveContract(defaults, preset, overrides map[string]any) map[string]any {
	resolved := mergeLayer(nil, defaults)
	resolved = mergeLayer(resolved, preset)
	resolved = mergeLayer(resolved, overrides)
	if resolved == nil {
		resolved = map[string]any{}
	}
	return resolved
}

// mergeLayer returns a new map with overlay applied on top of base.
func mergeLayer(base, overlay map[string]any) map[string]any {
	if base == nil && overlay == nil {
		return nil
	}

	merged := make(map[string]any, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range overlay {
		overlayMap, overlayIsMap := v.(map[string]any)
		baseMap, baseIsMap := merged[k].(map[string]any)
		if overlayIsMap && baseIsMap {
			merged[k] = mergeLayer(baseMap, overlayMap)
			continue
		}
		merged[k] = v
	}

	return merged
}
