package intelligence

// Stage schemas, in the subset of JSON schema both providers enforce
// natively. Field names here are the wire contract the stage structs in
// types.go decode from.

func exploreSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"siteSummary": map[string]any{"type": "string"},
			"confidence":  map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"candidates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"url":      map[string]any{"type": "string"},
						"priority": map[string]any{"type": "string", "enum": []string{"high", "medium", "low"}},
						"reason":   map[string]any{"type": "string"},
					},
					"required": []string{"url", "priority"},
				},
			},
			"paginationUrls": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"siteSummary", "confidence", "candidates", "paginationUrls"},
	}
}

func analyzeSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"method":     map[string]any{"type": "string", "enum": []string{"css", "xpath", "text"}},
			"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			"selectors": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"challenges":      map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"recommendations": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"method", "confidence", "selectors"},
	}
}

func extractSchema() map[string]any {
	str := map[string]any{"type": "string"}
	strOrNum := map[string]any{"type": []string{"string", "number", "null"}}
	strList := map[string]any{"type": "array", "items": str}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"make":        str,
			"model":       str,
			"trim":        str,
			"year":        strOrNum,
			"price":       strOrNum,
			"mileage":     strOrNum,
			"condition":   str,
			"features":    strList,
			"images":      strList,
			"description": str,
			"location":    str,
			"vin":         str,
			"externalId":  str,
			"title":       str,
		},
		"required": []string{"make", "model", "title"},
	}
}

func validateSchema() map[string]any {
	ratio := map[string]any{"type": "number", "minimum": 0, "maximum": 1}
	strList := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isValid":         map[string]any{"type": "boolean"},
			"completeness":    ratio,
			"precision":       ratio,
			"consistency":     ratio,
			"qualityScore":    map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			"issues":          strList,
			"likelyDuplicate": map[string]any{"type": "boolean"},
			"recommendations": strList,
		},
		"required": []string{"isValid", "completeness", "precision", "consistency", "qualityScore"},
	}
}
