package domain

// MergeSafe merges incoming into existing without ever letting empty data
// destroy captured data. The rule, applied recursively:
//
//   - nil incoming values are skipped
//   - an empty existing slot (nil or "") takes the incoming value
//   - two maps merge key-wise
//   - an incoming non-empty array replaces the existing one; an empty
//     incoming array never does
//   - a non-empty incoming scalar refines a non-empty existing one, but an
//     empty incoming scalar never blanks it
//
// Neither argument is mutated; the result is a fresh map. This one function
// governs Lead.Data, Conversation.KnownFields and every contact field touched
// by extraction.
func MergeSafe(existing, incoming map[string]any) map[string]any {
	merged := make(map[string]any, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}

	for key, incomingVal := range incoming {
		if incomingVal == nil {
			continue
		}

		existingVal, present := merged[key]
		if !present || isEmptyValue(existingVal) {
			merged[key] = incomingVal
			continue
		}

		existingMap, existingIsMap := existingVal.(map[string]any)
		incomingMap, incomingIsMap := incomingVal.(map[string]any)
		if existingIsMap && incomingIsMap {
			merged[key] = MergeSafe(existingMap, incomingMap)
			continue
		}

		if incomingArr, ok := incomingVal.([]any); ok {
			if len(incomingArr) > 0 {
				merged[key] = incomingVal
			}
			continue
		}

		// Scalar refinement: new confirmed information wins, extraction
		// failure (empty) never does.
		if !isEmptyValue(incomingVal) {
			merged[key] = incomingVal
		}
	}

	return merged
}

// FirstNonEmpty returns existing unless it is empty and incoming is not.
// The string-field twin of MergeSafe, used for contact columns.
func FirstNonEmpty(existing, incoming string) string {
	if existing == "" {
		return incoming
	}
	return existing
}

func isEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	case map[string]any:
		return len(typed) == 0
	}
	return false
}
