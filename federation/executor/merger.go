package executor

import (
	"fmt"
)

// Merge folds a subgraph response (source) into the in-flight root result
// (target) at the given path. An empty path merges source's top-level fields
// directly into target. A path segment naming a list merges each source
// element into the corresponding target element by position, which is how
// entity resolution results line up with the batched _entities selection
// that produced them.
//
// A target list element may be nil: an entity representation whose @key
// could not be resolved in the owning subgraph resolves to GraphQL null
// rather than an object, and that null must propagate rather than abort the
// whole merge (core spec §4.4, partial results on entity resolution
// failure).
func Merge(target map[string]interface{}, source interface{}, path []string) error {
	if len(path) == 0 {
		sourceMap, ok := source.(map[string]interface{})
		if !ok {
			return fmt.Errorf("source must be a map when path is empty")
		}
		for k, v := range sourceMap {
			target[k] = v
		}
		return nil
	}

	key := path[0]
	remainingPath := path[1:]

	value, exists := target[key]
	if !exists {
		if len(remainingPath) > 0 {
			target[key] = make(map[string]interface{})
			value = target[key]
		} else {
			target[key] = source
			return nil
		}
	}

	if list, ok := value.([]interface{}); ok {
		return mergeList(list, source, remainingPath, path)
	}

	if obj, ok := value.(map[string]interface{}); ok {
		if len(remainingPath) == 0 {
			sourceMap, ok := source.(map[string]interface{})
			if !ok {
				return fmt.Errorf("source must be a map when merging into an object")
			}
			for k, v := range sourceMap {
				obj[k] = v
			}
			return nil
		}
		return Merge(obj, source, remainingPath)
	}

	return fmt.Errorf("unsupported type at path %v", path)
}

// mergeList merges source, by position, into each element of a target list
// already present at path. Null elements on either side are skipped rather
// than treated as errors, since a null entity representation is a valid
// resolution outcome, not malformed data.
func mergeList(list []interface{}, source interface{}, remainingPath, path []string) error {
	sourceList, ok := source.([]interface{})
	if !ok {
		return fmt.Errorf("source must be a list when target is a list at path %v, got %T", path, source)
	}
	if len(list) != len(sourceList) {
		return fmt.Errorf("source and target list lengths do not match at path %v: target=%d, source=%d", path, len(list), len(sourceList))
	}

	for i := range list {
		if list[i] == nil || sourceList[i] == nil {
			continue
		}

		targetElem, ok := list[i].(map[string]interface{})
		if !ok {
			return fmt.Errorf("target list element at index %d is not a map", i)
		}

		if len(remainingPath) == 0 {
			sourceElem, ok := sourceList[i].(map[string]interface{})
			if !ok {
				return fmt.Errorf("source list element at index %d is not a map", i)
			}
			for k, v := range sourceElem {
				targetElem[k] = v
			}
			continue
		}

		if err := Merge(targetElem, sourceList[i], remainingPath); err != nil {
			return err
		}
	}

	return nil
}
