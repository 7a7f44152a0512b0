package fragment

// Merge folds fragments left to right. Later fragments take precedence:
// maps merge key by key, sequences concatenate and anything else (scalars or
// a kind mismatch) is replaced by the right-hand value.
//
// Merge() returns Empty(). None of the inputs are modified.
func Merge(fragments ...Fragment) Fragment {
	if len(fragments) == 0 {
		return Empty()
	}

	out := fragments[0]
	for _, next := range fragments[1:] {
		out = merge2(out, next)
	}
	return out
}

func merge2(left, right Fragment) Fragment {
	switch {
	case left.kind == KindMap && right.kind == KindMap:
		return mergeMaps(left, right)
	case left.kind == KindSeq && right.kind == KindSeq:
		items := make([]Fragment, 0, len(left.items)+len(right.items))
		items = append(items, left.items...)
		items = append(items, right.items...)
		return Fragment{kind: KindSeq, items: items}
	default:
		return right
	}
}

func mergeMaps(left, right Fragment) Fragment {
	out := Fragment{
		kind:   KindMap,
		keys:   make([]string, 0, len(left.keys)+len(right.keys)),
		fields: make(map[string]Fragment, len(left.keys)+len(right.keys)),
	}

	for _, k := range left.keys {
		out.keys = append(out.keys, k)
		if rv, ok := right.fields[k]; ok {
			out.fields[k] = merge2(left.fields[k], rv)
			continue
		}
		out.fields[k] = left.fields[k]
	}

	for _, k := range right.keys {
		if _, seen := left.fields[k]; seen {
			continue
		}
		out.keys = append(out.keys, k)
		out.fields[k] = right.fields[k]
	}

	return out
}
