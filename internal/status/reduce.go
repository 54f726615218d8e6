package status

// snapshotShape lists the subtrees kept when dumping a discovery run
// as a replayable fixture. A nil value keeps the subtree verbatim.
var snapshotShape = map[string]any{
	"sfp": map[string]any{
		"config": nil,
	},
	"config":      nil,
	"extra":       nil,
	"sklk_pl_eth": nil,
	"jtagblob":    nil,
	"global": map[string]any{
		"message_index": nil,
		"chain_index":   nil,
	},
}

// Reduce filters the document down to the fields reconciliation reads,
// producing a deterministic snapshot small enough to commit as a test
// fixture.
func (d Document) Reduce() Document {
	if d == nil {
		return nil
	}

	reduced, _ := reduceValue(map[string]any(d), snapshotShape).(map[string]any)

	return Document(reduced)
}

func reduceValue(value any, shape any) any {
	if shape == nil {
		return value
	}

	wantKeys, ok := shape.(map[string]any)
	if !ok {
		return value
	}

	m, ok := value.(map[string]any)
	if !ok {
		return value
	}

	out := make(map[string]any)

	for key, sub := range wantKeys {
		if v, present := m[key]; present {
			out[key] = reduceValue(v, sub)
		}
	}

	return out
}
