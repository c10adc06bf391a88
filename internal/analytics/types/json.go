package types

import (
	"encoding/json"
	"fmt"

	cbigquery "cloud.google.com/go/bigquery"
)

// JSONColumn renders v for a BigQuery JSON column. Raw bytes pass through;
// nil and empty input yield a NULL column.
func JSONColumn(v any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch t := v.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return t, nil
	case json.RawMessage:
		raw = t
	case []byte:
		raw = t
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json column: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
