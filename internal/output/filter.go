package output

import (
	"encoding/json"
	"errors"

	"github.com/itchyny/gojq"
)

// ApplyJQ runs a jq expression over data. A single result is returned as is;
// multiple results are collected into a slice.
func ApplyJQ(expr string, data any) (any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, ErrUsageHint("Invalid --jq expression", err.Error())
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ErrUsageHint("Invalid --jq expression", err.Error())
	}

	input, err := jqInput(data)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, ErrUsageHint("--jq evaluation failed", err.Error())
		}
		results = append(results, v)
	}

	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

// jqInput converts data to the plain JSON value types gojq accepts.
func jqInput(data any) (any, error) {
	var b []byte
	if raw, ok := data.(json.RawMessage); ok {
		b = raw
	} else {
		var err error
		if b, err = json.Marshal(data); err != nil {
			return nil, err
		}
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
