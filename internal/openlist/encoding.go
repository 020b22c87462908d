package openlist

import (
	"bytes"
	"encoding/json"
	"io"
)

// jsonBody encodes v as a JSON request body. It panics on encode failure
// only for types under this package's control (the small request structs
// in types.go), which can never fail to marshal.
func jsonBody(v any) io.Reader {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return bytes.NewReader(raw)
}

func jsonDecode(raw []byte, v any) error {
	return json.Unmarshal(raw, v)
}
