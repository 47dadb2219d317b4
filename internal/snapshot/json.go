package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"shopcrawl/internal/model"
	"shopcrawl/internal/state"
)

// ReadDocs loads a JSON array snapshot without interpreting its entries,
// so fields from older or newer schema versions survive a rewrite.
// exists is false when path does not exist.
func ReadDocs(path string) (docs []json.RawMessage, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	if err := json.Unmarshal(b, &docs); err != nil {
		return nil, true, &PersistenceError{Path: path, Op: "decode", Err: err}
	}
	if docs == nil && !bytes.Equal(bytes.TrimSpace(b), []byte("[]")) {
		return nil, true, &PersistenceError{Path: path, Op: "decode", Err: errors.New("snapshot is not a JSON array")}
	}
	return docs, true, nil
}

// LoadRecords reads a JSON snapshot into typed records.
func LoadRecords(path string) ([]model.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	var recs []model.Record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, &PersistenceError{Path: path, Op: "decode", Err: err}
	}
	return recs, nil
}

// DocID extracts the id of a raw snapshot entry.
func DocID(doc json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return "", err
	}
	return model.IDOf(m), nil
}

// MergeJSON appends the records whose id is not yet in the snapshot at
// path and rewrites it. Existing entries keep their order and content.
func MergeJSON(recs []model.Record, path string) (FormatResult, []model.Record, error) {
	existing, _, err := ReadDocs(path)
	if err != nil {
		return FormatResult{}, nil, err
	}
	seen := state.NewInMemoryStore()
	for i, doc := range existing {
		id, err := DocID(doc)
		if err != nil {
			return FormatResult{}, nil, &PersistenceError{Path: path, Op: "decode", Err: fmt.Errorf("entry %d: %w", i, err)}
		}
		_, _ = seen.Add(id, nil)
	}

	out := make([]json.RawMessage, 0, len(existing)+len(recs))
	out = append(out, existing...)
	var added []model.Record
	for _, r := range recs {
		if ok, _ := seen.Add(r.ID, nil); !ok {
			continue
		}
		b, err := marshal(r)
		if err != nil {
			return FormatResult{}, nil, &PersistenceError{Path: path, Op: "encode", Err: err}
		}
		out = append(out, b)
		added = append(added, r)
	}

	if err := WriteDocs(path, out); err != nil {
		return FormatResult{}, nil, err
	}
	return FormatResult{Existing: len(existing), Appended: len(added), Total: len(out)}, added, nil
}

// WriteDocs replaces path with docs as an indented JSON array. Non-ASCII
// and HTML characters are written unescaped.
func WriteDocs(path string, docs []json.RawMessage) error {
	if docs == nil {
		docs = []json.RawMessage{}
	}
	err := writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(docs); err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		return nil
	})
	if err != nil {
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// WriteRecords replaces path with recs.
func WriteRecords(path string, recs []model.Record) error {
	docs := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		b, err := marshal(r)
		if err != nil {
			return &PersistenceError{Path: path, Op: "encode", Err: err}
		}
		docs = append(docs, b)
	}
	return WriteDocs(path, docs)
}

func marshal(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
