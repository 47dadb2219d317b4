package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"shopcrawl/internal/model"
)

func paths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "out", "products.json"), filepath.Join(dir, "out", "product_data.csv")
}

func readJSON(t *testing.T, path string) []map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	var out []map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("bad json in %s: %v", path, err)
	}
	return out
}

func readCSV(t *testing.T, path string) *Table {
	t.Helper()
	tbl, ok, err := ReadTable(path)
	if err != nil || !ok {
		t.Fatalf("read table %s: ok=%v err=%v", path, ok, err)
	}
	return tbl
}

func ids(docs []map[string]any) []string {
	var out []string
	for _, d := range docs {
		out = append(out, model.IDOf(d))
	}
	return out
}

func TestMergeAndSave_EmptyBatchIsNoop(t *testing.T) {
	jp, cp := paths(t)
	res, err := MergeAndSave(nil, jp, cp)
	if err != nil {
		t.Fatalf("MergeAndSave: %v", err)
	}
	if res.JSON.Total != 0 || res.CSV.Total != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(jp); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("json snapshot must not be created")
	}
	if _, err := os.Stat(cp); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("csv snapshot must not be created")
	}
}

func TestMergeAndSave_CreatesThenAppendsNewOnly(t *testing.T) {
	jp, cp := paths(t)
	first := []model.Record{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	res, err := MergeAndSave(first, jp, cp)
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if res.JSON.Appended != 2 || res.CSV.Appended != 2 || len(res.Added) != 2 {
		t.Fatalf("first result: %+v", res)
	}

	second := []model.Record{{ID: "2", Name: "b2"}, {ID: "3", Name: "c"}}
	res, err = MergeAndSave(second, jp, cp)
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if res.JSON.Existing != 2 || res.JSON.Appended != 1 || res.JSON.Total != 3 {
		t.Fatalf("json result: %+v", res.JSON)
	}
	if res.CSV.Appended != 1 || res.CSV.Total != 3 {
		t.Fatalf("csv result: %+v", res.CSV)
	}
	if len(res.Added) != 1 || res.Added[0].ID != "3" {
		t.Fatalf("added: %+v", res.Added)
	}
	got := ids(readJSON(t, jp))
	if strings.Join(got, ",") != "1,2,3" {
		t.Fatalf("json order: %v", got)
	}
}

func TestMergeAndSave_Idempotent(t *testing.T) {
	jp, cp := paths(t)
	batch := []model.Record{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}
	if _, err := MergeAndSave(batch, jp, cp); err != nil {
		t.Fatalf("merge 1: %v", err)
	}
	j1, _ := os.ReadFile(jp)
	c1, _ := os.ReadFile(cp)
	res, err := MergeAndSave(batch, jp, cp)
	if err != nil {
		t.Fatalf("merge 2: %v", err)
	}
	if res.JSON.Appended != 0 || res.CSV.Appended != 0 {
		t.Fatalf("second merge appended: %+v", res)
	}
	j2, _ := os.ReadFile(jp)
	c2, _ := os.ReadFile(cp)
	if string(j1) != string(j2) || string(c1) != string(c2) {
		t.Fatalf("snapshot changed on repeated merge")
	}
}

func TestMergeAndSave_ExistingIDWins(t *testing.T) {
	jp, cp := paths(t)
	if _, err := MergeAndSave([]model.Record{{ID: "A", Name: "old"}}, jp, cp); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := MergeAndSave([]model.Record{{ID: "A", Name: "new"}}, jp, cp); err != nil {
		t.Fatalf("merge: %v", err)
	}
	docs := readJSON(t, jp)
	if len(docs) != 1 || docs[0]["name"] != "old" {
		t.Fatalf("json: want single old A, got %v", docs)
	}
	tbl := readCSV(t, cp)
	if len(tbl.Rows) != 1 || tbl.Rows[0][tbl.column("name")] != "old" {
		t.Fatalf("csv: want single old A, got %v", tbl.Rows)
	}
}

func TestMergeAndSave_BatchDuplicatesCollapse(t *testing.T) {
	jp, cp := paths(t)
	res, err := MergeAndSave([]model.Record{{ID: "1", Name: "first"}, {ID: "1", Name: "second"}}, jp, cp)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if res.JSON.Total != 1 || res.CSV.Total != 1 {
		t.Fatalf("duplicates inside a batch must collapse: %+v", res)
	}
	if docs := readJSON(t, jp); docs[0]["name"] != "first" {
		t.Fatalf("first occurrence must win: %v", docs)
	}
}

func TestMergeJSON_PreservesOtherSchemaVersion(t *testing.T) {
	jp, _ := paths(t)
	if err := os.MkdirAll(filepath.Dir(jp), 0o755); err != nil {
		t.Fatal(err)
	}
	prior := `[{"id": 7, "name": "legacy", "variant_count": 3, "images": [{"url": "x"}]}]`
	if err := os.WriteFile(jp, []byte(prior), 0o644); err != nil {
		t.Fatal(err)
	}
	res, _, err := MergeJSON([]model.Record{{ID: "7", Name: "dup"}, {ID: "8", Name: "Dầu gội <b>mới</b>"}}, jp)
	if err != nil {
		t.Fatalf("MergeJSON: %v", err)
	}
	if res.Appended != 1 || res.Total != 2 {
		t.Fatalf("numeric legacy id must dedup against string id: %+v", res)
	}
	b, _ := os.ReadFile(jp)
	if !strings.Contains(string(b), `"variant_count": 3`) {
		t.Fatalf("legacy fields lost:\n%s", b)
	}
	if !strings.Contains(string(b), "Dầu gội <b>mới</b>") {
		t.Fatalf("non-ASCII or HTML escaped:\n%s", b)
	}
	if !strings.Contains(string(b), "\n  {") {
		t.Fatalf("expected two-space indentation:\n%s", b)
	}
}

func TestMergeCSV_UnionsColumnsAcrossSchemas(t *testing.T) {
	_, cp := paths(t)
	if err := os.MkdirAll(filepath.Dir(cp), 0o755); err != nil {
		t.Fatal(err)
	}
	prior := "\xEF\xBB\xBFid,name,legacy_col\n1,old,keep\n"
	if err := os.WriteFile(cp, []byte(prior), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := MergeCSV([]model.Record{{ID: "1", Name: "new"}, {ID: "2", Name: "b", Price: 5}}, cp)
	if err != nil {
		t.Fatalf("MergeCSV: %v", err)
	}
	if res.Existing != 1 || res.Appended != 1 || res.Total != 2 {
		t.Fatalf("result: %+v", res)
	}
	tbl := readCSV(t, cp)
	if tbl.Header[0] != "id" || tbl.Header[2] != "legacy_col" || tbl.column("price") < 0 {
		t.Fatalf("header: %v", tbl.Header)
	}
	if tbl.Rows[0][tbl.column("legacy_col")] != "keep" || tbl.Rows[0][tbl.column("name")] != "old" {
		t.Fatalf("existing row changed: %v", tbl.Rows[0])
	}
	if tbl.Rows[1][tbl.column("legacy_col")] != "" || tbl.Rows[1][tbl.column("price")] != "5" {
		t.Fatalf("new row projection: %v", tbl.Rows[1])
	}
}

func TestMergeAndSave_CorruptJSONStillWritesCSV(t *testing.T) {
	jp, cp := paths(t)
	if err := os.MkdirAll(filepath.Dir(jp), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jp, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := MergeAndSave([]model.Record{{ID: "1"}}, jp, cp)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Path != jp || pe.Op != "decode" {
		t.Fatalf("want decode PersistenceError for %s, got %v", jp, err)
	}
	if tbl := readCSV(t, cp); len(tbl.Rows) != 1 {
		t.Fatalf("csv must still be written, rows=%d", len(tbl.Rows))
	}
	if b, _ := os.ReadFile(jp); string(b) != `{not json` {
		t.Fatalf("corrupt snapshot must be left for inspection")
	}
}

func TestMergeCSV_MissingIDColumnFails(t *testing.T) {
	_, cp := paths(t)
	_ = os.MkdirAll(filepath.Dir(cp), 0o755)
	_ = os.WriteFile(cp, []byte("name\nx\n"), 0o644)
	if _, err := MergeCSV([]model.Record{{ID: "1"}}, cp); err == nil {
		t.Fatalf("expected error for csv without id column")
	}
}

func TestMergeCSV_RowWiderThanHeaderFails(t *testing.T) {
	_, cp := paths(t)
	_ = os.MkdirAll(filepath.Dir(cp), 0o755)
	_ = os.WriteFile(cp, []byte("id,name\nA,old,extra\n"), 0o644)
	_, err := MergeCSV([]model.Record{{ID: "B"}}, cp)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "decode" {
		t.Fatalf("want decode PersistenceError, got %v", err)
	}
	if b, _ := os.ReadFile(cp); string(b) != "id,name\nA,old,extra\n" {
		t.Fatalf("corrupt csv must be left as is, got %q", b)
	}
}

func TestMergeJSON_NullSnapshotFails(t *testing.T) {
	jp, _ := paths(t)
	_ = os.MkdirAll(filepath.Dir(jp), 0o755)
	_ = os.WriteFile(jp, []byte("null\n"), 0o644)
	_, _, err := MergeJSON([]model.Record{{ID: "1"}}, jp)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "decode" {
		t.Fatalf("want decode PersistenceError, got %v", err)
	}
	if b, _ := os.ReadFile(jp); string(b) != "null\n" {
		t.Fatalf("snapshot must be left as is, got %q", b)
	}
}

func TestMergeJSON_EmptyArrayIsValid(t *testing.T) {
	jp, _ := paths(t)
	_ = os.MkdirAll(filepath.Dir(jp), 0o755)
	_ = os.WriteFile(jp, []byte(" [] "), 0o644)
	if _, _, err := MergeJSON([]model.Record{{ID: "1"}}, jp); err != nil {
		t.Fatalf("empty array snapshot: %v", err)
	}
}

func TestSave_WritesEnrichedColumns(t *testing.T) {
	jp, cp := paths(t)
	recs := []model.Record{
		{ID: "1", Description: "<p>a</p>", Images: []string{"u1", "u2"}},
		{ID: "1", Name: "dup"},
		{ID: "2"},
	}
	if err := Save(recs, jp, cp); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if docs := readJSON(t, jp); len(docs) != 2 {
		t.Fatalf("json entries=%d want 2", len(docs))
	}
	tbl := readCSV(t, cp)
	if tbl.column("variant_count") < 0 || tbl.Rows[0][tbl.column("images")] != "u1, u2" {
		t.Fatalf("enriched projection: %v / %v", tbl.Header, tbl.Rows)
	}
	if tbl.Rows[1][tbl.column("variant_count")] != "" {
		t.Fatalf("unenriched row should leave detail cells empty: %v", tbl.Rows[1])
	}
	loaded, err := LoadRecords(jp)
	if err != nil || len(loaded) != 2 || loaded[0].Images[1] != "u2" {
		t.Fatalf("LoadRecords: %v %+v", err, loaded)
	}
}
