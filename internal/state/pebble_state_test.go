package state

import "testing"

func TestPebbleStore_AddGetRange(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	added, err := st.Add("b", []byte(`{"id":"b"}`))
	if err != nil || !added {
		t.Fatalf("add b: added=%v err=%v", added, err)
	}
	added, err = st.Add("a", []byte(`{"id":"a"}`))
	if err != nil || !added {
		t.Fatalf("add a: added=%v err=%v", added, err)
	}
	added, err = st.Add("b", []byte(`{"id":"b","name":"new"}`))
	if err != nil || added {
		t.Fatalf("duplicate must skip: added=%v err=%v", added, err)
	}

	if doc, ok := st.Get("b"); !ok || string(doc) != `{"id":"b"}` {
		t.Fatalf("get b: %s ok=%v", doc, ok)
	}
	if !st.Has("a") || st.Has("zz") {
		t.Fatalf("membership wrong")
	}
	var ids []string
	if err := st.Range(func(id string, _ []byte) error { ids = append(ids, id); return nil }); err != nil {
		t.Fatalf("range err: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" || st.Len() != 2 {
		t.Fatalf("range should visit keys in order: %v", ids)
	}
}

func TestPebbleStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("pebble open: %v", err)
	}
	if _, err := st.Add("x", []byte(`{"id":"x"}`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if added, _ := st.Add("x", []byte(`{"id":"x","v":2}`)); added {
		t.Fatalf("id persisted before reopen must stay known")
	}
}
