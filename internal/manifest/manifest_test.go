package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestPublishAndReadLatest(t *testing.T) {
	dir := t.TempDir()
	m := NewFilesystemManifest(dir)
	in := Manifest{RunID: "r1", Family: "category_sp", JSONPath: "a.json", CSVPath: "a.csv", Records: 3, LastChangelogOffset: 42}
	if err := m.PublishLatest(context.Background(), in); err != nil {
		t.Fatalf("PublishLatest error: %v", err)
	}
	got, err := m.ReadLatest("category_sp")
	if err != nil {
		t.Fatalf("ReadLatest error: %v", err)
	}
	if got.RunID != "r1" || got.JSONPath != "a.json" || got.LastChangelogOffset != 42 || got.CreatedAt == 0 {
		t.Fatalf("unexpected manifest: %+v", got)
	}
}

func TestReadLatest_FamiliesAreIndependent(t *testing.T) {
	m := NewFilesystemManifest(t.TempDir())
	if err := m.PublishLatest(context.Background(), Manifest{Family: "a", RunID: "1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.ReadLatest("b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestPublishLatest_RejectsEmptyFamily(t *testing.T) {
	m := NewFilesystemManifest(t.TempDir())
	if err := m.PublishLatest(context.Background(), Manifest{RunID: "x"}); err == nil {
		t.Fatalf("expected error")
	}
}

type fakeKafkaWriter struct {
	msgs []kafka.Message
	fail bool
}

func (f *fakeKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.fail {
		return errors.New("fail")
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func TestKafkaManifest_PublishLatest_Success(t *testing.T) {
	old := NowUnix
	NowUnix = func() int64 { return 1700000000 }
	defer func() { NowUnix = old }()

	fk := &fakeKafkaWriter{}
	km := NewKafkaManifestWith(fk, "shopcrawl-manifest")
	if err := km.PublishLatest(context.Background(), Manifest{Family: "group_1", RunID: "r"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fk.msgs) != 1 {
		t.Fatalf("want 1 msg, got %d", len(fk.msgs))
	}
	if string(fk.msgs[0].Key) != "shopcrawl-manifest.group_1" {
		t.Fatalf("bad key: %s", fk.msgs[0].Key)
	}
	var got Manifest
	if err := json.Unmarshal(fk.msgs[0].Value, &got); err != nil || got.CreatedAt != 1700000000 {
		t.Fatalf("bad value: %s (%v)", fk.msgs[0].Value, err)
	}
}

func TestMultiPublisher_StopsAtFirstError(t *testing.T) {
	ok := &fakeKafkaWriter{}
	bad := &fakeKafkaWriter{fail: true}
	after := &fakeKafkaWriter{}
	p := MultiPublisher(NewKafkaManifestWith(ok, "k"), NewKafkaManifestWith(bad, "k"), NewKafkaManifestWith(after, "k"))
	if err := p.PublishLatest(context.Background(), Manifest{Family: "f"}); err == nil {
		t.Fatalf("expected error")
	}
	if len(ok.msgs) != 1 || len(after.msgs) != 0 {
		t.Fatalf("ok=%d after=%d", len(ok.msgs), len(after.msgs))
	}
}

func TestSplitBrokers(t *testing.T) {
	got := SplitBrokers(" a:9092, ,b:9092 ")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("got %v", got)
	}
	if SplitBrokers("") != nil {
		t.Fatalf("empty input should yield nil")
	}
}
