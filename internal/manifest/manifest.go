// Package manifest records the latest snapshot pair of each run family so
// later runs of the same crawl target keep appending to the same files.
package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNotFound is returned by ReadLatest when a family has no manifest yet.
var ErrNotFound = errors.New("manifest not found")

type Manifest struct {
	RunID               string `json:"runId"`
	Family              string `json:"family"`
	Target              string `json:"target"`
	JSONPath            string `json:"jsonPath"`
	CSVPath             string `json:"csvPath"`
	Records             int    `json:"records"`
	LastChangelogOffset int64  `json:"lastChangelogOffset"`
	CreatedAt           int64  `json:"createdAt"`
}

// NowUnix is swapped in tests.
var NowUnix = func() int64 { return time.Now().UTC().Unix() }

type Publisher interface {
	PublishLatest(ctx context.Context, m Manifest) error
}

type Reader interface {
	ReadLatest(family string) (Manifest, error)
}

type multiPublisher struct {
	pubs []Publisher
}

// MultiPublisher publishes to every pub in order and stops at the first error.
func MultiPublisher(pubs ...Publisher) Publisher {
	return &multiPublisher{pubs: pubs}
}

func (m *multiPublisher) PublishLatest(ctx context.Context, mf Manifest) error {
	for _, p := range m.pubs {
		if err := p.PublishLatest(ctx, mf); err != nil {
			return err
		}
	}
	return nil
}

func stamp(m Manifest) Manifest {
	if m.CreatedAt == 0 {
		m.CreatedAt = NowUnix()
	}
	return m
}

// FilesystemManifest keeps one manifest.<family>.latest.json per family.
type FilesystemManifest struct {
	baseDir string
}

func NewFilesystemManifest(baseDir string) *FilesystemManifest {
	return &FilesystemManifest{baseDir: baseDir}
}

func (f *FilesystemManifest) path(family string) string {
	return filepath.Join(f.baseDir, "manifest."+family+".latest.json")
}

func (f *FilesystemManifest) PublishLatest(_ context.Context, m Manifest) error {
	if m.Family == "" {
		return errors.New("manifest: empty family")
	}
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	m = stamp(m)
	b, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	final := f.path(m.Family)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (f *FilesystemManifest) ReadLatest(family string) (Manifest, error) {
	data, err := os.ReadFile(f.path(family))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Manifest{}, ErrNotFound
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// KafkaManifest publishes the latest manifest per family as a keyed
// record, suitable for a compacted topic.
type KafkaManifest struct {
	writer kafkaMessageWriter
	prefix string
}

type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// SplitBrokers parses a comma-separated broker list.
func SplitBrokers(bootstrap string) []string {
	var brokers []string
	for _, a := range strings.Split(bootstrap, ",") {
		if a = strings.TrimSpace(a); a != "" {
			brokers = append(brokers, a)
		}
	}
	return brokers
}

// NewKafkaManifest builds a publisher for topic. Messages are keyed
// "<prefix>.<family>".
func NewKafkaManifest(brokers []string, topic, prefix string) *KafkaManifest {
	return &KafkaManifest{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, prefix: prefix}
}

// NewKafkaManifestWith is only for tests to inject a fake writer.
func NewKafkaManifestWith(w kafkaMessageWriter, prefix string) *KafkaManifest {
	return &KafkaManifest{writer: w, prefix: prefix}
}

func (k *KafkaManifest) PublishLatest(ctx context.Context, m Manifest) error {
	m = stamp(m)
	b, err := json.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	key := k.prefix + "." + m.Family
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: b}); err != nil {
		return fmt.Errorf("kafka manifest: %w", err)
	}
	return nil
}

// Close releases the underlying writer when it supports closing.
func (k *KafkaManifest) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
