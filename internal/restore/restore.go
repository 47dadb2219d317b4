// Package restore rebuilds the persisted-record index from a JSON snapshot
// and the changelog entries appended after it.
package restore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"shopcrawl/internal/changelog"
	"shopcrawl/internal/manifest"
	"shopcrawl/internal/model"
	"shopcrawl/internal/snapshot"
	"shopcrawl/internal/state"
)

type Restorer struct {
	store state.Store
	log   *zap.Logger
}

func NewRestorer(st state.Store, log *zap.Logger) *Restorer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Restorer{store: st, log: log}
}

type RestoreResult struct {
	Applied int
	Skipped int
	// LastAppliedOffset is the highest Seq applied.
	LastAppliedOffset int64
	Error             error
}

// RestoreFromSnapshot loads every entry of the JSON snapshot at jsonPath.
// A missing snapshot is not an error.
func (r *Restorer) RestoreFromSnapshot(jsonPath string) (int, error) {
	if jsonPath == "" {
		return 0, nil
	}
	docs, exists, err := snapshot.ReadDocs(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	if !exists {
		r.log.Warn("snapshot not found, skipping", zap.String("path", jsonPath))
		return 0, nil
	}
	loaded := 0
	for i, doc := range docs {
		id, err := snapshot.DocID(doc)
		if err != nil {
			return loaded, fmt.Errorf("snapshot entry %d: %w", i, err)
		}
		ok, err := r.store.Add(id, doc)
		if err != nil {
			return loaded, fmt.Errorf("load %s: %w", id, err)
		}
		if ok {
			loaded++
		}
	}
	r.log.Info("loaded snapshot", zap.String("path", jsonPath), zap.Int("entries", len(docs)), zap.Int("loaded", loaded))
	return loaded, nil
}

// apply adds e unless it belongs to another family or was already
// covered by the snapshot (Seq <= fromOffset).
func (r *Restorer) apply(e changelog.Entry, family string, fromOffset int64, res *RestoreResult) error {
	if family != "" && e.Family != family {
		return nil
	}
	if e.Seq <= fromOffset {
		return nil
	}
	if e.ID == "" {
		return errors.New("entry without id")
	}
	ok, err := r.store.Add(e.ID, e.Record)
	if err != nil {
		return err
	}
	if ok {
		res.Applied++
	} else {
		res.Skipped++
	}
	if e.Seq > res.LastAppliedOffset {
		res.LastAppliedOffset = e.Seq
	}
	return nil
}

// ReplayChangelog applies the JSONL changelog entries at path whose Seq is
// above fromOffset. Entries from other families are ignored when family
// is set.
func (r *Restorer) ReplayChangelog(path, family string, fromOffset int64) RestoreResult {
	file, err := os.Open(path)
	if err != nil {
		return RestoreResult{Error: fmt.Errorf("open changelog: %w", err)}
	}
	defer file.Close()

	var res RestoreResult
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lineNum int64
	for scanner.Scan() {
		lineNum++
		var e changelog.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			res.Error = fmt.Errorf("unmarshal line %d: %w", lineNum, err)
			return res
		}
		if err := r.apply(e, family, fromOffset, &res); err != nil {
			res.Error = fmt.Errorf("apply line %d: %w", lineNum, err)
			return res
		}
	}
	if err := scanner.Err(); err != nil {
		res.Error = fmt.Errorf("scan changelog: %w", err)
	}
	return res
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// ReplayChangelogKafka consumes partition 0 of topic until no message
// arrives for idle, with the same filtering as ReplayChangelog.
func (r *Restorer) ReplayChangelogKafka(ctx context.Context, brokers []string, topic, family string, fromOffset int64, idle time.Duration) RestoreResult {
	rd := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer rd.Close()
	return r.replayMessages(ctx, rd, family, fromOffset, idle)
}

func (r *Restorer) replayMessages(ctx context.Context, rd messageReader, family string, fromOffset int64, idle time.Duration) RestoreResult {
	var res RestoreResult
	var idx int64
	for {
		rctx, cancel := context.WithTimeout(ctx, idle)
		m, err := rd.ReadMessage(rctx)
		idleEnd := errors.Is(rctx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				res.Error = ctx.Err()
				return res
			}
			if errors.Is(err, io.EOF) || idleEnd {
				return res
			}
			res.Error = fmt.Errorf("read kafka: %w", err)
			return res
		}
		idx++
		var e changelog.Entry
		if err := json.Unmarshal(m.Value, &e); err != nil {
			res.Error = fmt.Errorf("unmarshal message %d: %w", idx, err)
			return res
		}
		if err := r.apply(e, family, fromOffset, &res); err != nil {
			res.Error = fmt.Errorf("apply message %d: %w", idx, err)
			return res
		}
	}
}

// RestoreAndReplay loads the snapshot named by the family's latest manifest
// and replays the file changelog entries written after it.
func (r *Restorer) RestoreAndReplay(mr manifest.Reader, family, changelogPath string) (manifest.Manifest, RestoreResult, error) {
	m, err := mr.ReadLatest(family)
	if err != nil {
		return manifest.Manifest{}, RestoreResult{}, fmt.Errorf("read manifest: %w", err)
	}
	if _, err := r.RestoreFromSnapshot(m.JSONPath); err != nil {
		return m, RestoreResult{}, fmt.Errorf("restore snapshot: %w", err)
	}
	res := r.ReplayChangelog(changelogPath, family, m.LastChangelogOffset)
	return m, res, res.Error
}

// Export writes the store contents as a snapshot pair. Either path may be
// empty to skip that format.
func (r *Restorer) Export(jsonPath, csvPath string) (int, error) {
	var docs []json.RawMessage
	var recs []model.Record
	err := r.store.Range(func(id string, doc []byte) error {
		docs = append(docs, json.RawMessage(doc))
		rec, err := recordOf(id, doc)
		if err != nil {
			return fmt.Errorf("decode %s: %w", id, err)
		}
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return 0, err
	}
	var errs []error
	if csvPath != "" {
		errs = append(errs, snapshot.WriteRecordsCSV(csvPath, recs))
	}
	if jsonPath != "" {
		errs = append(errs, snapshot.WriteDocs(jsonPath, docs))
	}
	return len(docs), errors.Join(errs...)
}

// recordOf decodes a stored document, accepting older entries whose id
// was written as a number.
func recordOf(id string, doc []byte) (model.Record, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return model.Record{}, err
	}
	m["id"] = id
	b, err := json.Marshal(m)
	if err != nil {
		return model.Record{}, err
	}
	var rec model.Record
	err = json.Unmarshal(b, &rec)
	return rec, err
}
