// Package snapshot merges crawled records into the persisted JSON and CSV
// snapshot pair. Existing entries always win over new ones with the same id.
package snapshot

import (
	"errors"

	"shopcrawl/internal/model"
)

// FormatResult describes one format's merge.
type FormatResult struct {
	Existing int
	Appended int
	Total    int
}

type Result struct {
	JSON FormatResult
	CSV  FormatResult
	// Added holds the records appended to the JSON snapshot, in order.
	Added []model.Record
}

// Snapshotter persists a batch of records.
type Snapshotter interface {
	MergeAndSave(recs []model.Record) (Result, error)
}

// Files is the on-disk snapshot pair.
type Files struct {
	JSONPath string
	CSVPath  string
}

func (f Files) MergeAndSave(recs []model.Record) (Result, error) {
	return MergeAndSave(recs, f.JSONPath, f.CSVPath)
}

// MergeAndSave merges recs into both snapshot formats. With no records the
// files are left untouched. Both formats are always attempted; failures
// are joined into the returned error.
func MergeAndSave(recs []model.Record, jsonPath, csvPath string) (Result, error) {
	var res Result
	if len(recs) == 0 {
		return res, nil
	}
	var errs []error
	csvRes, err := MergeCSV(recs, csvPath)
	if err != nil {
		errs = append(errs, err)
	} else {
		res.CSV = csvRes
	}
	jsonRes, added, err := MergeJSON(recs, jsonPath)
	if err != nil {
		errs = append(errs, err)
	} else {
		res.JSON = jsonRes
		res.Added = added
	}
	return res, errors.Join(errs...)
}

// Save writes recs as a fresh snapshot pair, replacing any existing files.
// Later duplicates of an id are dropped.
func Save(recs []model.Record, jsonPath, csvPath string) error {
	recs = Unique(recs)
	return errors.Join(WriteRecordsCSV(csvPath, recs), WriteRecords(jsonPath, recs))
}

// Unique keeps the first record per id.
func Unique(recs []model.Record) []model.Record {
	seen := make(map[string]struct{}, len(recs))
	out := make([]model.Record, 0, len(recs))
	for _, r := range recs {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
