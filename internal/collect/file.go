package collect

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"rookery/internal/model"
)

// FileCollector replays JSONL exports produced by an external scraping run.
// It looks for <dir>/<handle>.<dataType>.jsonl, one string-keyed record per
// line. It exists so every downstream path can run without a live browser;
// the real automation sits behind the same Collector interface out of tree.
type FileCollector struct {
	Dir string
}

func (f *FileCollector) Collect(ctx context.Context, handle string, dataType model.DataType, maxCount int) ([]RawRecord, error) {
	path := filepath.Join(f.Dir, fmt.Sprintf("%s.%s.jsonl", handle, dataType))
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer fh.Close()

	var out []RawRecord
	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			// malformed lines are skipped, not fatal
			continue
		}
		if dataType.IsFollowType() {
			p := NormalizeProfile(m)
			out = append(out, RawRecord{Profile: &p})
		} else {
			p := NormalizePost(m)
			out = append(out, RawRecord{Post: &p})
		}
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read export: %w", err)
	}
	return out, nil
}
