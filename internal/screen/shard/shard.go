// Package shard implements the sized-output-file writer the yellow
// screen stage shards canonical records into: write-to-temp, fsync,
// rename, then a completion marker, so a reader never observes a
// half-written shard.
package shard

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Options configures one Sharder.
type Options struct {
	Dir                string
	Prefix             string
	MaxRecordsPerShard int
	Compression        bool // true => .jsonl.gz
}

// CompletionMarker is the JSON body written to "<shard>.complete".
type CompletionMarker struct {
	ShardPath       string `json:"shard_path"`
	CompletedAtUTC  string `json:"completed_at"`
	ShardSizeBytes  int64  `json:"shard_size_bytes"`
	RecordCount     int    `json:"record_count"`
}

// Sharder accumulates records into an in-progress shard file and
// rotates to a new one once MaxRecordsPerShard is reached, or on Close.
type Sharder struct {
	opt       Options
	index     int
	count     int
	tmpPath   string
	f         *os.File
	gz        *gzip.Writer
}

// NewSharder returns a Sharder writing into opt.Dir, creating it if
// missing. Shard filenames are "<prefix>_NNNNN.jsonl" or
// "<prefix>_NNNNN.jsonl.gz" when Compression is set.
func NewSharder(opt Options) (*Sharder, error) {
	if opt.MaxRecordsPerShard <= 0 {
		opt.MaxRecordsPerShard = 50000
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		return nil, err
	}
	s := &Sharder{opt: opt}
	if err := s.startShard(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sharder) shardName() string {
	ext := ".jsonl"
	if s.opt.Compression {
		ext += ".gz"
	}
	return fmt.Sprintf("%s_%05d%s", s.opt.Prefix, s.index, ext)
}

func (s *Sharder) startShard() error {
	s.tmpPath = filepath.Join(s.opt.Dir, s.shardName()+".tmp")
	f, err := os.OpenFile(s.tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	s.f = f
	s.count = 0
	if s.opt.Compression {
		s.gz = gzip.NewWriter(f)
	}
	return nil
}

// Append writes one JSON-encoded record, rotating to a new shard first
// if the current one has reached MaxRecordsPerShard.
func (s *Sharder) Append(record interface{}) error {
	if s.count >= s.opt.MaxRecordsPerShard {
		if err := s.Flush(); err != nil {
			return err
		}
		s.index++
		if err := s.startShard(); err != nil {
			return err
		}
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := s.currentWriter().Write(line); err != nil {
		return err
	}
	s.count++
	return nil
}

func (s *Sharder) currentWriter() lineWriter {
	if s.gz != nil {
		return s.gz
	}
	return s.f
}

type lineWriter interface {
	Write([]byte) (int, error)
}

// Flush finalizes the current shard: closes the gzip/file writer,
// fsyncs, renames .tmp to its final name, and writes the completion
// marker. It is a no-op if no records were appended to the current
// shard.
func (s *Sharder) Flush() error {
	if s.f == nil {
		return nil
	}
	if s.count == 0 {
		s.discardEmpty()
		return nil
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			return err
		}
	}
	if err := s.f.Sync(); err != nil {
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	fi, err := os.Stat(s.tmpPath)
	if err != nil {
		return err
	}
	final := filepath.Join(s.opt.Dir, s.shardName())
	if err := os.Rename(s.tmpPath, final); err != nil {
		return err
	}
	marker := CompletionMarker{
		ShardPath:      final,
		CompletedAtUTC: time.Now().UTC().Format(time.RFC3339),
		ShardSizeBytes: fi.Size(),
		RecordCount:    s.count,
	}
	markerPath := final + ".complete"
	mf, err := os.OpenFile(markerPath+".tmp", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(mf)
	if err := enc.Encode(marker); err != nil {
		mf.Close()
		return err
	}
	if err := mf.Sync(); err != nil {
		mf.Close()
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}
	if err := os.Rename(markerPath+".tmp", markerPath); err != nil {
		return err
	}
	s.f = nil
	s.gz = nil
	return nil
}

func (s *Sharder) discardEmpty() {
	if s.gz != nil {
		s.gz.Close()
	}
	s.f.Close()
	os.Remove(s.tmpPath)
	s.f = nil
	s.gz = nil
}

// Close flushes any in-progress shard. Safe to call multiple times.
func (s *Sharder) Close() error {
	return s.Flush()
}
