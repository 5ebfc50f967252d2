package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"tilesandbox/protocol"
)

// RecordEntry 录制文件中的一行
type RecordEntry struct {
	Room     string            `json:"room"`
	Tick     int64             `json:"tick"`
	UnixMs   int64             `json:"unix_ms"`
	Snapshot protocol.Snapshot `json:"snapshot"`
}

// Recorder 将广播快照写成 zstd 压缩的 JSONL，多房间共用
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	now func() time.Time
}

// NewRecorder 以追加方式打开录制文件
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Recorder{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024), now: time.Now}, nil
}

func (rec *Recorder) Write(room string, tick int64, snap protocol.Snapshot) error {
	b, err := json.Marshal(RecordEntry{Room: room, Tick: tick, UnixMs: rec.now().UnixMilli(), Snapshot: snap})
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w == nil {
		return fmt.Errorf("recorder closed")
	}
	if _, err := rec.w.Write(b); err != nil {
		return err
	}
	return rec.w.WriteByte('\n')
}

// Close 刷新缓冲并结束 zstd 帧
func (rec *Recorder) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.w == nil {
		return nil
	}
	err := rec.w.Flush()
	if cerr := rec.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := rec.f.Close(); err == nil {
		err = cerr
	}
	rec.w = nil
	return err
}

// ReadRecording 逐行回放录制文件，fn 返回错误时停止
func ReadRecording(r io.Reader, fn func(RecordEntry) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		var e RecordEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("recording: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
