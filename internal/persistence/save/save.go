package save

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// State files persist only which tiles existed. Geometry regenerates lazily
// on the next viewer update, so the format is a zstd stream with a JSON
// header line followed by the JSON body.

type Header struct {
	Version int    `json:"version"`
	Tick    uint64 `json:"tick"`
}

type StateV1 struct {
	Header Header   `json:"header"`
	Seed   int64    `json:"seed"`
	Keys   []string `json:"keys"`
}

func Write(path string, st StateV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(st.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&st); err != nil {
		return fmt.Errorf("state encode: %w", err)
	}
	return nil
}

func Read(path string) (StateV1, error) {
	var st StateV1
	f, err := os.Open(path)
	if err != nil {
		return st, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return st, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is advisory; the body repeats it.
	_, _ = br.ReadBytes('\n')

	if err := json.NewDecoder(br).Decode(&st); err != nil {
		return st, fmt.Errorf("state decode: %w", err)
	}
	return st, nil
}
