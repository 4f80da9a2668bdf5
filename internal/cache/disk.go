package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdMagic prefixes every zstd frame. Entries are sniffed for it on read so
// that toggling compression never invalidates existing entries.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoderOnce sync.Once
	encoder     *zstd.Encoder
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	encoderErr  error
	decoderErr  error
)

func zstdEncoder() (*zstd.Encoder, error) {
	encoderOnce.Do(func() {
		var err error
		encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			encoderErr = fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	})
	if encoder == nil {
		return nil, encoderErr
	}
	return encoder, nil
}

func zstdDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		var err error
		decoder, err = zstd.NewReader(nil)
		if err != nil {
			decoderErr = fmt.Errorf("failed to create zstd decoder: %w", err)
		}
	})
	if decoder == nil {
		return nil, decoderErr
	}
	return decoder, nil
}

// readEntry reads and decodes the entry at path. A missing file is reported
// with an error satisfying errors.Is(err, fs.ErrNotExist); anything that was
// read but cannot be decoded wraps ErrCacheCorrupted.
func readEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeEntry(data)
}

func decodeEntry(data []byte) (*Entry, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := zstdDecoder()
		if err != nil {
			return nil, err
		}
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
		}
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	if len(e.Data) == 0 {
		return nil, fmt.Errorf("%w: missing data", ErrCacheCorrupted)
	}
	return &e, nil
}

func encodeEntry(e Entry, compress bool) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if !compress {
		return data, nil
	}
	enc, err := zstdEncoder()
	if err != nil {
		return nil, err
	}
	return enc.EncodeAll(data, nil), nil
}

// writeEntry replaces the entry at path. The record is written to a temp file
// in the same directory and renamed over the old one, so readers see either
// the previous entry or the new one, never a partial file.
func writeEntry(path string, e Entry, compress bool) error {
	data, err := encodeEntry(e, compress)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".data-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tmp.Name()

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}
