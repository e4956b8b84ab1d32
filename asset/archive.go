package asset

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Compress the contents of srcFile into dstFile using zstd. It returns the
// number of uncompressed and compressed bytes.
func CompressFile(srcFile, dstFile string) (rawBytes, packedBytes int64, err error) {
	src, err := os.Open(srcFile)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()

	dst, err := os.Create(dstFile)
	if err != nil {
		return 0, 0, err
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return 0, 0, fmt.Errorf("archive: create zstd encoder: %w", err)
	}

	rawBytes, err = io.Copy(enc, src)
	if err != nil {
		enc.Close()
		return 0, 0, fmt.Errorf("archive: compress %s: %w", srcFile, err)
	}
	if err = enc.Close(); err != nil {
		return 0, 0, fmt.Errorf("archive: compress %s: %w", srcFile, err)
	}
	if err = dst.Sync(); err != nil {
		return 0, 0, err
	}

	info, err := dst.Stat()
	if err != nil {
		return 0, 0, err
	}

	return rawBytes, info.Size(), nil
}
