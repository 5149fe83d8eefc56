package library

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
)

// PartialMD5 computes the document id KOReader derives from a book file:
// the MD5 of 1 KiB samples taken at offsets 0 and 1024<<(2*i) for
// i = 0..10, stopping at the first offset past the end of the file.
func PartialMD5(r io.ReaderAt) (string, error) {
	const step, size = 1024, 1024

	h := md5.New()
	buf := make([]byte, size)
	for i := -1; i <= 10; i++ {
		offset := int64(0)
		if i >= 0 {
			offset = int64(step) << (2 * i)
		}
		n, err := r.ReadAt(buf, offset)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					break
				}
				continue
			}
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
