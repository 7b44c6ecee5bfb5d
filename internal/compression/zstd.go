/*
 * MIT License
 *
 * Copyright (c) 2022-2025  Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// maxDecodedSize bounds the memory a single decoded payload may use
const maxDecodedSize = 64 << 20

var zstdEncodersPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return &compressionError{err: err}
		}
		return enc
	},
}

var zstdDecodersPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(maxDecodedSize))
		if err != nil {
			return &compressionError{err: err}
		}
		return dec
	},
}

// ZstdCompress returns the zstd frame of src
func ZstdCompress(src []byte) ([]byte, error) {
	pooled := zstdEncodersPool.Get()
	enc, ok := pooled.(*zstd.Encoder)
	if !ok {
		return nil, pooled.(*compressionError).err
	}
	defer zstdEncodersPool.Put(enc)
	return enc.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

// ZstdDecompress decodes a zstd frame produced by ZstdCompress
func ZstdDecompress(src []byte) ([]byte, error) {
	pooled := zstdDecodersPool.Get()
	dec, ok := pooled.(*zstd.Decoder)
	if !ok {
		return nil, pooled.(*compressionError).err
	}
	defer zstdDecodersPool.Put(dec)

	out, err := dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}
