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

package termauthority

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	bbolt "go.etcd.io/bbolt"
	"go.uber.org/atomic"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
)

const (
	boltFileMode   os.FileMode = 0o600
	boltBucketName             = "mastership_terms"
)

var (
	boltTimeout        = 5 * time.Second
	errBoltStoreClosed = errors.New("termauthority: bolt store is closed")
)

// Bolt persists the term counters in a bbolt file so that terms keep
// increasing across restarts of a single node.
type Bolt struct {
	db     *bbolt.DB
	bucket []byte
	closed *atomic.Bool
}

// NewBolt opens or creates the bbolt file at path
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, boltFileMode, &bbolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, fmt.Errorf("termauthority: opening boltdb: %w", err)
	}

	bucket := []byte(boltBucketName)
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(bucket)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("termauthority: initializing boltdb bucket: %w", err)
	}

	return &Bolt{db: db, bucket: bucket, closed: atomic.NewBool(false)}, nil
}

// NextTerm increments and returns the counter of the device in a single write transaction
func (b *Bolt) NextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error) {
	if b.closed.Load() {
		return 0, gerrors.NewErrTermAuthorityUnreachable(errBoltStoreClosed)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next uint64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		key := []byte(deviceID)
		if current := bucket.Get(key); len(current) == 8 {
			next = binary.BigEndian.Uint64(current)
		}
		next++
		value := make([]byte, 8)
		binary.BigEndian.PutUint64(value, next)
		return bucket.Put(key, value)
	})
	if err != nil {
		return 0, gerrors.NewErrTermAuthorityUnreachable(err)
	}
	return next, nil
}

// Close closes the bbolt file. Close is idempotent.
func (b *Bolt) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}
