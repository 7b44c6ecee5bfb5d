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
	"errors"
	"fmt"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
)

const (
	defaultEtcdNamespace = "/netsync/terms/"
	defaultEtcdTimeout   = 5 * time.Second
	maxEtcdConflicts     = 16
)

var errTooManyConflicts = errors.New("termauthority: too many concurrent term allocations")

// EtcdConfig configures the etcd term authority
type EtcdConfig struct {
	Endpoints   []string
	Namespace   string
	DialTimeout time.Duration
	Timeout     time.Duration
	Username    string
	Password    string
}

func (c *EtcdConfig) sanitize() {
	if c.Namespace == "" {
		c.Namespace = defaultEtcdNamespace
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultEtcdTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultEtcdTimeout
	}
}

// Etcd allocates terms with a compare-and-swap transaction on one key per device.
// It is safe to share between every node of the cluster.
type Etcd struct {
	config *EtcdConfig
	client *clientv3.Client
	kv     clientv3.KV
}

// NewEtcd connects to etcd
func NewEtcd(config *EtcdConfig) (*Etcd, error) {
	if config == nil || len(config.Endpoints) == 0 {
		return nil, errors.New("termauthority: etcd endpoints are required")
	}
	config.sanitize()

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
		Username:    config.Username,
		Password:    config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("termauthority: failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if _, err := client.Status(ctx, config.Endpoints[0]); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("termauthority: failed to connect to etcd: %w", err)
	}

	return &Etcd{
		config: config,
		client: client,
		kv:     namespace.NewKV(client.KV, config.Namespace),
	}, nil
}

// NextTerm reads the counter and writes its successor only if nobody wrote it in between.
// A lost race is retried a bounded number of times.
func (e *Etcd) NextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	key := string(deviceID)
	for range maxEtcdConflicts {
		resp, err := e.kv.Get(ctx, key)
		if err != nil {
			return 0, gerrors.NewErrTermAuthorityUnreachable(err)
		}

		var (
			current  uint64
			revision int64
		)
		if len(resp.Kvs) > 0 {
			revision = resp.Kvs[0].ModRevision
			current, err = strconv.ParseUint(string(resp.Kvs[0].Value), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("termauthority: corrupted term of device=%s: %w", deviceID, err)
			}
		}

		next := current + 1
		txn, err := e.kv.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", revision)).
			Then(clientv3.OpPut(key, strconv.FormatUint(next, 10))).
			Commit()
		if err != nil {
			return 0, gerrors.NewErrTermAuthorityUnreachable(err)
		}
		if txn.Succeeded {
			return next, nil
		}
	}
	return 0, gerrors.NewErrTermAuthorityUnreachable(errTooManyConflicts)
}

// Close releases the etcd client
func (e *Etcd) Close() error {
	return e.client.Close()
}
