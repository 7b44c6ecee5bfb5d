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
	"time"

	"github.com/redis/go-redis/v9"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/element"
)

const defaultRedisKeyPrefix = "netsync:terms:"

// RedisConfig configures the redis term authority
type RedisConfig struct {
	Address   string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	Timeout   time.Duration
}

// Redis allocates terms with INCR on one key per device.
// It is safe to share between every node of the cluster.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to redis
func NewRedis(ctx context.Context, config *RedisConfig) (*Redis, error) {
	if config == nil || config.Address == "" {
		return nil, errors.New("termauthority: redis address is required")
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultEtcdTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("termauthority: failed to connect to redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix}, nil
}

// NextTerm increments the counter of the device
func (r *Redis) NextTerm(ctx context.Context, deviceID element.DeviceID) (uint64, error) {
	next, err := r.client.Incr(ctx, r.prefix+string(deviceID)).Result()
	if err != nil {
		return 0, gerrors.NewErrTermAuthorityUnreachable(err)
	}
	return uint64(next), nil
}

// Close releases the redis client
func (r *Redis) Close() error {
	return r.client.Close()
}
