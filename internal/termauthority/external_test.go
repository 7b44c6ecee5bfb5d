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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestEtcd(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainer.Run(ctx, "gcr.io/etcd-development/etcd:v3.5.14")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	endpoints, err := container.ClientEndpoints(ctx)
	require.NoError(t, err)

	t.Run("With monotonic terms", func(t *testing.T) {
		authority, err := NewEtcd(&EtcdConfig{Endpoints: endpoints, Timeout: 10 * time.Second})
		require.NoError(t, err)
		assertMonotonic(t, authority)
		require.NoError(t, authority.Close())
	})
	t.Run("With two clients sharing the counters", func(t *testing.T) {
		first, err := NewEtcd(&EtcdConfig{Endpoints: endpoints, Namespace: "/shared/"})
		require.NoError(t, err)
		defer first.Close()
		second, err := NewEtcd(&EtcdConfig{Endpoints: endpoints, Namespace: "/shared/"})
		require.NoError(t, err)
		defer second.Close()

		a, err := first.NextTerm(ctx, "of:9")
		require.NoError(t, err)
		b, err := second.NextTerm(ctx, "of:9")
		require.NoError(t, err)
		require.Greater(t, b, a)
	})
	t.Run("With no endpoints", func(t *testing.T) {
		_, err := NewEtcd(&EtcdConfig{})
		require.Error(t, err)
	})
}

func TestRedis(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	address, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	authority, err := NewRedis(ctx, &RedisConfig{Address: address})
	require.NoError(t, err)
	assertMonotonic(t, authority)
	require.NoError(t, authority.Close())

	_, err = NewRedis(ctx, &RedisConfig{})
	require.Error(t, err)
}
