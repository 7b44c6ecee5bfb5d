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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tochemey/netsync/log"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a controller replica",
	Long: `Start a controller replica and block until it is interrupted.

Examples:
  # Start a single node cluster with the defaults
  netsyncd run

  # Start a replica of a memberlist cluster
  netsyncd run --config=/etc/netsync/netsync.yaml`,
	RunE: runController,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runController(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := log.NewZap(cfg.Level(), os.Stdout)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	ctrl, err := buildController(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	// wait for interruption/termination
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	logger.Infof("received signal=(%s), shutting down...", sig)

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return ctrl.Stop(stopCtx)
}
