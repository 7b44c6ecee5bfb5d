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

package store

import (
	"github.com/tochemey/netsync/event"
	"github.com/tochemey/netsync/log"
)

// PostingDelegate forwards store events to an event dispatcher.
// Dispatch failures are logged and never reach the store.
type PostingDelegate[E event.Event] struct {
	poster event.Poster
	logger log.Logger
}

var _ Delegate[event.Event] = (*PostingDelegate[event.Event])(nil)

// NewPostingDelegate creates a PostingDelegate
func NewPostingDelegate[E event.Event](poster event.Poster, logger log.Logger) *PostingDelegate[E] {
	if logger == nil {
		logger = log.DiscardLogger
	}
	return &PostingDelegate[E]{poster: poster, logger: logger}
}

// Notify implements Delegate
func (d *PostingDelegate[E]) Notify(e E) {
	if err := d.poster.Post(e); err != nil {
		d.logger.Warnf("failed to post event of class=(%s): %v", e.Class(), err)
	}
}
