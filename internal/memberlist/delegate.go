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

package memberlist

import (
	"github.com/hashicorp/memberlist"

	"github.com/tochemey/netsync/log"
)

// delegate hands the user messages received by memberlist to the Communicator.
// Nothing is piggybacked on the gossip itself.
type delegate struct {
	communicator *Communicator
}

var _ memberlist.Delegate = (*delegate)(nil)

func (d *delegate) NodeMeta(int) []byte {
	return nil
}

// NotifyMsg is called with the payload of SendReliable. The buffer is only valid during the call.
func (d *delegate) NotifyMsg(buf []byte) {
	d.communicator.deliver(buf)
}

func (d *delegate) GetBroadcasts(int, int) [][]byte {
	return nil
}

func (d *delegate) LocalState(bool) []byte {
	return nil
}

func (d *delegate) MergeRemoteState([]byte, bool) {}

// eventDelegate logs the membership changes
type eventDelegate struct {
	logger log.Logger
}

var _ memberlist.EventDelegate = (*eventDelegate)(nil)

func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	e.logger.Infof("node=(%s) joined the cluster at %s", node.Name, node.Address())
}

func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.logger.Infof("node=(%s) left the cluster", node.Name)
}

func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	e.logger.Debugf("node=(%s) updated", node.Name)
}
