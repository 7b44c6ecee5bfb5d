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

package host

import (
	"errors"

	"google.golang.org/protobuf/encoding/protowire"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/timestamp"
)

type hostUpdate struct {
	providerID element.ProviderID
	desc       Description
	stamp      timestamp.Timestamp
}

type hostRemoval struct {
	hostID element.HostID
	stamp  timestamp.Timestamp
}

// advertisement is the digest of a host store: the stamp of every live host and of every
// removal still remembered. A reply is never answered with another advertisement.
type advertisement struct {
	sender  cluster.NodeID
	hosts   map[element.HostID]timestamp.Timestamp
	removed map[element.HostID]timestamp.Timestamp
	reply   bool
}

func newAdvertisement(sender cluster.NodeID) *advertisement {
	return &advertisement{
		sender:  sender,
		hosts:   make(map[element.HostID]timestamp.Timestamp),
		removed: make(map[element.HostID]timestamp.Timestamp),
	}
}

func (ad *advertisement) size() int {
	return len(ad.hosts) + len(ad.removed)
}

// {1: provider, 2: mac, 3: vlan, 4: location device, 5: location port, 6: ips (repeated), 7: annotations, 8: timestamp}
func encodeHostUpdate(u *hostUpdate) ([]byte, error) {
	body := codec.NewWriter()
	codec.WriteProviderID(body, 1, u.providerID)
	body.Text(2, u.desc.MAC).
		Uint64(3, uint64(u.desc.VLAN)).
		Text(4, string(u.desc.Location.DeviceID)).
		Uint64(5, uint64(u.desc.Location.Port))
	for _, ip := range u.desc.IPs {
		body.Text(6, ip)
	}
	body.StringMap(7, u.desc.Annotations)
	codec.WriteTimestamp(body, 8, u.stamp)
	return codec.Marshal(codec.KindHostUpdate, body)
}

func decodeHostUpdate(payload []byte) (*hostUpdate, error) {
	reader, err := codec.Expect(payload, codec.KindHostUpdate)
	if err != nil {
		return nil, err
	}
	u := new(hostUpdate)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			u.providerID = codec.ReadProviderID(reader)
		case 2:
			u.desc.MAC = reader.Text()
		case 3:
			u.desc.VLAN = uint16(reader.Uint64())
		case 4:
			u.desc.Location.DeviceID = element.DeviceID(reader.Text())
		case 5:
			u.desc.Location.Port = element.PortNumber(reader.Uint64())
		case 6:
			u.desc.IPs = append(u.desc.IPs, reader.Text())
		case 7:
			if u.desc.Annotations == nil {
				u.desc.Annotations = make(map[string]string)
			}
			reader.StringMapEntry(u.desc.Annotations)
		case 8:
			u.stamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if u.stamp == nil {
		return nil, gerrors.NewErrInvalidMessage(errors.New("missing timestamp"))
	}
	return u, nil
}

// {1: mac, 2: vlan, 3: timestamp}
func encodeHostRemoval(r *hostRemoval) ([]byte, error) {
	body := codec.NewWriter().Text(1, r.hostID.MAC).Uint64(2, uint64(r.hostID.VLAN))
	codec.WriteTimestamp(body, 3, r.stamp)
	return codec.Marshal(codec.KindHostRemoved, body)
}

func decodeHostRemoval(payload []byte) (*hostRemoval, error) {
	reader, err := codec.Expect(payload, codec.KindHostRemoved)
	if err != nil {
		return nil, err
	}
	r := new(hostRemoval)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			r.hostID.MAC = reader.Text()
		case 2:
			r.hostID.VLAN = uint16(reader.Uint64())
		case 3:
			r.stamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if r.stamp == nil {
		return nil, gerrors.NewErrInvalidMessage(errors.New("missing timestamp"))
	}
	return r, nil
}

// {1: sender, 2: host entries {1: mac, 2: vlan, 3: timestamp}, 3: removal entries {same}, 4: reply}
func encodeAdvertisement(ad *advertisement) ([]byte, error) {
	body := codec.NewWriter().Text(1, string(ad.sender))
	for _, entries := range []struct {
		field  protowire.Number
		stamps map[element.HostID]timestamp.Timestamp
	}{{2, ad.hosts}, {3, ad.removed}} {
		for hostID, stamp := range entries.stamps {
			body.Message(entries.field, func(w *codec.Writer) {
				w.Text(1, hostID.MAC).Uint64(2, uint64(hostID.VLAN))
				codec.WriteTimestamp(w, 3, stamp)
			})
		}
	}
	body.Bool(4, ad.reply)
	return codec.Marshal(codec.KindHostAdvertisement, body)
}

func decodeAdvertisement(payload []byte) (*advertisement, error) {
	reader, err := codec.Expect(payload, codec.KindHostAdvertisement)
	if err != nil {
		return nil, err
	}

	ad := newAdvertisement("")
	for reader.Next() {
		switch field := reader.Field(); field {
		case 1:
			ad.sender = cluster.NodeID(reader.Text())
		case 2, 3:
			stamps := ad.hosts
			if field == 3 {
				stamps = ad.removed
			}
			reader.Nested(func(entry *codec.Reader) {
				var (
					hostID element.HostID
					stamp  timestamp.Timestamp
				)
				for entry.Next() {
					switch entry.Field() {
					case 1:
						hostID.MAC = entry.Text()
					case 2:
						hostID.VLAN = uint16(entry.Uint64())
					case 3:
						stamp = codec.ReadTimestamp(entry)
					default:
						entry.Skip()
					}
				}
				if stamp == nil {
					entry.Fail(gerrors.NewErrInvalidMessage(errors.New("missing timestamp")))
					return
				}
				stamps[hostID] = stamp
			})
		case 4:
			ad.reply = reader.Bool()
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return ad, nil
}
