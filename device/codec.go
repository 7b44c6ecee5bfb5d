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

package device

import (
	"errors"
	"fmt"

	gerrors "github.com/tochemey/netsync/errors"
	"github.com/tochemey/netsync/cluster"
	"github.com/tochemey/netsync/element"
	"github.com/tochemey/netsync/internal/codec"
	"github.com/tochemey/netsync/timestamp"
)

type deviceUpdate struct {
	providerID element.ProviderID
	deviceID   element.DeviceID
	desc       Timestamped[Description]
}

type portsUpdate struct {
	providerID element.ProviderID
	deviceID   element.DeviceID
	ports      []PortDescription
	stamp      timestamp.Timestamp
}

type portStatusUpdate struct {
	providerID element.ProviderID
	deviceID   element.DeviceID
	desc       Timestamped[PortDescription]
}

// deviceStamp carries an offline marker or a removal
type deviceStamp struct {
	deviceID element.DeviceID
	stamp    timestamp.Timestamp
}

type fragmentRequest struct {
	devices []element.DeviceFragmentID
	ports   []element.PortFragmentID
}

// fragmentResponse answers the pull of one fragment. Exactly one of device and port is set.
type fragmentResponse struct {
	device     *element.DeviceFragmentID
	port       *element.PortFragmentID
	found      bool
	deviceDesc Description
	portDesc   PortDescription
	stamp      timestamp.Timestamp
}

func writeDescription(w *codec.Writer, d Description) {
	w.Text(1, d.Type).
		Text(2, d.Manufacturer).
		Text(3, d.HwVersion).
		Text(4, d.SwVersion).
		Text(5, d.SerialNumber).
		Text(6, d.ChassisID).
		Bool(7, d.DefaultAvailable).
		StringMap(8, d.Annotations)
}

func readDescription(r *codec.Reader) Description {
	var d Description
	r.Nested(func(nested *codec.Reader) {
		for nested.Next() {
			switch nested.Field() {
			case 1:
				d.Type = nested.Text()
			case 2:
				d.Manufacturer = nested.Text()
			case 3:
				d.HwVersion = nested.Text()
			case 4:
				d.SwVersion = nested.Text()
			case 5:
				d.SerialNumber = nested.Text()
			case 6:
				d.ChassisID = nested.Text()
			case 7:
				d.DefaultAvailable = nested.Bool()
			case 8:
				if d.Annotations == nil {
					d.Annotations = make(map[string]string)
				}
				nested.StringMapEntry(d.Annotations)
			default:
				nested.Skip()
			}
		}
	})
	return d
}

func writePortDescription(w *codec.Writer, p PortDescription) {
	w.Uint64(1, uint64(p.Number)).
		Bool(2, p.Enabled).
		Bool(3, p.Removed).
		Text(4, p.Type).
		Uint64(5, p.Speed).
		StringMap(6, p.Annotations)
}

func readPortDescription(r *codec.Reader) PortDescription {
	var p PortDescription
	r.Nested(func(nested *codec.Reader) {
		for nested.Next() {
			switch nested.Field() {
			case 1:
				p.Number = element.PortNumber(nested.Uint64())
			case 2:
				p.Enabled = nested.Bool()
			case 3:
				p.Removed = nested.Bool()
			case 4:
				p.Type = nested.Text()
			case 5:
				p.Speed = nested.Uint64()
			case 6:
				if p.Annotations == nil {
					p.Annotations = make(map[string]string)
				}
				nested.StringMapEntry(p.Annotations)
			default:
				nested.Skip()
			}
		}
	})
	return p
}

// {1: provider, 2: device, 3: description, 4: timestamp}
func encodeDeviceUpdate(u *deviceUpdate) ([]byte, error) {
	body := codec.NewWriter()
	codec.WriteProviderID(body, 1, u.providerID)
	body.Text(2, string(u.deviceID))
	body.Message(3, func(w *codec.Writer) { writeDescription(w, u.desc.Value) })
	codec.WriteTimestamp(body, 4, u.desc.Timestamp)
	return codec.Marshal(codec.KindDeviceUpdate, body)
}

func decodeDeviceUpdate(payload []byte) (*deviceUpdate, error) {
	reader, err := codec.Expect(payload, codec.KindDeviceUpdate)
	if err != nil {
		return nil, err
	}
	u := new(deviceUpdate)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			u.providerID = codec.ReadProviderID(reader)
		case 2:
			u.deviceID = element.DeviceID(reader.Text())
		case 3:
			u.desc.Value = readDescription(reader)
		case 4:
			u.desc.Timestamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if u.desc.Timestamp == nil {
		return nil, missingTimestamp()
	}
	return u, nil
}

// {1: provider, 2: device, 3: port descriptions (repeated), 4: timestamp}
func encodePortsUpdate(u *portsUpdate) ([]byte, error) {
	body := codec.NewWriter()
	codec.WriteProviderID(body, 1, u.providerID)
	body.Text(2, string(u.deviceID))
	for _, port := range u.ports {
		body.Message(3, func(w *codec.Writer) { writePortDescription(w, port) })
	}
	codec.WriteTimestamp(body, 4, u.stamp)
	return codec.Marshal(codec.KindPortUpdate, body)
}

func decodePortsUpdate(payload []byte) (*portsUpdate, error) {
	reader, err := codec.Expect(payload, codec.KindPortUpdate)
	if err != nil {
		return nil, err
	}
	u := new(portsUpdate)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			u.providerID = codec.ReadProviderID(reader)
		case 2:
			u.deviceID = element.DeviceID(reader.Text())
		case 3:
			u.ports = append(u.ports, readPortDescription(reader))
		case 4:
			u.stamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if u.stamp == nil {
		return nil, missingTimestamp()
	}
	return u, nil
}

// {1: provider, 2: device, 3: port description, 4: timestamp}
func encodePortStatusUpdate(u *portStatusUpdate) ([]byte, error) {
	body := codec.NewWriter()
	codec.WriteProviderID(body, 1, u.providerID)
	body.Text(2, string(u.deviceID))
	body.Message(3, func(w *codec.Writer) { writePortDescription(w, u.desc.Value) })
	codec.WriteTimestamp(body, 4, u.desc.Timestamp)
	return codec.Marshal(codec.KindPortStatusUpdate, body)
}

func decodePortStatusUpdate(payload []byte) (*portStatusUpdate, error) {
	reader, err := codec.Expect(payload, codec.KindPortStatusUpdate)
	if err != nil {
		return nil, err
	}
	u := new(portStatusUpdate)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			u.providerID = codec.ReadProviderID(reader)
		case 2:
			u.deviceID = element.DeviceID(reader.Text())
		case 3:
			u.desc.Value = readPortDescription(reader)
		case 4:
			u.desc.Timestamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if u.desc.Timestamp == nil {
		return nil, missingTimestamp()
	}
	return u, nil
}

// {1: device, 2: timestamp}, used by the offline and removed messages
func encodeDeviceStamp(kind codec.Kind, s *deviceStamp) ([]byte, error) {
	body := codec.NewWriter().Text(1, string(s.deviceID))
	codec.WriteTimestamp(body, 2, s.stamp)
	return codec.Marshal(kind, body)
}

func decodeDeviceStamp(kind codec.Kind, payload []byte) (*deviceStamp, error) {
	reader, err := codec.Expect(payload, kind)
	if err != nil {
		return nil, err
	}
	s := new(deviceStamp)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			s.deviceID = element.DeviceID(reader.Text())
		case 2:
			s.stamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if s.stamp == nil {
		return nil, missingTimestamp()
	}
	return s, nil
}

// {1: device}
func encodeRemoveRequest(deviceID element.DeviceID) ([]byte, error) {
	return codec.Marshal(codec.KindDeviceRemoveRequest, codec.NewWriter().Text(1, string(deviceID)))
}

func decodeRemoveRequest(payload []byte) (element.DeviceID, error) {
	reader, err := codec.Expect(payload, codec.KindDeviceRemoveRequest)
	if err != nil {
		return "", err
	}
	var deviceID element.DeviceID
	for reader.Next() {
		switch reader.Field() {
		case 1:
			deviceID = element.DeviceID(reader.Text())
		default:
			reader.Skip()
		}
	}
	return deviceID, reader.Err()
}

// advertisement
//
//	{1: sender, 2: device entries, 3: port entries, 4: offline entries}
//	entry {1: key, 2: timestamp}
func encodeAdvertisement(ad *Advertisement) ([]byte, error) {
	body := codec.NewWriter().Text(1, string(ad.Sender))
	for id, stamp := range ad.Devices {
		body.Message(2, func(w *codec.Writer) {
			codec.WriteDeviceFragmentID(w, 1, id)
			codec.WriteTimestamp(w, 2, stamp)
		})
	}
	for id, stamp := range ad.Ports {
		body.Message(3, func(w *codec.Writer) {
			codec.WritePortFragmentID(w, 1, id)
			codec.WriteTimestamp(w, 2, stamp)
		})
	}
	for id, stamp := range ad.Offline {
		body.Message(4, func(w *codec.Writer) {
			w.Text(1, string(id))
			codec.WriteTimestamp(w, 2, stamp)
		})
	}
	return codec.Marshal(codec.KindAdvertisement, body)
}

func decodeAdvertisement(payload []byte) (*Advertisement, error) {
	reader, err := codec.Expect(payload, codec.KindAdvertisement)
	if err != nil {
		return nil, err
	}

	ad := newAdvertisement("")
	for reader.Next() {
		switch reader.Field() {
		case 1:
			ad.Sender = cluster.NodeID(reader.Text())
		case 2:
			reader.Nested(func(entry *codec.Reader) {
				var (
					id    element.DeviceFragmentID
					stamp timestamp.Timestamp
				)
				for entry.Next() {
					switch entry.Field() {
					case 1:
						id = codec.ReadDeviceFragmentID(entry)
					case 2:
						stamp = codec.ReadTimestamp(entry)
					default:
						entry.Skip()
					}
				}
				if stamp == nil {
					entry.Fail(missingTimestamp())
					return
				}
				ad.Devices[id] = stamp
			})
		case 3:
			reader.Nested(func(entry *codec.Reader) {
				var (
					id    element.PortFragmentID
					stamp timestamp.Timestamp
				)
				for entry.Next() {
					switch entry.Field() {
					case 1:
						id = codec.ReadPortFragmentID(entry)
					case 2:
						stamp = codec.ReadTimestamp(entry)
					default:
						entry.Skip()
					}
				}
				if stamp == nil {
					entry.Fail(missingTimestamp())
					return
				}
				ad.Ports[id] = stamp
			})
		case 4:
			reader.Nested(func(entry *codec.Reader) {
				var (
					id    element.DeviceID
					stamp timestamp.Timestamp
				)
				for entry.Next() {
					switch entry.Field() {
					case 1:
						id = element.DeviceID(entry.Text())
					case 2:
						stamp = codec.ReadTimestamp(entry)
					default:
						entry.Skip()
					}
				}
				if stamp == nil {
					entry.Fail(missingTimestamp())
					return
				}
				ad.Offline[id] = stamp
			})
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return ad, nil
}

// {1: device fragment ids (repeated), 2: port fragment ids (repeated)}
func encodeFragmentRequest(req *fragmentRequest) ([]byte, error) {
	body := codec.NewWriter()
	for _, id := range req.devices {
		codec.WriteDeviceFragmentID(body, 1, id)
	}
	for _, id := range req.ports {
		codec.WritePortFragmentID(body, 2, id)
	}
	return codec.Marshal(codec.KindFragmentRequest, body)
}

func decodeFragmentRequest(payload []byte) (*fragmentRequest, error) {
	reader, err := codec.Expect(payload, codec.KindFragmentRequest)
	if err != nil {
		return nil, err
	}
	req := new(fragmentRequest)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			req.devices = append(req.devices, codec.ReadDeviceFragmentID(reader))
		case 2:
			req.ports = append(req.ports, codec.ReadPortFragmentID(reader))
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

// {1: device fragment id, 2: port fragment id, 3: found, 4: device description, 5: port description, 6: timestamp}
func encodeFragmentResponse(resp *fragmentResponse) ([]byte, error) {
	body := codec.NewWriter()
	switch {
	case resp.device != nil:
		codec.WriteDeviceFragmentID(body, 1, *resp.device)
	case resp.port != nil:
		codec.WritePortFragmentID(body, 2, *resp.port)
	default:
		return nil, fmt.Errorf("fragment response without fragment id")
	}

	body.Bool(3, resp.found)
	if resp.found {
		if resp.device != nil {
			body.Message(4, func(w *codec.Writer) { writeDescription(w, resp.deviceDesc) })
		} else {
			body.Message(5, func(w *codec.Writer) { writePortDescription(w, resp.portDesc) })
		}
		codec.WriteTimestamp(body, 6, resp.stamp)
	}
	return codec.Marshal(codec.KindFragmentResponse, body)
}

func decodeFragmentResponse(payload []byte) (*fragmentResponse, error) {
	reader, err := codec.Expect(payload, codec.KindFragmentResponse)
	if err != nil {
		return nil, err
	}
	resp := new(fragmentResponse)
	for reader.Next() {
		switch reader.Field() {
		case 1:
			id := codec.ReadDeviceFragmentID(reader)
			resp.device = &id
		case 2:
			id := codec.ReadPortFragmentID(reader)
			resp.port = &id
		case 3:
			resp.found = reader.Bool()
		case 4:
			resp.deviceDesc = readDescription(reader)
		case 5:
			resp.portDesc = readPortDescription(reader)
		case 6:
			resp.stamp = codec.ReadTimestamp(reader)
		default:
			reader.Skip()
		}
	}
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if resp.device == nil && resp.port == nil {
		return nil, invalid("fragment response without fragment id")
	}
	if resp.found && resp.stamp == nil {
		return nil, missingTimestamp()
	}
	return resp, nil
}

func missingTimestamp() error {
	return invalid("missing timestamp")
}

func invalid(reason string) error {
	return gerrors.NewErrInvalidMessage(errors.New(reason))
}
