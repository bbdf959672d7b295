// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"strings"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/pkg/clock"
)

// Reserved header keys (spec §6).
const (
	hdrSignalInstanceID = "signalInstanceId"
	hdrSignalFunction   = "signalFunction"
	hdrSlotInstanceIDs  = "slotInstanceIds"
	hdrSlotFunctions    = "slotFunctions"
	hdrReplyTo          = "replyTo"
	hdrReplyInstanceIDs = "replyInstanceIds"
	hdrReplyFunctions   = "replyFunctions"
	hdrHostName         = "hostName"
	hdrUserName         = "userName"
	hdrMQTimestamp      = "MQTimestamp"
	hdrCompression      = "__compression__"
)

// Reserved signalFunction values.
const (
	FuncRequest        = "__request__"
	FuncRequestNoWait  = "__requestNoWait__"
	FuncReply          = "__reply__"
	FuncRemoteException = "__remoteException__"
)

const compressionSnappy = "snappy"

// destination is one subscriber's instance id plus the slot names to
// invoke on it, the parsed form of one "|id:slotA,slotB|" segment.
type destination struct {
	instanceID string
	slots      []string
}

// encodeDestinations renders the "|id1|id2|...|" instance-id framing
// and the parallel "|id1:slotA,slotB|id2:slotC|" slot-name framing
// (spec §4.4.1, §6). Both strings are wire conventions kept for
// interop with the original broker layout.
func encodeDestinations(dests []destination) (ids, funcs string) {
	var idb, fnb strings.Builder
	idb.WriteByte('|')
	fnb.WriteByte('|')
	for _, d := range dests {
		idb.WriteString(d.instanceID)
		idb.WriteByte('|')
		fnb.WriteString(d.instanceID)
		fnb.WriteByte(':')
		fnb.WriteString(strings.Join(d.slots, ","))
		fnb.WriteByte('|')
	}
	return idb.String(), fnb.String()
}

// parseInstanceIDs splits "|id1|id2|...|" defensively: empty segments
// (leading/trailing/double pipes) are dropped rather than producing
// empty instance ids (spec Design Notes: "parse defensively").
func parseInstanceIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "|") {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseSlotFunctions splits "|id:slotA,slotB|id2:slotC|" into a map
// from instance id to its slot-name list. A segment missing the ":"
// separator is skipped rather than panicking.
func parseSlotFunctions(s string) map[string][]string {
	out := make(map[string][]string)
	for _, part := range strings.Split(s, "|") {
		if part == "" {
			continue
		}
		idx := strings.IndexByte(part, ':')
		if idx < 0 {
			continue
		}
		id := part[:idx]
		slots := part[idx+1:]
		if slots == "" {
			out[id] = nil
			continue
		}
		out[id] = strings.Split(slots, ",")
	}
	return out
}

// newHeader builds the common envelope fields shared by emit, request
// and requestNoWait (spec §4.4.1, §4.4.3).
func newHeader(selfID, hostName, userName string) *kdata.Container {
	h := kdata.NewContainer()
	h.MustSet(hdrSignalInstanceID, kdata.NewString(selfID))
	h.MustSet(hdrHostName, kdata.NewString(hostName))
	h.MustSet(hdrUserName, kdata.NewString(userName))
	h.MustSet(hdrMQTimestamp, kdata.NewInt64(clock.Now().MillisSinceEpoch()))
	return h
}

// headerString reads a string header field, defaulting to "" when
// absent or mistyped rather than panicking: malformed headers are
// dropped by the caller's decode path, not here.
func headerString(h *kdata.Container, key string) string {
	v, ok := h.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.AsString()
	return s
}

func headerInt64(h *kdata.Container, key string) int64 {
	v, ok := h.Get(key)
	if !ok {
		return 0
	}
	x, _ := v.AsInt64()
	return x
}
