// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
	"github.com/European-XFEL/Karabo-sub015/internal/kio"
	"github.com/golang/snappy"
)

// flattenContainer serializes c through the binary codec into a
// single contiguous byte slice suitable for a broker.Driver, which
// only moves opaque []byte (spec §5.2: BufferSet scatter/gather
// semantics only matter up to the driver boundary).
func flattenContainer(c *kdata.Container) ([]byte, error) {
	bs, err := kio.Encode(c)
	if err != nil {
		return nil, err
	}
	return bs.Flatten(), nil
}

func parseContainer(flat []byte) (*kdata.Container, error) {
	bs := kio.FromFlat(flat)
	c, consumed, err := kio.Decode(bs)
	if err != nil {
		return nil, err
	}
	if consumed != bs.TotalSize() {
		return nil, kerrors.NewDecodingError("trailing bytes after container: consumed %d of %d", consumed, bs.TotalSize())
	}
	return c, nil
}

// compressionThreshold is the flattened body size, in bytes, at or
// above which encodeBody snappy-compresses it. Small bodies (the
// common case: a handful of request arguments or a heartbeat) are not
// worth the copy compression forces; large ones (bulk configurations,
// vectors, images) are.
const compressionThreshold = 4096

// encodeBody flattens body and, once its flattened size reaches
// compressionThreshold, snappy-compresses it (spec §5.2: "compression
// always concatenates to a single copied segment first"). The header
// gains __compression__=="snappy" so the peer knows to invert it
// before decoding.
func encodeBody(header *kdata.Container, body *kdata.Container) ([]byte, []byte, error) {
	headerBytes, err := flattenContainer(header)
	if err != nil {
		return nil, nil, err
	}
	bodyBytes, err := flattenContainer(body)
	if err != nil {
		return nil, nil, err
	}
	if len(bodyBytes) >= compressionThreshold {
		header.MustSet(hdrCompression, kdata.NewString(compressionSnappy))
		headerBytes, err = flattenContainer(header)
		if err != nil {
			return nil, nil, err
		}
		bodyBytes = snappy.Encode(nil, bodyBytes)
	}
	return headerBytes, bodyBytes, nil
}

// decodeBody reverses encodeBody, inflating a snappy-compressed body
// when the header says so.
func decodeBody(headerBytes, bodyBytes []byte) (*kdata.Container, *kdata.Container, error) {
	header, err := parseContainer(headerBytes)
	if err != nil {
		return nil, nil, err
	}
	if headerString(header, hdrCompression) == compressionSnappy {
		bodyBytes, err = snappy.Decode(nil, bodyBytes)
		if err != nil {
			return nil, nil, kerrors.NewDecodingError("snappy inflate: %v", err)
		}
	}
	body, err := parseContainer(bodyBytes)
	if err != nil {
		return nil, nil, err
	}
	return header, body, nil
}
