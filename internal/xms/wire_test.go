// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import (
	"strings"
	"testing"

	"github.com/European-XFEL/Karabo-sub015/internal/kdata"
)

func newHeaderForTest() *kdata.Container {
	c := kdata.NewContainer()
	c.MustSet(hdrSignalInstanceID, kdata.NewString("A"))
	return c
}

func TestEncodeBodyLeavesSmallBodiesUncompressed(t *testing.T) {
	header := newHeaderForTest()
	body := kdata.NewContainer()
	body.MustSet("x", kdata.NewInt32(1))

	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		t.Fatal(err)
	}
	if headerString(header, hdrCompression) != "" {
		t.Fatal("small body should not set __compression__")
	}

	_, decodedBody, err := decodeBody(headerBytes, bodyBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !decodedBody.Equal(body) {
		t.Fatal("body did not round trip")
	}
}

func TestEncodeBodyCompressesLargeBodies(t *testing.T) {
	header := newHeaderForTest()
	body := kdata.NewContainer()
	body.MustSet("blob", kdata.NewString(strings.Repeat("x", compressionThreshold+1)))

	headerBytes, bodyBytes, err := encodeBody(header, body)
	if err != nil {
		t.Fatal(err)
	}
	if headerString(header, hdrCompression) != compressionSnappy {
		t.Fatal("large body should set __compression__=snappy")
	}

	decodedHeader, err := parseContainer(headerBytes)
	if err != nil {
		t.Fatal(err)
	}
	if headerString(decodedHeader, hdrCompression) != compressionSnappy {
		t.Fatal("encoded header bytes must carry __compression__=snappy")
	}

	_, decodedBody, err := decodeBody(headerBytes, bodyBytes)
	if err != nil {
		t.Fatal(err)
	}
	if !decodedBody.Equal(body) {
		t.Fatal("compressed body did not round trip")
	}
}
