// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package kio

import (
	"encoding/base64"

	"github.com/European-XFEL/Karabo-sub015/internal/kerrors"
)

// DecodeLegacyBase64VectorChar decodes a pre-v3 vector<unsigned char>
// that was stored as a base64 string instead of the binary
// vector-of-uint8 encoding this serializer writes. New writers never
// produce this form (spec Design Notes, Open Questions); it exists
// only so archived pre-v3 payloads remain readable.
func DecodeLegacyBase64VectorChar(s string) ([]uint8, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, kerrors.NewDecodingError("legacy base64 vector<char>: %v", err)
	}
	return b, nil
}
