// Copyright 2026 The OpenTrusty Authors
// SPDX-License-Identifier: Apache-2.0

package id

import (
	"crypto/rand"
	"encoding/base64"
)

func newRandomToken(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
