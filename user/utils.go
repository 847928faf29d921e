// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package user

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerateRandomAvatar returns an inline SVG data URI seeded from the
// given identity string (username or email), so the same account always
// renders the same avatar.
func GenerateRandomAvatar(seed string) string {
	hash := sha256.Sum256([]byte(seed))

	// Hue from the first two hash bytes; saturation/lightness fixed for a
	// bright, harmonious palette.
	hue := (int(hash[0]) + int(hash[1])<<8) % 360
	bgColor := hslToHex(float64(hue), 0.70, 0.60)

	initial := "?"
	if seed != "" {
		initial = strings.ToUpper(string(seed[0]))
	}

	svg := fmt.Sprintf(`<svg width="100" height="100" viewBox="0 0 100 100" xmlns="http://www.w3.org/2000/svg">
  <rect width="100" height="100" fill="%s" />
  <text x="50" y="50" dy=".35em" fill="#ffffff" font-family="sans-serif" font-size="50" text-anchor="middle" font-weight="bold">%s</text>
</svg>`, bgColor, initial)

	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

func hslToHex(h, s, l float64) string {
	r, g, b := hslToRgb(h/360, s, l)
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hslToRgb(h, s, l float64) (uint8, uint8, uint8) {
	if s == 0 {
		return uint8(l * 255), uint8(l * 255), uint8(l * 255)
	}
	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q
	r := hueToRgb(p, q, h+1.0/3.0)
	g := hueToRgb(p, q, h)
	b := hueToRgb(p, q, h-1.0/3.0)
	return uint8(r * 255), uint8(g * 255), uint8(b * 255)
}

func hueToRgb(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
