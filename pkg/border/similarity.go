// Package border
// Copyright 2021 Juergen Enge, info-age GmbH, Basel. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package border

import (
	"fmt"
	"math"
)

// RGB is an 8 bit per channel color without alpha
type RGB [3]uint8

func (c RGB) String() string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

// Distance returns the euclidean distance of two colors in RGB space.
// The maximum is about 441.67 (black to white).
func Distance(a, b RGB) float64 {
	dr := float64(a[0]) - float64(b[0])
	dg := float64(a[1]) - float64(b[1])
	db := float64(a[2]) - float64(b[2])
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// Similar reports whether the distance of a and b is strictly less than threshold.
func Similar(a, b RGB, threshold float64) bool {
	return Distance(a, b) < threshold
}
