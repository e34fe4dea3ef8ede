// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package ringq

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent tests that copy arena bytes while
// another goroutine writes them; those bytes are guarded by atomix counters
// the detector cannot see.
const RaceEnabled = true
