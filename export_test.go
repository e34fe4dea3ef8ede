// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringq

// HoldPut writes payload but keeps its reservation in flight until release
// is called, so tests can observe a writer stalled mid-record.
func HoldPut(w *MultiWriter, payload []byte) (release func()) {
	total := w.write(payload)
	return func() { w.finalizeWrite(total) }
}
