// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tap

import (
	"encoding/binary"
	"time"
)

// RecordHeaderLen is the size of the header ringfeed stamps on each record:
// sequence number, send time, and writer id, little-endian.
const RecordHeaderLen = 20

// Record is the decoded header of a synthetic record.
type Record struct {
	Seq    uint64
	Stamp  time.Time
	Writer uint32
}

// EncodeRecord stamps rec with the header and fills the rest with a pattern
// derived from seq. len(rec) must be at least RecordHeaderLen.
func EncodeRecord(rec []byte, writer uint32, seq uint64, now time.Time) {
	binary.LittleEndian.PutUint64(rec[0:], seq)
	binary.LittleEndian.PutUint64(rec[8:], uint64(now.UnixNano()))
	binary.LittleEndian.PutUint32(rec[16:], writer)
	for i := RecordHeaderLen; i < len(rec); i++ {
		rec[i] = byte(seq) + byte(i)
	}
}

// DecodeRecord parses the header of rec. ok is false when rec is too short
// or its fill pattern does not match, as for records from other producers.
func DecodeRecord(rec []byte) (r Record, ok bool) {
	if len(rec) < RecordHeaderLen {
		return r, false
	}
	r.Seq = binary.LittleEndian.Uint64(rec[0:])
	r.Stamp = time.Unix(0, int64(binary.LittleEndian.Uint64(rec[8:])))
	r.Writer = binary.LittleEndian.Uint32(rec[16:])
	for i := RecordHeaderLen; i < len(rec); i++ {
		if rec[i] != byte(r.Seq)+byte(i) {
			return r, false
		}
	}
	return r, true
}
