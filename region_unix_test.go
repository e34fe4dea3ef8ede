// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build unix

package ringq_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"code.hybscloud.com/ringq"
)

// sharedName returns a region name unique to this test run and removes the
// region when the test ends.
func sharedName(t *testing.T) string {
	t.Helper()
	name := "ringq-test-" + uuid.NewString()
	t.Cleanup(func() {
		if err := ringq.RemoveSharedRegion(name); err != nil {
			t.Errorf("RemoveSharedRegion(%q): %v", name, err)
		}
	})
	return name
}

// =============================================================================
// Shared Memory Regions
// =============================================================================

// TestSharedLossyTwoAttachments opens one named region twice, as a writer
// process and a reader process would.
func TestSharedLossyTwoAttachments(t *testing.T) {
	const capacity, size = 4096, 64
	name := sharedName(t)

	pub, err := ringq.BuildLossy(ringq.New(capacity).RecordSize(size).Shared(name))
	if err != nil {
		t.Fatalf("BuildLossy writer: %v", err)
	}
	defer pub.Close()
	w, _ := pub.Writer()

	sub, err := ringq.BuildLossy(ringq.New(capacity).RecordSize(size).Shared(name).ReadOnly())
	if err != nil {
		t.Fatalf("BuildLossy reader: %v", err)
	}
	defer sub.Close()
	if _, err := sub.Writer(); !errors.Is(err, ringq.ErrReadOnly) {
		t.Fatalf("Writer on read-only mapping: got %v, want ErrReadOnly", err)
	}

	r := sub.NewReader()
	got := make([]byte, size)
	for i := range 100 {
		w.Put(record(size, i))
		if err := r.Read(got); err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if recordSeq(got) != i {
			t.Fatalf("Read: got seq %d, want %d", recordSeq(got), i)
		}
	}

	path := filepath.Join(ringq.SharedDir(), name)
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%s): %v", path, err)
	}
	if fi.Size() != int64(ringq.RegionSize(ringq.KindLossy, capacity)) {
		t.Fatalf("region size: got %d, want %d", fi.Size(), ringq.RegionSize(ringq.KindLossy, capacity))
	}
}

// TestSharedMultiWriters attaches an initializer and a NoInit writer to one
// named multi-writer queue.
func TestSharedMultiWriters(t *testing.T) {
	const capacity = 1 << 12
	name := sharedName(t)

	first, err := ringq.BuildMulti(ringq.New(capacity).Shared(name))
	if err != nil {
		t.Fatalf("BuildMulti: %v", err)
	}
	defer first.Close()
	second, err := ringq.BuildMulti(ringq.New(capacity).Shared(name).NoInit())
	if err != nil {
		t.Fatalf("BuildMulti NoInit: %v", err)
	}
	defer second.Close()
	sub, err := ringq.BuildMulti(ringq.New(capacity).Shared(name).ReadOnly())
	if err != nil {
		t.Fatalf("BuildMulti read-only: %v", err)
	}
	defer sub.Close()

	r := sub.NewReader()
	w1, _ := first.NewWriter()
	w2, _ := second.NewWriter()
	w1.Put([]byte("bid 101.25"))
	w2.Put([]byte("ask 101.50"))

	dst := make([]byte, 64)
	for _, want := range []string{"bid 101.25", "ask 101.50"} {
		n, err := r.Read(dst)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if string(dst[:n]) != want {
			t.Fatalf("Read: got %q, want %q", dst[:n], want)
		}
	}
}

func TestSharedRegionErrors(t *testing.T) {
	name := sharedName(t)

	if _, err := ringq.OpenSharedRegion(name, 4096, true); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("read-only open of missing region: got %v, want ErrNotExist", err)
	}

	r, err := ringq.OpenSharedRegion(name, 4096, false)
	if err != nil {
		t.Fatalf("OpenSharedRegion: %v", err)
	}
	if r.Name() != name || !r.Writable() || len(r.Bytes()) != 4096 {
		t.Fatalf("region: name %q writable %v len %d", r.Name(), r.Writable(), len(r.Bytes()))
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	_, err = ringq.OpenSharedRegion(name, 8192, false)
	if !errors.Is(err, ringq.ErrRegionSize) {
		t.Fatalf("size mismatch: got %v, want ErrRegionSize", err)
	}
	var re *ringq.RegionError
	if !errors.As(err, &re) || re.Name != name {
		t.Fatalf("size mismatch: got %v, want *RegionError for %q", err, name)
	}

	for _, bad := range []string{"", ".", "..", "a/b"} {
		if _, err := ringq.OpenSharedRegion(bad, 4096, false); !errors.Is(err, ringq.ErrRegionName) {
			t.Fatalf("OpenSharedRegion(%q): got %v, want ErrRegionName", bad, err)
		}
	}
}

// TestSharedRegionRemove checks that removing a region lets the next open
// start from zeroed counters.
func TestSharedRegionRemove(t *testing.T) {
	const capacity = 1024
	name := sharedName(t)

	q, err := ringq.BuildMulti(ringq.New(capacity).Shared(name))
	if err != nil {
		t.Fatalf("BuildMulti: %v", err)
	}
	w, _ := q.NewWriter()
	w.Put([]byte("stale"))
	q.Close()

	if err := ringq.RemoveSharedRegion(name); err != nil {
		t.Fatalf("RemoveSharedRegion: %v", err)
	}
	sub, err := ringq.BuildMulti(ringq.New(capacity).Shared(name).NoInit())
	if err != nil {
		t.Fatalf("BuildMulti after remove: %v", err)
	}
	defer sub.Close()
	if sub.ReadyBytes() != 0 || sub.WritePos() != 0 {
		t.Fatalf("fresh region counters: ready %d write %d", sub.ReadyBytes(), sub.WritePos())
	}
}
