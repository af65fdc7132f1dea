// License: GPLv3 Copyright: 2022, Kovid Goyal, <kovid at kovidgoyal.net>

package graphics

import "testing"

type fakeColdStore struct {
	added map[string]map[string][]byte
}

func (f *fakeColdStore) Add(key string, items map[string][]byte) (map[string]string, error) {
	if f.added == nil {
		f.added = map[string]map[string][]byte{}
	}
	f.added[key] = items
	return map[string]string{}, nil
}

func (f *fakeColdStore) Get(key string, items ...string) (map[string]string, error) {
	return nil, newError(ENOENT, "not found")
}

func TestEvictionPersistsReferencedColdImage(t *testing.T) {
	cold := &fakeColdStore{}
	m := &GraphicsManager{Limits: Limits{StorageLimit: 10}, ColdStore: cold}

	raw1 := make([]byte, 48) // 4x4 RGB, referenced
	cmd1 := &Command{Action: ActionAddAndDisplay, Id: 1, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw1))}
	m.Dispatch(cmd1, raw1, &Cursor{X: 100, Y: 100}, defaultCell())

	raw2 := make([]byte, 48)
	cmd2 := &Command{Action: ActionAddAndDisplay, Id: 2, Format: FormatRGB, DataWidth: 4, DataHeight: 4, DataSize: int64(len(raw2))}
	m.Dispatch(cmd2, raw2, &Cursor{X: 200, Y: 200}, defaultCell())

	if len(cold.added) == 0 {
		t.Fatalf("expected at least one referenced-but-evicted image to be persisted to cold storage")
	}
}

func TestLimitsDefaultsWhenUnset(t *testing.T) {
	var l Limits
	if l.storageLimit() != defaultStorageLimit {
		t.Fatalf("expected default storage limit, got %d", l.storageLimit())
	}
}
