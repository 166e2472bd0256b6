package registry

import (
	"testing"

	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/platform"
)

func register(t *testing.T, r *Registry, cfg *config.WindowConfig) *Entry {
	t.Helper()
	backend := platform.NewStub()
	win, err := backend.CreateWindow(platform.CreateOptions{Title: cfg.Title})
	if err != nil {
		t.Fatalf("create window: %v", err)
	}
	return r.Register(win, cfg)
}

func TestIDsUniqueAndOrdered(t *testing.T) {
	r := New()

	a := register(t, r, &config.WindowConfig{Title: "a"})
	b := register(t, r, &config.WindowConfig{Title: "b"})
	c := register(t, r, &config.WindowConfig{Title: "c"})

	if a.ID != 1 || b.ID != 2 || c.ID != 3 {
		t.Fatalf("got ids %d %d %d, want 1 2 3", a.ID, b.ID, c.ID)
	}

	r.Deregister(b.ID)
	d := register(t, r, &config.WindowConfig{Title: "d"})
	if d.ID != 4 {
		t.Errorf("id %d was reused, want 4", d.ID)
	}

	ids := r.IDs()
	want := []int{1, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("order %v, want %v", ids, want)
			break
		}
	}
}

func TestMain(t *testing.T) {
	tests := []struct {
		name  string
		flags []bool // isMainWin per window, creation order
		want  int    // index into created windows, -1 for nil
	}{
		{"no windows", nil, -1},
		{"single window", []bool{false}, 0},
		{"none flagged picks most recent", []bool{false, false, false}, 2},
		{"flagged wins over most recent", []bool{true, false}, 0},
		{"most recent flagged wins", []bool{true, false, true}, 2},
		{"later window promotes itself", []bool{false, true}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			var entries []*Entry
			for _, flagged := range tt.flags {
				entries = append(entries, register(t, r, &config.WindowConfig{IsMainWin: flagged}))
			}

			got := r.Main()
			if tt.want == -1 {
				if got != nil {
					t.Fatalf("got entry %d, want nil", got.ID)
				}
				return
			}
			if got == nil {
				t.Fatal("got nil entry")
			}
			if got.ID != entries[tt.want].ID {
				t.Errorf("got id %d, want %d", got.ID, entries[tt.want].ID)
			}
		})
	}
}

func TestMainAfterDeregister(t *testing.T) {
	r := New()
	register(t, r, &config.WindowConfig{})
	main := register(t, r, &config.WindowConfig{IsMainWin: true})
	last := register(t, r, &config.WindowConfig{})

	if got := r.Main(); got.ID != main.ID {
		t.Fatalf("got id %d, want %d", got.ID, main.ID)
	}

	r.Deregister(main.ID)
	if got := r.Main(); got.ID != last.ID {
		t.Errorf("got id %d, want fallback %d", got.ID, last.ID)
	}
}

func TestOnClosedFiresOnce(t *testing.T) {
	r := New()
	e := register(t, r, &config.WindowConfig{})

	fired := 0
	r.OnClosed(e.ID, func() { fired++ })

	r.Deregister(e.ID)
	r.Deregister(e.ID)

	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
}

func TestOnClosedDeadIDIgnored(t *testing.T) {
	r := New()
	r.OnClosed(42, func() { t.Error("callback registered for dead id fired") })
	r.Deregister(42)
}

func TestUpdateConfig(t *testing.T) {
	r := New()
	e := register(t, r, &config.WindowConfig{Title: "before"})

	if !r.UpdateConfig(e.ID, &config.WindowConfig{Title: "after"}) {
		t.Fatal("update rejected for live id")
	}
	if got := r.Get(e.ID).Config.Title; got != "after" {
		t.Errorf("title %q, want %q", got, "after")
	}
	if r.UpdateConfig(99, &config.WindowConfig{}) {
		t.Error("update accepted for dead id")
	}
}
