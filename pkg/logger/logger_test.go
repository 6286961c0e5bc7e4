package logger

import "testing"

type recorder struct {
	entries []string
}

func (r *recorder) Log(m string, _ ...any)   { r.entries = append(r.entries, "log:"+m) }
func (r *recorder) Debug(m string, _ ...any) { r.entries = append(r.entries, "debug:"+m) }
func (r *recorder) Info(m string, _ ...any)  { r.entries = append(r.entries, "info:"+m) }
func (r *recorder) Warn(m string, _ ...any)  { r.entries = append(r.entries, "warn:"+m) }
func (r *recorder) Error(m string, _ ...any) { r.entries = append(r.entries, "error:"+m) }
func (r *recorder) Fatal(m string, _ ...any) { r.entries = append(r.entries, "fatal:"+m) }

func TestDispatchToAllInstances(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Info("one")
	Warn("two", "k", "v")
	Log("three")

	for _, r := range []*recorder{a, b} {
		if len(r.entries) != 3 || r.entries[0] != "info:one" || r.entries[1] != "warn:two" || r.entries[2] != "log:three" {
			t.Fatalf("unexpected entries %v", r.entries)
		}
	}
}
