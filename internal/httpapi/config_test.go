package httpapi

import "testing"

func TestSetMaxBodyBytes(t *testing.T) {
	defer SetMaxBodyBytes(0)
	SetMaxBodyBytes(42)
	if maxBodyBytes != 42 {
		t.Fatalf("maxBodyBytes=%d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("default not restored: %d", maxBodyBytes)
	}
}

func TestCORSDefaults(t *testing.T) {
	defer SetCORSOptions(false, nil, nil, nil)
	SetCORSOptions(true, nil, nil, nil)
	o, m, h := corsDefaults()
	if len(o) != 1 || o[0] != "*" {
		t.Fatalf("origins=%v", o)
	}
	if len(m) == 0 || len(h) == 0 {
		t.Fatalf("methods=%v headers=%v", m, h)
	}

	SetCORSOptions(true, []string{"http://a"}, []string{"GET"}, []string{"X-A"})
	o, m, h = corsDefaults()
	if o[0] != "http://a" || m[0] != "GET" || h[0] != "X-A" {
		t.Fatalf("explicit options not used: %v %v %v", o, m, h)
	}
}
