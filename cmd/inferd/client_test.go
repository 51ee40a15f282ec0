package main

import "testing"

func TestDaemonURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{":8080", "http://localhost:8080"},
		{"example.com:9090", "http://example.com:9090"},
		{"http://example.com:9090/", "http://example.com:9090"},
		{"https://inferd.internal", "https://inferd.internal"},
	}
	for _, c := range cases {
		if got := daemonURL(&rootOpts{Addr: c.in}); got != c.want {
			t.Fatalf("%q -> %q, want %q", c.in, got, c.want)
		}
	}
}
