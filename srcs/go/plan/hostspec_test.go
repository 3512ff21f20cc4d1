package plan

import (
	"testing"
)

func Test_ParseHostList(t *testing.T) {
	hl, err := ParseHostList("192.168.1.11:4,192.168.1.12:2:gw.example.com,192.168.1.13")
	if err != nil {
		t.Fatal(err)
	}
	if hl.Cap() != 7 {
		t.Errorf("Cap() = %d, want 7", hl.Cap())
	}
	if hl[1].PublicAddr != "gw.example.com" {
		t.Errorf("unexpected public addr %q", hl[1].PublicAddr)
	}
	if got := hl.String(); got != "192.168.1.11:4:192.168.1.11,192.168.1.12:2:gw.example.com,192.168.1.13:1:192.168.1.13" {
		t.Errorf("unexpected String() %q", got)
	}
	if _, err := ParseHostList("192.168.1.11:x"); err == nil {
		t.Error("invalid slots should fail")
	}
}

func Test_GenSlots(t *testing.T) {
	hl, _ := ParseHostList("10.0.0.1:2,10.0.0.2:2")
	slots, err := hl.GenSlots(3)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		host      string
		rank      int
		localRank int
	}{
		{"10.0.0.1", 0, 0},
		{"10.0.0.1", 1, 1},
		{"10.0.0.2", 2, 0},
	}
	for i, w := range want {
		s := slots[i]
		if FormatIPv4(s.Host.IPv4) != w.host || s.Rank != w.rank || s.LocalRank != w.localRank {
			t.Errorf("slot %d = %+v, want %+v", i, s, w)
		}
	}
	if _, err := hl.GenSlots(5); err == nil {
		t.Error("GenSlots beyond capacity should fail")
	}
}

func Test_ParseNetAddr(t *testing.T) {
	a, err := ParseNetAddr("127.0.0.1:29500")
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != "127.0.0.1:29500" {
		t.Errorf("got %s", a)
	}
	if _, err := ParseNetAddr("127.0.0.1:70000"); err == nil {
		t.Error("port out of range should fail")
	}
	if _, err := ParseNetAddr("127.0.0.1"); err == nil {
		t.Error("missing port should fail")
	}
}
