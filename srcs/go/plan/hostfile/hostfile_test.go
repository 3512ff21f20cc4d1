package hostfile

import (
	"testing"
)

func Test_Parse(t *testing.T) {
	text := `
	# gpu nodes
	10.0.0.1 slots=4 # first
	# ...
   	10.0.0.2   slots=8 public_addr=node2
	`
	hl, err := Parse(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(hl) != 2 {
		t.Fatalf("got %d hosts, want 2", len(hl))
	}
	if hl[0].Slots != 4 || hl[1].Slots != 8 {
		t.Errorf("unexpected slots: %v", hl)
	}
	if hl[1].PublicAddr != "node2" {
		t.Errorf("unexpected public addr %q", hl[1].PublicAddr)
	}
}

func Test_Parse_invalid(t *testing.T) {
	for _, text := range []string{
		"10.0.0.1 slots",
		"10.0.0.1 gpus=2",
		"not-an-ip slots=1",
	} {
		if _, err := Parse(text); err == nil {
			t.Errorf("Parse(%q) should fail", text)
		}
	}
}
