package trainer

import (
	"testing"
)

func TestParseDefaults(t *testing.T) {
	var f FlagSet
	if err := f.Parse([]string{"frost-train", "/data/mnist"}); err != nil {
		t.Fatal(err)
	}
	c := f.Config
	if c.Data != "/data/mnist" || c.Device != "cuda" || c.Epochs != 300 || c.NumClasses != 1000 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.BatchSize != 64 || c.Workers != 8 || !c.PinMemory || c.LR != 1e-3 || c.StepSize != 30 || c.Gamma != 0.1 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.WorldSize != 1 || c.DistURL != "env://" || c.Seed != nil || c.Resume != "" || c.SaveDir != "" {
		t.Errorf("unexpected defaults %+v", c)
	}
}

func TestParse(t *testing.T) {
	var f FlagSet
	args := []string{"frost-train", "-epochs", "3", "/data", "-seed", "-4", "-no-pin-memory", "-save-dir", "ckpt"}
	if err := f.Parse(args); err != nil {
		t.Fatal(err)
	}
	c := f.Config
	if c.Data != "/data" || c.Epochs != 3 || c.PinMemory || c.SaveDir != "ckpt" {
		t.Errorf("unexpected config %+v", c)
	}
	if c.Seed == nil || *c.Seed != -4 {
		t.Errorf("seed = %v, want -4", c.Seed)
	}
}

func TestParseErrors(t *testing.T) {
	for _, args := range [][]string{
		{"frost-train"},
		{"frost-train", "-epochs", "3"},
		{"frost-train", "a", "b"},
		{"frost-train", "-seed", "x", "a"},
		{"frost-train", "-unknown", "a"},
	} {
		var f FlagSet
		if err := f.Parse(args); err == nil {
			t.Errorf("Parse(%q) succeeded", args)
		}
	}
}
