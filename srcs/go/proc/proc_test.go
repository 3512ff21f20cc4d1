package proc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/frostml/frost/srcs/go/utils/assert"
)

func Test_updatedEnvFrom(t *testing.T) {
	oldEnvs := []string{
		`X=1`,
		`Y=Z=2`,
	}
	newValues := make(Envs)
	newValues[`X`] = "2"
	newEnvs := updatedEnvFrom(newValues, oldEnvs)
	if l := len(newEnvs); l != 2 {
		fmt.Printf("%d: %q\n", l, newEnvs)
	}
	assert.True(len(newEnvs) == 2)
	envMap := parseEnv(newEnvs)
	assert.True(envMap[`X`] == `2`)
	assert.True(envMap[`Y`] == `Z=2`)
}

func Test_Merge(t *testing.T) {
	e := Envs{`A`: `1`, `B`: `1`}
	g := Merge(e, Envs{`B`: `2`})
	g.AddIfMissing(`A`, `3`)
	g.AddIfMissing(`C`, `3`)
	assert.True(g[`A`] == `1` && g[`B`] == `2` && g[`C`] == `3`)
	assert.True(e[`B`] == `1`)
}

func Test_Script(t *testing.T) {
	dir := "/tmp"
	p := Proc{
		Prog:  "frost-train",
		Args:  []string{"-epochs", "3", "/data"},
		Envs:  Envs{`RANK`: `1`, `MASTER_ADDR`: `10.0.0.1`},
		ChDir: &dir,
	}
	want := "env -C /tmp \\\n" +
		"\tMASTER_ADDR=\"10.0.0.1\" \\\n" +
		"\tRANK=\"1\" \\\n" +
		"\tfrost-train \\\n\t-epochs \\\n\t3 \\\n\t/data\n"
	if got := p.Script(); got != want {
		t.Errorf("Script() = %q, want %q", got, want)
	}
	cmd := p.Cmd()
	assert.True(cmd.Dir == dir)
	var found bool
	for _, kv := range cmd.Env {
		if strings.HasPrefix(kv, `RANK=`) {
			found = kv == `RANK=1`
		}
	}
	assert.True(found)
}
