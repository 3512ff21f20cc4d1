package proc

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

type Envs map[string]string

func (e Envs) AddIfMissing(k, v string) {
	if _, ok := e[k]; !ok {
		e[k] = v
	}
}

func (e Envs) keys() []string {
	var ks []string
	for k := range e {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

func Merge(e, f Envs) Envs {
	g := make(Envs)
	for k, v := range e {
		g[k] = v
	}
	for k, v := range f {
		g[k] = v
	}
	return g
}

// Proc is a worker process of a job
type Proc struct {
	Name    string
	Prog    string
	Args    []string
	Envs    Envs
	IPv4    uint32
	PubAddr string
	LogDir  string
	ChDir   *string
}

func (p Proc) Cmd() *exec.Cmd {
	cmd := exec.Command(p.Prog, p.Args...)
	cmd.Env = updatedEnvFrom(p.Envs, os.Environ())
	if p.ChDir != nil {
		cmd.Dir = *p.ChDir
	}
	return cmd
}

// Script is the shell command that starts p on a remote host.
func (p Proc) Script() string {
	buf := &bytes.Buffer{}
	var chdir string
	if p.ChDir != nil {
		chdir = fmt.Sprintf("-C %s ", *p.ChDir)
	}
	fmt.Fprintf(buf, "env %s\\\n", chdir)
	for _, k := range p.Envs.keys() {
		fmt.Fprintf(buf, "\t%s=%q \\\n", k, p.Envs[k])
	}
	fmt.Fprintf(buf, "\t%s", p.Prog)
	for _, a := range p.Args {
		fmt.Fprintf(buf, " \\\n\t%s", a)
	}
	fmt.Fprintf(buf, "\n")
	return buf.String()
}

func parseEnv(envs []string) Envs {
	envMap := make(Envs)
	for _, kv := range envs {
		if i := strings.Index(kv, "="); i > 0 {
			envMap[kv[:i]] = kv[i+1:]
		}
	}
	return envMap
}

func updatedEnvFrom(newValues Envs, oldEnvs []string) []string {
	envMap := Merge(parseEnv(oldEnvs), newValues)
	var envs []string
	for _, k := range envMap.keys() {
		envs = append(envs, fmt.Sprintf("%s=%s", k, envMap[k]))
	}
	return envs
}
