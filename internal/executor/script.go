package executor

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/alessio/shellescape"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

const scriptTemplate = `#!/bin/bash
{{- range .Header}}
{{.}}
{{- end}}
{{- range .Modules}}
module load {{quote .}}
{{- end}}
set -u
{{- range .Env}}
export {{.Name}}={{quote .Value}}
{{- end}}
mkdir -p {{quote .OutputDir}} || exit 1
{{- if .ScratchDir}}
FANOUT_SCRATCH={{quote .ScratchDir}}
mkdir -p "$FANOUT_SCRATCH" || exit 1
trap 'rm -rf -- "$FANOUT_SCRATCH"' EXIT
{{- end}}
{{- range .Setup}}
{{.}} || exit $?
{{- end}}
{{.Program}}
`

var scriptTmpl = template.Must(template.New("script").
	Funcs(template.FuncMap{"quote": shellescape.Quote}).
	Parse(scriptTemplate))

type envVar struct {
	Name  string
	Value string
}

type scriptData struct {
	Header     []string
	Modules    []string
	Env        []envVar
	OutputDir  string
	ScratchDir string
	Setup      []string
	Program    string
}

// RenderScript renders inv as a bash script. Header lines (scheduler
// directives) go right after the interpreter line. The program's exit
// status is the script's exit status.
func RenderScript(inv model.Invocation, header ...string) (string, error) {
	if len(inv.Program.Args) == 0 {
		return "", fmt.Errorf("invocation %s has no program", inv.ID)
	}

	data := scriptData{
		Header:     header,
		Modules:    inv.Modules,
		OutputDir:  inv.OutputDir,
		ScratchDir: inv.ScratchDir,
		Program:    CommandLine(inv.Program),
	}
	for _, name := range sortedKeys(inv.Env) {
		data.Env = append(data.Env, envVar{Name: name, Value: inv.Env[name]})
	}
	for _, c := range inv.Setup {
		if len(c.Args) == 0 {
			continue
		}
		data.Setup = append(data.Setup, CommandLine(c))
	}

	var b strings.Builder
	if err := scriptTmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render script for %s: %w", inv.ID, err)
	}
	return b.String(), nil
}

// CommandLine renders one command as a single shell line, quoting every
// argument, environment value and redirection target.
func CommandLine(c model.Command) string {
	var b strings.Builder
	if c.Dir != "" {
		b.WriteString("cd ")
		b.WriteString(shellescape.Quote(c.Dir))
		b.WriteString(" && ")
	}
	for _, name := range sortedKeys(c.Env) {
		b.WriteString(name)
		b.WriteString("=")
		b.WriteString(shellescape.Quote(c.Env[name]))
		b.WriteString(" ")
	}
	b.WriteString(shellescape.QuoteCommand(c.Args))
	if c.Stdin != "" {
		b.WriteString(" < ")
		b.WriteString(shellescape.Quote(c.Stdin))
	}
	if c.Stdout != "" {
		b.WriteString(" > ")
		b.WriteString(shellescape.Quote(c.Stdout))
	}
	if c.Stderr != "" {
		b.WriteString(" 2> ")
		b.WriteString(shellescape.Quote(c.Stderr))
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
