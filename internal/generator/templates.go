package generator

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

// EnvVar is one line of the rendered env file.
type EnvVar struct {
	Name  string
	Value string
}

// envFileData holds the data for the env file template.
type envFileData struct {
	Vars []EnvVar
}

var plainEnvValue = regexp.MustCompile(`^[A-Za-z0-9_./:,@+=-]*$`)

// envQuote returns value in a form compose env_file parsing reads back
// verbatim. Values needing quotes are single-quoted, which compose treats
// literally.
func envQuote(name, value string) (string, error) {
	if strings.ContainsAny(value, "\r\n\x00") {
		return "", errors.RenderError(fmt.Sprintf("value of %s contains a line break", name))
	}
	if plainEnvValue.MatchString(value) {
		return value, nil
	}
	if strings.Contains(value, "'") {
		return "", errors.RenderError(fmt.Sprintf("value of %s cannot contain both special characters and a single quote", name))
	}
	return "'" + value + "'", nil
}

func renderEnvFile(env map[string]string) (string, error) {
	data := envFileData{Vars: make([]EnvVar, 0, len(env))}
	for name, value := range env {
		quoted, err := envQuote(name, value)
		if err != nil {
			return "", err
		}
		data.Vars = append(data.Vars, EnvVar{Name: name, Value: quoted})
	}
	sort.Slice(data.Vars, func(i, j int) bool { return data.Vars[i].Name < data.Vars[j].Name })

	var buf bytes.Buffer
	if err := envFileTemplate.Execute(&buf, data); err != nil {
		return "", errors.Wrap(errors.KindRenderError, "failed to execute env file template", err)
	}
	return buf.String(), nil
}

const envFileTemplateText = `# Generated by gwsandbox-ctl. Do not edit.
# Secret values are never written here; *_FILE variables point at mounted secrets.
{{- range .Vars}}
{{.Name}}={{.Value}}
{{- end}}
`

var envFileTemplate = template.Must(template.New("envfile").Parse(envFileTemplateText))
