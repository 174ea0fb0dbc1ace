package e2e

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	Sender            string
	RelayAddresses    []string
	Login             string
	Password          string
	MaxAttachmentSize string
}

// createAppConfig writes a configuration YAML doc to the given path.
func createAppConfig(path string, opts appConfigOptions) error {
	configTemplate := `---
{{- if .Sender }}
sender: {{ .Sender }}
{{- end }}
relays:
{{- range .RelayAddresses }}
  - {{ . }}
{{- end }}
{{- if .Login }}
login: {{ .Login }}
password: {{ .Password }}
{{- end }}
skipCertVerification: true
{{- if .MaxAttachmentSize }}
maxAttachmentSize: {{ .MaxAttachmentSize }}
{{- end }}
timeouts:
  connect: 5s
  command: 5s
  submit: 10s
`

	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var config bytes.Buffer

	err = tmpl.Execute(&config, opts)

	// This is an issue with the test environment, not the application
	if err != nil {
		return fmt.Errorf("couldn't populate the application config template: %v", err)
	}

	err = os.WriteFile(path, config.Bytes(), 0o600)
	if err != nil {
		return fmt.Errorf("couldn't write to the config file: %v", err)
	}

	return nil
}
