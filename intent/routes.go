package intent

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Well-known actions and extras.
const (
	ActionScan      = "com.google.zxing.client.android.SCAN"
	ExtraScanMode   = "SCAN_MODE"
	ExtraScanResult = "SCAN_RESULT"
	ScanModeQRCode  = "QR_CODE_MODE"
	ActionLog       = "ch.appquest.intent.LOG"
	ExtraTaskName   = "ch.appquest.taskname"
	ExtraLogMessage = "ch.appquest.logmessage"
)

// Route maps an action to the program that handles it.
//
// Args are templates evaluated against the intent; the function extra looks
// up an extra by key. Arguments that render empty are dropped, which allows
// conditional flags.
//
// ResultExtra, when set, stores the trimmed standard output of a finished
// program under that extra. Otherwise the output is decoded as an intent.
type Route struct {
	Action      string   `yaml:"action"`
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	ResultExtra string   `yaml:"result_extra"`

	args []*template.Template
}

type routeFile struct {
	Routes []Route `yaml:"routes"`
}

// DefaultRoutes hand scans to zbarcam and log entries to logger(1).
func DefaultRoutes() []Route {
	return []Route{
		{
			Action:  ActionScan,
			Command: "zbarcam",
			Args: []string{
				"--raw",
				"--oneshot",
				`{{if eq (extra "SCAN_MODE") "QR_CODE_MODE"}}-Sdisable{{end}}`,
				`{{if eq (extra "SCAN_MODE") "QR_CODE_MODE"}}-Sqrcode.enable{{end}}`,
			},
			ResultExtra: ExtraScanResult,
		},
		{
			Action:  ActionLog,
			Command: "logger",
			Args: []string{
				"-t",
				`{{extra "ch.appquest.taskname"}}`,
				// Messages are scanned text and may look like options.
				"--",
				`{{extra "ch.appquest.logmessage"}}`,
			},
		},
	}
}

// LoadRoutes reads a YAML route table of the form
//
//	routes:
//	  - action: com.google.zxing.client.android.SCAN
//	    command: zbarcam
//	    args: ["--raw", "--oneshot"]
//	    result_extra: SCAN_RESULT
func LoadRoutes(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading routes %q: %w", path, err)
	}
	return ParseRoutes(data)
}

func ParseRoutes(data []byte) ([]Route, error) {
	var f routeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed parsing routes: %w", err)
	}
	for i, r := range f.Routes {
		if r.Action == "" || r.Command == "" {
			return nil, fmt.Errorf("route %d: action and command are required", i)
		}
	}
	return f.Routes, nil
}

func (r *Route) compile() error {
	r.args = r.args[:0]
	for i, arg := range r.Args {
		tmpl, err := template.New(fmt.Sprintf("%s[%d]", r.Action, i)).
			Funcs(template.FuncMap{"extra": func(string) string { return "" }}).
			Parse(arg)
		if err != nil {
			return fmt.Errorf("failed parsing argument %d of route %q: %w", i, r.Action, err)
		}
		r.args = append(r.args, tmpl)
	}
	return nil
}

// render expands the route's arguments for i.
func (r *Route) render(i Intent) ([]string, error) {
	funcs := template.FuncMap{"extra": i.StringExtra}
	out := make([]string, 0, len(r.args))
	var buf bytes.Buffer
	for n, tmpl := range r.args {
		buf.Reset()
		clone, err := tmpl.Clone()
		if err != nil {
			return nil, err
		}
		if err := clone.Funcs(funcs).Execute(&buf, i); err != nil {
			return nil, fmt.Errorf("failed rendering argument %d of route %q: %w", n, r.Action, err)
		}
		if buf.Len() > 0 {
			out = append(out, buf.String())
		}
	}
	return out, nil
}
