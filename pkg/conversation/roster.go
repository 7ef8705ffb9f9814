package conversation

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed "roster.yaml"
var defaultRosterYAML []byte

// RosterAgent is an agent entry of a roster file. When System is empty, the
// system prompt is rendered from the roster template, with Persona available
// to the template.
type RosterAgent struct {
	Agent   `yaml:",inline"`
	Persona string `yaml:"persona,omitempty"`
}

// Roster is the on-disk description of a set of agents.
type Roster struct {
	Template string        `yaml:"template,omitempty"`
	Agents   []RosterAgent `yaml:"agents"`
}

type promptData struct {
	Agent   Agent
	Persona string
	Names   []string
	Others  []string
}

func LoadRoster(r io.Reader) (*Roster, error) {
	ret := &Roster{}
	if err := yaml.NewDecoder(r).Decode(ret); err != nil {
		return nil, errors.Wrap(err, "could not decode roster")
	}
	return ret, nil
}

func LoadRosterFile(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open roster %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadRoster(f)
}

func DefaultRoster() *Roster {
	ret, err := LoadRoster(bytes.NewReader(defaultRosterYAML))
	if err != nil {
		panic(err)
	}
	return ret
}

// Render validates the roster and renders the system prompt of every agent.
// Agents without a model get defaultModel. The roster itself is left untouched.
func (r *Roster) Render(defaultModel string) ([]Agent, error) {
	entries := clone.Clone(r.Agents).([]RosterAgent)

	names := make([]string, 0, len(entries))
	seen := map[string]bool{}
	for _, e := range entries {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, errors.New("roster agent without a name")
		}
		if seen[name] {
			return nil, errors.Errorf("duplicate agent name %s", name)
		}
		seen[name] = true
		names = append(names, name)
	}

	var tmpl *template.Template
	if r.Template != "" {
		var err error
		tmpl, err = template.New("system").Funcs(sprig.TxtFuncMap()).Parse(r.Template)
		if err != nil {
			return nil, errors.Wrap(err, "could not parse roster template")
		}
	}

	ret := make([]Agent, 0, len(entries))
	for _, e := range entries {
		a := e.Agent
		a.Name = strings.TrimSpace(a.Name)
		if a.Model == "" {
			a.Model = defaultModel
		}
		if a.Model == "" {
			return nil, errors.Errorf("agent %s has no model", a.Name)
		}

		if a.System == "" && tmpl != nil {
			others := make([]string, 0, len(names)-1)
			for _, n := range names {
				if n != a.Name {
					others = append(others, n)
				}
			}
			var buf bytes.Buffer
			err := tmpl.Execute(&buf, promptData{
				Agent:   a,
				Persona: e.Persona,
				Names:   names,
				Others:  others,
			})
			if err != nil {
				return nil, errors.Wrapf(err, "could not render system prompt for %s", a.Name)
			}
			a.System = strings.TrimSpace(buf.String())
		}

		ret = append(ret, a)
	}

	return ret, nil
}
