package sequences

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/opencode-ai/missionctl/internal/engine"
	"github.com/opencode-ai/missionctl/internal/mission"
	"github.com/opencode-ai/missionctl/internal/models"
)

// Render turns a definition into the engine's construction data with
// variables applied to mission names and descriptions.
func Render(def *Definition, vars map[string]string) (engine.SequenceSpec, error) {
	if def == nil {
		return engine.SequenceSpec{}, fmt.Errorf("sequence is required")
	}

	data := make(map[string]string, len(vars))
	for key, value := range vars {
		data[key] = value
	}

	for _, variable := range def.Variables {
		value := strings.TrimSpace(data[variable.Name])
		if value == "" {
			if variable.Default != "" {
				data[variable.Name] = variable.Default
				continue
			}
			if variable.Required {
				return engine.SequenceSpec{}, fmt.Errorf("missing required variable %q", variable.Name)
			}
		}
	}

	spec := engine.SequenceSpec{
		Name:       def.Name,
		TotalDelay: def.TotalDelayDuration(),
		Missions:   make([]mission.Data, 0, len(def.Missions)),
	}

	for i := range def.Missions {
		m := &def.Missions[i]
		name, err := renderText(def.Name, m.Name, data)
		if err != nil {
			return engine.SequenceSpec{}, fmt.Errorf("render sequence %q mission %d: %w", def.Name, i+1, err)
		}
		description, err := renderText(def.Name, m.Description, data)
		if err != nil {
			return engine.SequenceSpec{}, fmt.Errorf("render sequence %q mission %d: %w", def.Name, i+1, err)
		}
		spec.Missions = append(spec.Missions, mission.Data{
			ID:          m.ID,
			Name:        name,
			Description: description,
			Delay:       m.DelayDuration(),
			Kind:        m.Kind,
		})
	}

	return spec, nil
}

// RenderAll renders every definition with the same variables.
func RenderAll(defs []*Definition, vars map[string]string) ([]engine.SequenceSpec, error) {
	specs := make([]engine.SequenceSpec, 0, len(defs))
	for _, def := range defs {
		spec, err := Render(def, vars)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Validate checks a definition against the kinds factory can resolve.
// Unknown kinds are not fatal at runtime; the mission simply stays inert.
func Validate(def *Definition, factory *mission.Factory) error {
	var verrs models.ValidationErrors
	if def == nil {
		verrs.AddMessage("sequence", "is required")
		return verrs.Err()
	}

	for i, m := range def.Missions {
		field := fmt.Sprintf("missions[%d]", i)
		if factory != nil && !factory.Has(m.Kind) {
			verrs.AddMessage(field+".kind", fmt.Sprintf("unknown mission kind %q", m.Kind))
		}
		if _, err := renderText(def.Name, m.Name, nil); err != nil {
			verrs.AddMessage(field+".name", err.Error())
		}
		if _, err := renderText(def.Name, m.Description, nil); err != nil {
			verrs.AddMessage(field+".description", err.Error())
		}
	}

	return verrs.Err()
}

func renderText(name, content string, data map[string]string) (string, error) {
	if !strings.Contains(content, "{{") {
		return content, nil
	}

	parsed, err := template.New(name).
		Funcs(template.FuncMap{"default": defaultValue}).
		Option("missingkey=zero").
		Parse(content)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", name, err)
	}

	var out strings.Builder
	if err := parsed.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}

	return out.String(), nil
}

func defaultValue(def string, value any) string {
	if value == nil {
		return def
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return def
		}
		return text
	}
}
