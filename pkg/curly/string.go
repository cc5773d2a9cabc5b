package curly

import (
	"fmt"
)

// TemplateString is template source carried in configuration files.
type TemplateString string

func (t TemplateString) Validate() error {
	if _, err := Parse(string(t)); err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}
	return nil
}

// Compile compiles the template with opts.
func (t TemplateString) Compile(opts *Options) (*Template, error) {
	return Compile(string(t), opts)
}

func (t TemplateString) Render(ctx Context) (string, error) {
	tpl, err := Compile(string(t), nil)
	if err != nil {
		return "", fmt.Errorf("compiling template: %w", err)
	}
	return tpl.Render(ctx)
}
