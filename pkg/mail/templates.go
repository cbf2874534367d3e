package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

// TemplateParams is the placeholder contract a Template renders from. All
// values are derived deterministically from the task report, so rendering the
// same report twice produces identical output.
type TemplateParams struct {
	Title     string
	Message   string
	Details   []Detail
	ErrorInfo string
	Duration  string
	Timestamp string
	Generator string
}

// Template renders a message body from the placeholder set. Callers may
// supply their own implementation; NewHTMLTemplate covers the common case.
type Template interface {
	Render(p TemplateParams) (string, error)
}

var (
	successTemplate = template.New("success")
	failureTemplate = template.New("failure")

	//go:embed templates/success.html
	successTemplateRaw string
	//go:embed templates/failure.html
	failureTemplateRaw string
)

func init() {
	if _, err := successTemplate.Parse(successTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := failureTemplate.Parse(failureTemplateRaw); err != nil {
		panic(err)
	}
}

type htmlTemplate struct {
	t *template.Template
}

func (h htmlTemplate) Render(p TemplateParams) (string, error) {
	b := bytes.Buffer{}
	if err := h.t.Execute(&b, p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	return b.String(), nil
}

// SuccessTemplate returns the built-in success variant.
func SuccessTemplate() Template {
	return htmlTemplate{t: successTemplate}
}

// FailureTemplate returns the built-in failure variant.
func FailureTemplate() Template {
	return htmlTemplate{t: failureTemplate}
}

// NewHTMLTemplate parses a caller-supplied html/template body against the
// TemplateParams placeholder contract.
func NewHTMLTemplate(name, text string) (Template, error) {
	t, err := template.New(name).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrTemplate, name, err)
	}
	return htmlTemplate{t: t}, nil
}
