// Package render turns runs, run steps and answers into markdown for the terminal.
package render

import (
	"bytes"
	"io"
	"os"
	"text/template"
	"time"

	"github.com/Masterminds/sprig"
	"github.com/charmbracelet/glamour"
	"github.com/go-go-golems/assistant-runs/pkg/assistants/api"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

const runTemplate = `
# Run {{.ID}}

- **Thread**: {{.ThreadID}}
- **Assistant**: {{.AssistantID}}
- **Status**: {{.Status}}
{{- with .Model}}
- **Model**: {{.}}
{{- end}}
- **Created at**: {{unix .CreatedAt}}
{{- with .StartedAt}}
- **Started at**: {{unix .}}
{{- end}}
{{- with .CompletedAt}}
- **Completed at**: {{unix .}}
{{- end}}
{{- with .CancelledAt}}
- **Cancelled at**: {{unix .}}
{{- end}}
{{- with .FailedAt}}
- **Failed at**: {{unix .}}
{{- end}}
{{- with .ExpiresAt}}
- **Expires at**: {{unix .}}
{{- end}}
{{- with .Usage}}
- **Tokens**: {{.PromptTokens}} prompt, {{.CompletionTokens}} completion, {{.TotalTokens}} total
{{- end}}
{{- with .LastError}}

**Error** {{.Code}}: {{.Message}}
{{- end}}
{{- with .Instructions}}

## Instructions

{{.}}
{{- end}}
{{- with .PendingToolCalls}}

## Pending tool calls

{{range . -}}
- **{{.ID}}** {{.Function.Name}}({{.Function.Arguments | trunc 200}})
{{end -}}
{{- end}}
`

const stepsTemplate = `
{{- range .}}
## Step {{.ID}}

- **Type**: {{.Type}}
- **Status**: {{.Status}}
- **Created at**: {{unix .CreatedAt}}
{{- with .CompletedAt}}
- **Completed at**: {{unix .}}
{{- end}}
{{- with .LastError}}
- **Error**: {{.Code}}: {{.Message}}
{{- end}}
{{- with .StepDetails.MessageCreation}}
- **Message**: {{.MessageID}}
{{- end}}
{{- range .StepDetails.ToolCalls}}
{{template "toolCall" .}}
{{- end}}

---
{{end -}}
`

const toolCallTemplate = `
### {{.Type | title}} call {{.ID}}
{{- with .Function}}

{{.Name}}({{.Arguments}})
{{- with .Output}}

Output: {{.}}
{{- end}}
{{- end}}
{{- with .CodeInterpreter}}

~~~python
{{.Input}}
~~~
{{- range .Outputs}}
{{- if .Logs}}

~~~
{{.Logs | trim}}
~~~
{{- end}}
{{- with .Image}}

Image file: {{.FileID}}
{{- end}}
{{- end}}
{{- end}}`

const answerTemplate = `
# Answer

{{range .Answers -}}
> {{.}}
{{end}}
- **Model**: {{.Model}}
{{- with .SearchModel}}
- **Search model**: {{.}}
{{- end}}
{{- with .SelectedDocuments}}

## Selected documents

{{range . -}}
{{.Document}}. {{.Text | trim}}
{{end -}}
{{- end}}
`

// unix formats a unix timestamp, given as int64 or *int64, in UTC.
func unix(v interface{}) string {
	switch ts := v.(type) {
	case int64:
		return time.Unix(ts, 0).UTC().Format(timeLayout)
	case *int64:
		if ts == nil {
			return ""
		}
		return time.Unix(*ts, 0).UTC().Format(timeLayout)
	default:
		return ""
	}
}

func newTemplate(name string) *template.Template {
	funcMap := sprig.TxtFuncMap()
	funcMap["unix"] = unix
	return template.New(name).Funcs(funcMap)
}

func execute(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "failed to render %s", t.Name())
	}
	return buf.String(), nil
}

func RunMarkdown(run *api.RunResponse) (string, error) {
	t, err := newTemplate("run").Parse(runTemplate)
	if err != nil {
		return "", err
	}
	return execute(t, run)
}

func StepsMarkdown(steps []api.RunStepResponse) (string, error) {
	t, err := newTemplate("steps").Parse(stepsTemplate)
	if err != nil {
		return "", err
	}
	if _, err := t.New("toolCall").Parse(toolCallTemplate); err != nil {
		return "", err
	}
	return execute(t, steps)
}

func AnswerMarkdown(answer *api.CreateAnswerResponse) (string, error) {
	t, err := newTemplate("answer").Parse(answerTemplate)
	if err != nil {
		return "", err
	}
	return execute(t, answer)
}

// Write styles markdown with glamour when w is a terminal and writes it unchanged otherwise.
func Write(w io.Writer, markdown string) error {
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		styled, err := glamour.Render(markdown, "dark")
		if err != nil {
			return errors.Wrap(err, "failed to style markdown")
		}
		markdown = styled
	}
	_, err := io.WriteString(w, markdown)
	return err
}
