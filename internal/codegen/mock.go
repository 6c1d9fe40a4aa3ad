package codegen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
)

var mockHeaderTmpl = template.Must(template.New("mock.h").Parse(`/* AUTOGENERATED FILE. DO NOT EDIT. */
#ifndef {{.Guard}}
#define {{.Guard}}

#include "{{.Header}}"

void {{.Name}}_Init(void);
void {{.Name}}_Verify(void);
void {{.Name}}_Destroy(void);
{{range .Functions}}
int {{.Name}}_CallCount(void);
{{- if .Void}}
void {{.Name}}_Ignore(void);
{{- else}}
void {{.Name}}_IgnoreAndReturn({{.ReturnType}} retval);
{{- end}}
{{end}}
#endif /* {{.Guard}} */
`))

var mockSourceTmpl = template.Must(template.New("mock.c").Parse(`/* AUTOGENERATED FILE. DO NOT EDIT. */
#include <string.h>
#include "unity.h"
#include "{{.Name}}.h"

static struct {
  int placeholder;
{{- range .Functions}}
  int {{.Name}}_calls;
  int {{.Name}}_ignored;
{{- if not .Void}}
  {{.ReturnType}} {{.Name}}_retval;
{{- end}}
{{- end}}
} Mock;

void {{.Name}}_Init(void)
{
  memset(&Mock, 0, sizeof(Mock));
}

void {{.Name}}_Verify(void)
{
}

void {{.Name}}_Destroy(void)
{
  memset(&Mock, 0, sizeof(Mock));
}
{{range .Functions}}
int {{.Name}}_CallCount(void)
{
  return Mock.{{.Name}}_calls;
}
{{if .Void}}
void {{.Name}}_Ignore(void)
{
  Mock.{{.Name}}_ignored = 1;
}
{{- else}}
void {{.Name}}_IgnoreAndReturn({{.ReturnType}} retval)
{
  Mock.{{.Name}}_ignored = 1;
  Mock.{{.Name}}_retval = retval;
}
{{- end}}

{{.ReturnType}} {{.Name}}({{.Signature}})
{
{{- range .Params}}
  (void){{.Name}};
{{- end}}
  Mock.{{.Name}}_calls++;
  if (!Mock.{{.Name}}_ignored)
  {
    TEST_FAIL_MESSAGE("Called more times than expected: {{.Name}}");
  }
{{- if not .Void}}
  return Mock.{{.Name}}_retval;
{{- end}}
}
{{end}}`))

type mockData struct {
	Name      string
	Guard     string
	Header    string
	Functions []Prototype
}

// MockGenerator writes mock modules for headers.
type MockGenerator struct{}

// Generate reads mock.Input and writes mock.OutHeader and mock.Source.
func (MockGenerator) Generate(ctx context.Context, mock model.Mock) error {
	src, err := os.ReadFile(mock.Input)
	if err != nil {
		return fmt.Errorf("failed to read header '%s': %w", mock.Input, err)
	}
	protos, err := ParsePrototypes(string(src))
	if err != nil {
		return fmt.Errorf("failed to parse header '%s': %w", mock.Input, err)
	}

	data := mockData{
		Name:      mock.Name,
		Guard:     strings.ToUpper(mock.Name) + "_H",
		Header:    filepath.Base(mock.Header),
		Functions: protos,
	}
	if err := render(mockHeaderTmpl, data, mock.OutHeader); err != nil {
		return err
	}
	if err := render(mockSourceTmpl, data, mock.Source); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Generated mock.", "mock", mock.Name, "functions", len(protos))
	return nil
}

func render(tmpl *template.Template, data any, path string) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render '%s': %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for '%s': %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write '%s': %w", path, err)
	}
	return nil
}
