package codegen

import (
	"context"
	"path/filepath"
	"text/template"

	"github.com/vk/unitgrid/internal/ctxlog"
	"github.com/vk/unitgrid/internal/model"
)

var runnerTmpl = template.Must(template.New("runner.c").Parse(`/* AUTOGENERATED FILE. DO NOT EDIT. */
#include "unity.h"
{{- if .UseExceptions}}
#include "CException.h"
{{- end}}
{{- range .Mocks}}
#include "{{.}}.h"
{{- end}}

extern void setUp(void);
extern void tearDown(void);
{{range .TestCases}}
extern void {{.Name}}(void);
{{- end}}

static void CMock_Init(void)
{
{{- range .Mocks}}
  {{.}}_Init();
{{- end}}
}

static void CMock_Verify(void)
{
{{- range .Mocks}}
  {{.}}_Verify();
{{- end}}
}

static void CMock_Destroy(void)
{
{{- range .Mocks}}
  {{.}}_Destroy();
{{- end}}
}

void resetTest(void)
{
  tearDown();
  CMock_Verify();
  CMock_Destroy();
  CMock_Init();
  setUp();
}

static void run_test(UnityTestFunction func, const char* name, int line)
{
  Unity.CurrentTestName = name;
  Unity.CurrentTestLineNumber = line;
  Unity.NumberOfTests++;
  CMock_Init();
  UNITY_CLR_DETAILS();
  if (TEST_PROTECT())
  {
{{- if .UseExceptions}}
    CEXCEPTION_T e;
    Try
    {
      setUp();
      func();
    }
    Catch(e)
    {
      TEST_FAIL_MESSAGE("Unhandled exception");
    }
{{- else}}
    setUp();
    func();
{{- end}}
  }
  if (TEST_PROTECT())
  {
    tearDown();
    CMock_Verify();
  }
  CMock_Destroy();
  UnityConcludeTest();
}

int main(void)
{
  UnityBegin("{{.TestFile}}");
{{- range .TestCases}}
  run_test({{.Name}}, "{{.Name}}", {{.Line}});
{{- end}}
  return UnityEnd();
}
`))

// RunnerInput describes the runner for one test.
type RunnerInput struct {
	Test          string
	TestFile      string
	Output        string
	TestCases     []model.TestCase
	Mocks         []string
	UseExceptions bool
}

// RunnerGenerator writes Unity test runners.
type RunnerGenerator struct{}

// Generate writes the runner for in.
func (RunnerGenerator) Generate(ctx context.Context, in RunnerInput) error {
	data := in
	data.TestFile = filepath.ToSlash(in.TestFile)
	if err := render(runnerTmpl, data, in.Output); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Generated runner.", "test", in.Test, "test_cases", len(in.TestCases), "mocks", len(in.Mocks))
	return nil
}
