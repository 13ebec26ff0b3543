package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const billingCS = `using System.Data.SqlClient;

namespace Shop.Billing
{
    public class Invoice
    {
        public decimal Total;
    }

    public class InvoiceStore
    {
        public void Save(Invoice invoice)
        {
            var cmd = new SqlCommand("insert");
            for (int i = 0; i < 3; i++)
            {
                cmd.ExecuteNonQuery();
            }
        }
    }

    public class Billing
    {
        private readonly InvoiceStore _store = new InvoiceStore();

        public void Charge(Invoice invoice)
        {
            if (invoice.Total > 0 && invoice != null)
            {
                _store.Save(invoice);
            }
        }

        public void MethodX(int n) { MethodY(n - 1); }

        public void MethodY(int n) { MethodX(n - 1); }
    }
}
`

const auditCS = `namespace Shop.Audit
{
    public class AuditLog
    {
        public void Save(string entry) { }
    }
}
`

// createSampleProject writes a two-file C# project and returns the path of
// its project file.
func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "Shop.csproj", "<Project Sdk=\"Microsoft.NET.Sdk\" />\n")
	writeTestFile(t, dir, "Billing.cs", billingCS)
	writeTestFile(t, dir, "Audit.cs", auditCS)
	return filepath.Join(dir, "Shop.csproj")
}

type jsonResult struct {
	Name             string          `json:"name"`
	Kind             string          `json:"kind"`
	References       []any           `json:"references"`
	InternalAnalysis json.RawMessage `json:"internalAnalysis"`
	CalledSymbols    []*jsonResult   `json:"calledSymbols"`
}

type jsonOutput struct {
	Project  string        `json:"project"`
	Variant  string        `json:"variant"`
	Target   string        `json:"target"`
	MaxDepth int           `json:"maxDepth"`
	Results  []*jsonResult `json:"results"`
}

func readJSON(t *testing.T, path string) jsonOutput {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out jsonOutput
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func countResults(nodes []*jsonResult) int {
	n := 0
	for _, r := range nodes {
		n += 1 + countResults(r.CalledSymbols)
	}
	return n
}

func TestTraceMutualRecursion(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--exact", "Shop.Billing.Billing.MethodX(int)",
		"--depth", "5", "--format", "json", "--output", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	path := filepath.Join(out, "Shop_analysis.json")
	assert.Equal(t, "Wrote analysis to "+path+"\n", stdout.String())

	got := readJSON(t, path)
	assert.Equal(t, "Shop", got.Project)
	assert.Equal(t, "analysis", got.Variant)
	assert.Equal(t, 5, got.MaxDepth)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 2, countResults(got.Results))

	root := got.Results[0]
	assert.Equal(t, "Shop.Billing.Billing.MethodX(int)", root.Name)
	require.Len(t, root.CalledSymbols, 1)
	assert.Equal(t, "Shop.Billing.Billing.MethodY(int)", root.CalledSymbols[0].Name)
	assert.Empty(t, root.CalledSymbols[0].CalledSymbols)
	assert.Len(t, root.References, 1, "MethodY calls MethodX once")
}

func TestTraceTextReport(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--name", "Charge", "--depth", "2", "-o", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	data, err := os.ReadFile(filepath.Join(out, "Shop_analysis.txt"))
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "Target: Shop.Billing.Billing.Charge(Invoice)\n")
	assert.Contains(t, text, "Max Depth: 2\n")
	assert.Contains(t, text, "Metrics: LOC=7, Cyclomatic Complexity=3, Parameters=1")
	assert.Contains(t, text, "\nCalls To:\n    Symbol: Shop.Billing.InvoiceStore.Save(Invoice) (method)\n")
	assert.Contains(t, text, "        Symbol: SqlCommand.ExecuteNonQuery (method, external)\n")
	assert.Contains(t, text, "ExecuteNonQuery")
	assert.Contains(t, text, "inside loop")
}

func TestTraceDepthZeroAnalyzesTargetOnly(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--exact", "Shop.Billing.Billing.Charge(Invoice)",
		"-f", "json", "-o", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	got := readJSON(t, filepath.Join(out, "Shop_analysis.json"))
	assert.Equal(t, 1, countResults(got.Results))
	assert.NotEmpty(t, got.Results[0].InternalAnalysis)
}

func TestTraceFlagValuesIgnoreCase(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--exact", "Shop.Billing.Billing.Charge(Invoice)",
		"--mode", "Full", "-f", "JSON", "--snippet", "Line", "--log-level", "WARN", "-o", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())
	assert.FileExists(t, filepath.Join(out, "Shop_analysis.json"))
}

func TestTraceReferencesMode(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--exact", "Shop.Billing.InvoiceStore.Save(Invoice)",
		"--mode", "references", "--depth", "3", "-f", "json", "-o", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	got := readJSON(t, filepath.Join(out, "Shop_analysis.json"))
	require.Len(t, got.Results, 1)
	assert.Len(t, got.Results[0].References, 1)
	assert.Empty(t, got.Results[0].InternalAnalysis)
	assert.Empty(t, got.Results[0].CalledSymbols)
}

func TestTraceAmbiguousNonInteractive(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--name", "Save", "--no-interactive", "-o", out}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "Shop.Audit.AuditLog.Save(string)")
	assert.Contains(t, err.Error(), "Shop.Billing.InvoiceStore.Save(Invoice)")
	assert.NoFileExists(t, filepath.Join(out, "Shop_analysis.txt"))
}

func TestTraceAmbiguousPrompts(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()
	writeTestFile(t, filepath.Dir(project), ".symtrace.toml", "interactive = true\nformat = \"json\"\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--name", "Save", "-o", out},
		strings.NewReader("7\n2\n"), &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	assert.Contains(t, stderr.String(), "Multiple symbols match:")
	assert.Contains(t, stderr.String(), "Invalid choice")

	// Candidates are listed in file order, so Audit.cs comes first.
	assert.Contains(t, stderr.String(), "  1) Shop.Audit.AuditLog.Save(string)\n  2) Shop.Billing.InvoiceStore.Save(Invoice)\n")

	got := readJSON(t, filepath.Join(out, "Shop_analysis.json"))
	assert.Equal(t, "Shop.Billing.InvoiceStore.Save(Invoice)", got.Target)
}

func TestTraceNotFound(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--exact", "Shop.Billing.Billing.Chrage(Invoice)", "-o", out}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "Shop.Billing.Billing.Charge(Invoice)")
	assert.NoFileExists(t, filepath.Join(out, "Shop_analysis.txt"))
}

func TestTraceTargetFlags(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)

	tests := map[string][]string{
		"neither":    {"trace", project},
		"both":       {"trace", project, "--exact", "A.B()", "--name", "B"},
		"empty":      {"trace", project, "--name", ""},
		"bad mode":   {"trace", project, "--name", "Charge", "--mode", "sideways"},
		"bad depth":  {"trace", project, "--name", "Charge", "--depth", "-1"},
		"bad format": {"trace", project, "--name", "Charge", "--format", "xml"},
		"bad flag":   {"trace", project, "--name", "Charge", "--colour"},
		"extra args": {"trace", project, project, "--name", "Charge"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			out := t.TempDir()
			var stdout, stderr bytes.Buffer
			err := run(append(args, "-o", out), nil, &stdout, &stderr)
			require.Error(t, err)
			assert.Equal(t, 1, exitCode(err), err.Error())
			assert.NoFileExists(t, filepath.Join(out, "Shop_analysis.txt"))
		})
	}
}

func TestTraceLoadFailure(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", filepath.Join(t.TempDir(), "Missing.sln"), "--name", "Run", "-o", out},
		nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 2, exitCode(err))

	logs, _ := filepath.Glob(filepath.Join(out, "symtrace_*.log"))
	require.Len(t, logs, 1, "log file is kept")
	data, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "project load failed")
}

func TestTraceConfigFile(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()
	cfg := filepath.Join(t.TempDir(), "symtrace.yaml")
	writeTestFile(t, filepath.Dir(cfg), "symtrace.yaml", "depth: 1\nformat: markdown\ninclude_external: false\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--name", "Charge", "--config", cfg, "--depth", "3", "-o", out},
		nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	data, err := os.ReadFile(filepath.Join(out, "Shop_analysis.md"))
	require.NoError(t, err)
	md := string(data)
	assert.Contains(t, md, "**Max Depth:** 3")
	assert.Contains(t, md, "`Shop.Billing.InvoiceStore.Save(Invoice)`")
	assert.NotContains(t, md, "`SqlCommand.ExecuteNonQuery` (method, external)")
}

func TestTraceBadConfigFile(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	writeTestFile(t, filepath.Dir(project), ".symtrace.toml", "mode = \"sideways\"\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", project, "--name", "Charge", "-o", t.TempDir()}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "Config.Mode")
}

func TestTraceJavaProject(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "pom.xml", "<project/>\n")
	writeTestFile(t, dir, "src/main/java/app/Greeter.java", `package app;

public class Greeter {
    public String greet(String name) {
        return format(name);
    }

    private String format(String name) {
        return "Hello, " + name;
    }
}
`)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"trace", filepath.Join(dir, "pom.xml"), "--name", "greet", "-d", "1", "-f", "json", "-o", out},
		nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	got := readJSON(t, filepath.Join(out, filepath.Base(dir)+"_analysis.json"))
	require.Len(t, got.Results, 1)
	assert.Equal(t, "app.Greeter.greet(String)", got.Results[0].Name)
	require.Len(t, got.Results[0].CalledSymbols, 1)
	assert.Equal(t, "app.Greeter.format(String)", got.Results[0].CalledSymbols[0].Name)
}

func TestContextFilter(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"context", project, "--filter", "invoicestore", "--level", "references", "-o", out},
		nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	path := filepath.Join(out, "Shop_context.txt")
	assert.Equal(t, "Wrote context to "+path+"\n", stdout.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Relation Level: references\n")
	assert.Contains(t, text, "Symbol: Shop.Billing.InvoiceStore (class)\n")
	assert.Contains(t, text, "Symbol: Shop.Billing.InvoiceStore.Save(Invoice) (method)\n")
	assert.Contains(t, text, "Symbol: Shop.Billing.Billing._store (field)\n")
	assert.NotContains(t, text, "Shop.Audit.AuditLog")
}

func TestContextAllTypes(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := run([]string{"context", project, "-f", "json", "-o", out}, nil, &stdout, &stderr)
	require.NoError(t, err, stderr.String())

	got := readJSON(t, filepath.Join(out, "Shop_context.json"))
	var names []string
	for _, r := range got.Results {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{
		"Shop.Audit.AuditLog",
		"Shop.Billing.Invoice",
		"Shop.Billing.InvoiceStore",
		"Shop.Billing.Billing",
	}, names)
}

func TestContextFilterNoMatch(t *testing.T) {
	t.Parallel()
	project := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"context", project, "--filter", "Nothing", "-o", t.TempDir()}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestContextRequiresProject(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"context", "--filter", "Invoice", "-o", t.TempDir()}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"--version"}, {"version"}} {
		var stdout, stderr bytes.Buffer
		require.NoError(t, run(args, nil, &stdout, &stderr))
		assert.Equal(t, "symtrace dev\n", stdout.String())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"frobnicate"}, nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}
