package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gmsas95/notakopi/internal/nota"
	"gopkg.in/yaml.v3"
)

const testNota = "Toko Sumber Rejeki\n" +
	"12/03/2024\n" +
	"Kopi Robusta 2 Kg 90000\n" +
	"Gula Pasir 5 kg 75.000\n" +
	"Total Rp 165.000\n"

func TestEnabledStatus(t *testing.T) {
	tests := []struct {
		enabled  bool
		expected string
	}{
		{true, "✅ enabled"},
		{false, "❌ disabled"},
	}

	for _, tt := range tests {
		result := enabledStatus(tt.enabled)
		if result != tt.expected {
			t.Errorf("enabledStatus(%v) = %q, want %q", tt.enabled, result, tt.expected)
		}
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		token    string
		expected string
	}{
		{"1234567890", "1234...7890"},
		{"1234567890abcdef", "1234...cdef"},
		{"short", "***"},
		{"", "***"},
		{"1234567", "***"},
		{"K8812345678988957", "K881...8957"},
	}

	for _, tt := range tests {
		result := maskToken(tt.token)
		if result != tt.expected {
			t.Errorf("maskToken(%q) = %q, want %q", tt.token, result, tt.expected)
		}
	}
}

func TestParseArgs(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	format := fs.String("format", "", "")
	save := fs.Bool("save", false, "")

	positional, err := parseArgs(fs, []string{"nota.jpg", "--format", "yaml", "--save", "extra"})
	if err != nil {
		t.Fatalf("parseArgs failed: %v", err)
	}
	if *format != "yaml" || !*save {
		t.Errorf("flags = %q %v, want yaml true", *format, *save)
	}
	if len(positional) != 2 || positional[0] != "nota.jpg" || positional[1] != "extra" {
		t.Errorf("positional = %v", positional)
	}
}

func TestResolveFormat(t *testing.T) {
	var buf bytes.Buffer
	if got := resolveFormat("", &buf); got != FormatJSON {
		t.Errorf("resolveFormat on a buffer = %q, want json", got)
	}
	if got := resolveFormat("YAML", &buf); got != FormatYAML {
		t.Errorf("resolveFormat(YAML) = %q", got)
	}
}

func TestRunParse_JSON(t *testing.T) {
	var out bytes.Buffer
	if err := runParse([]string{"-"}, strings.NewReader(testNota), &out); err != nil {
		t.Fatalf("runParse failed: %v", err)
	}

	var receipt nota.ParsedReceipt
	if err := json.Unmarshal(out.Bytes(), &receipt); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if receipt.ItemCount() != 2 {
		t.Errorf("Expected 2 items, got %d", receipt.ItemCount())
	}
	if receipt.TotalAmount != 165000 {
		t.Errorf("Expected total 165000, got %d", receipt.TotalAmount)
	}
}

func TestRunParse_YAMLFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nota.txt")
	if err := os.WriteFile(path, []byte(testNota), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runParse([]string{path, "--format", "yaml"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("runParse failed: %v", err)
	}

	var receipt nota.ParsedReceipt
	if err := yaml.Unmarshal(out.Bytes(), &receipt); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	if receipt.ItemCount() != 2 {
		t.Errorf("Expected 2 items, got %d", receipt.ItemCount())
	}
}

func TestRunParse_Table(t *testing.T) {
	var out bytes.Buffer
	if err := runParse([]string{"--format=table"}, strings.NewReader(testNota), &out); err != nil {
		t.Fatalf("runParse failed: %v", err)
	}

	s := out.String()
	for _, want := range []string{"Kopi Robusta", "Gula Pasir", "Total", "2 items"} {
		if !strings.Contains(s, want) {
			t.Errorf("table output missing %q:\n%s", want, s)
		}
	}
}

func TestRunParse_Errors(t *testing.T) {
	var out bytes.Buffer
	if err := runParse([]string{filepath.Join(t.TempDir(), "missing.txt")}, strings.NewReader(""), &out); err == nil {
		t.Error("Expected error for missing file")
	}
	if err := runParse([]string{"--format", "xml"}, strings.NewReader(testNota), &out); err == nil {
		t.Error("Expected error for unknown format")
	}
}

func TestRunParse_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	if err := runParse(nil, strings.NewReader(""), &out); err != nil {
		t.Fatalf("runParse failed: %v", err)
	}
	if !strings.Contains(out.String(), `"items": []`) {
		t.Errorf("Expected empty items array, got %s", out.String())
	}
}

// useTempDataDir points the package-level data dir at a fresh directory
// with the mock OCR provider.
func useTempDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("NOTAKOPI_OCR_PROVIDER", "mock")

	oldData, oldConfig := DataDir, ConfigPath
	DataDir, ConfigPath = dir, ""
	t.Cleanup(func() { DataDir, ConfigPath = oldData, oldConfig })
	return dir
}

func TestRunScanAndInventory(t *testing.T) {
	dir := useTempDataDir(t)

	// The mock provider echoes the file bytes, so a PNG header followed by
	// nota text reads back as that text.
	img := filepath.Join(dir, "nota.png")
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("\n"+testNota)...)
	if err := os.WriteFile(img, data, 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runScan([]string{img, "--save", "--format", "json"}, &out); err != nil {
		t.Fatalf("runScan failed: %v", err)
	}

	var receipt nota.ParsedReceipt
	if err := json.Unmarshal(out.Bytes(), &receipt); err != nil {
		t.Fatalf("scan output is not JSON: %v", err)
	}
	if receipt.ItemCount() != 2 {
		t.Errorf("Expected 2 items, got %d", receipt.ItemCount())
	}

	out.Reset()
	if err := runInventory([]string{"list", "--format", "json"}, &out); err != nil {
		t.Fatalf("inventory list failed: %v", err)
	}
	var items []map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("inventory output is not JSON: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected 2 inventory items, got %d", len(items))
	}

	out.Reset()
	if err := runInventory([]string{"notas", "--format", "table"}, &out); err != nil {
		t.Fatalf("inventory notas failed: %v", err)
	}
	if !strings.Contains(out.String(), "Sumber Rejeki") {
		t.Errorf("Expected nota supplier in output, got %s", out.String())
	}

	xlsx := filepath.Join(dir, "inventori.xlsx")
	out.Reset()
	if err := runInventory([]string{"export", "-o", xlsx}, &out); err != nil {
		t.Fatalf("inventory export failed: %v", err)
	}
	if info, err := os.Stat(xlsx); err != nil || info.Size() == 0 {
		t.Errorf("Expected export file, got %v", err)
	}
	if !strings.Contains(out.String(), "2 items and 1 notas") {
		t.Errorf("unexpected export output: %s", out.String())
	}
}

func TestRunScan_Usage(t *testing.T) {
	useTempDataDir(t)

	var out bytes.Buffer
	if err := runScan(nil, &out); err == nil {
		t.Error("Expected usage error without an image")
	}
}

func TestRunInventory_Unknown(t *testing.T) {
	useTempDataDir(t)

	var out bytes.Buffer
	if err := runInventory([]string{"restock"}, &out); err == nil {
		t.Error("Expected error for unknown subcommand")
	}
}

func TestRunConfig(t *testing.T) {
	dir := useTempDataDir(t)

	var out bytes.Buffer
	if err := runConfig([]string{"get", "ocr.provider"}, &out); err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "mock" {
		t.Errorf("ocr.provider = %q, want mock", out.String())
	}

	out.Reset()
	if err := runConfig([]string{"path"}, &out); err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != filepath.Join(dir, "notakopi.yaml") {
		t.Errorf("config path = %q", out.String())
	}

	if err := runConfig([]string{"get", "nope"}, &out); err == nil {
		t.Error("Expected error for unknown key")
	}
}

func TestRunStatusAndDoctor(t *testing.T) {
	useTempDataDir(t)

	var out bytes.Buffer
	if err := runStatus(&out); err != nil {
		t.Fatalf("runStatus failed: %v", err)
	}
	if !strings.Contains(out.String(), "Provider: mock") {
		t.Errorf("status output missing provider:\n%s", out.String())
	}

	out.Reset()
	if issues := runDoctor(&out); issues != 0 {
		t.Errorf("Expected no issues, got %d:\n%s", issues, out.String())
	}
}

func TestPrintFunctions(t *testing.T) {
	PrintExtendedHelp()
	PrintBatchHelp()
	PrintConfigHelp()
	PrintInventoryHelp()
}

func TestHandleCommandsNoArgs(t *testing.T) {
	HandleConfigCommand([]string{})
	HandleInventoryCommand([]string{})
	HandleBatchCommand([]string{})
}
