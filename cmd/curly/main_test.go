package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRender(t *testing.T) {
	dir := t.TempDir()
	tpl := write(t, dir, "page.tpl", "{{#each v, k in site}}{{k}}={{v}} {{/each}}{{ user.name | upper }}{{ tag }}")
	dataFile := write(t, dir, "data.yaml", "site:\n  b: 2\n  a: 1\nuser:\n  name: ann\n")
	cfg := write(t, dir, "curly.yaml", "cache: {max_size: 2}\n")

	out, _, err := run(t, "", "render", "--config", cfg, "-d", dataFile, "--set", "tag=<i>", tpl)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "b=2 a=1 ANN&lt;i&gt;" {
		t.Fatalf("got %q", out)
	}

	out, _, err = run(t, "", "render", "--config", cfg, "--no-escape", "--set", "tag=<i>", "--set", "user.name=bo", tpl)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "BO<i>" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderStdinToFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.txt")
	cfg := write(t, dir, "curly.yaml", "")
	_, _, err := run(t, "Hello {{ who }}", "render", "--config", cfg, "--set", "who=file", "-o", dst, "-")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	b, err := os.ReadFile(dst)
	if err != nil || string(b) != "Hello file" {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestRenderNamedTemplate(t *testing.T) {
	dir := t.TempDir()
	cfg := write(t, dir, "curly.yaml", "templates:\n  greeting: \"Hi {{ name | default('you') }}\"\n")
	out, _, err := run(t, "", "render", "--config", cfg, "@greeting")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != "Hi you" {
		t.Fatalf("got %q", out)
	}
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	cfg := write(t, dir, "curly.yaml", "")
	good := write(t, dir, "good.tpl", "{{#if a}}x{{/if}}")
	bad := write(t, dir, "bad.tpl", "line one\n{{#for x in}}")

	out, errOut, err := run(t, "", "check", "--config", cfg, good, bad)
	if err == nil || !strings.Contains(err.Error(), "1 of 2 templates failed") {
		t.Fatalf("expected failure, got %v", err)
	}
	if !strings.Contains(out, "ok  "+good) {
		t.Fatalf("stdout: %q", out)
	}
	if !strings.Contains(errOut, "2 | {{#for x in}}") || !strings.Contains(errOut, "| ^") {
		t.Fatalf("stderr missing snippet: %q", errOut)
	}
}

func TestAstAndVars(t *testing.T) {
	dir := t.TempDir()
	cfg := write(t, dir, "curly.yaml", "")
	src := "{{#for x in xs}}{{ x }}{{ y }}{{/for}}"

	out, _, err := run(t, src, "ast", "--config", cfg, "-")
	if err != nil {
		t.Fatalf("ast: %v", err)
	}
	if want := "For(x in \"xs\")\n  Output(\"x\")\n  Output(\"y\")\n"; out != want {
		t.Fatalf("got %q, want %q", out, want)
	}

	out, _, err = run(t, src, "vars", "--config", cfg, "-")
	if err != nil {
		t.Fatalf("vars: %v", err)
	}
	if out != "xs\ny\n" {
		t.Fatalf("got %q", out)
	}
}

func TestMissingExplicitConfig(t *testing.T) {
	_, _, err := run(t, "x", "render", "--config", filepath.Join(t.TempDir(), "nope.yaml"), "-")
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}
