package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/minios-linux/potkit/pofile"
	"github.com/spf13/afero"
)

const pluginMain = `<?php
/**
 * Plugin Name: WP Clean Admin
 * Version:     1.8.0
 * Text Domain: wp-clean-admin
 */
echo __('Hello', 'wp-clean-admin');
printf(_n('%d item', '%d items', $count, 'wp-clean-admin'), $count);
`

const zhCatalog = `msgid ""
msgstr ""
"Project-Id-Version: WP Clean Admin 1.8.0\n"
"Language: zh_CN\n"
"Content-Type: text/plain; charset=UTF-8\n"
"Plural-Forms: nplurals=1; plural=0;\n"

msgid "Hello"
msgstr "你好"

msgid "%d item"
msgid_plural "%d items"
msgstr[0] "%d 项"
`

// setup points the commands at an in-memory project and captures output.
func setup(t *testing.T, files map[string]string) (afero.Fs, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile(%s): %v", path, err)
		}
	}

	var logs bytes.Buffer
	prevFs, prevOut, prevNow := appFs, logOut, now
	appFs, logOut = fs, &logs
	now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	t.Cleanup(func() { appFs, logOut, now = prevFs, prevOut, prevNow })
	return fs, &logs
}

func TestEndToEnd(t *testing.T) {
	fs, logs := setup(t, map[string]string{
		"/proj/wpcleanadmin/wp-clean-admin.php": pluginMain,
	})
	var out bytes.Buffer

	if code := run([]string{"pot", "--root", "/proj"}, &out); code != exitOK {
		t.Fatalf("pot exit = %d, logs:\n%s", code, logs)
	}
	pot, err := pofile.ParseFile(fs, "/proj/wpcleanadmin/languages/wp-clean-admin.pot")
	if err != nil {
		t.Fatalf("parsing written template: %v", err)
	}
	if len(pot.Entries) != 2 || pot.Entries[0].MsgID != "%d item" || pot.Entries[0].MsgIDPlural != "%d items" || pot.Entries[1].MsgID != "Hello" {
		t.Fatalf("template entries = %#v", pot.Entries)
	}
	if got := pot.HeaderField("Project-Id-Version"); got != "WP Clean Admin 1.8.0" {
		t.Fatalf("Project-Id-Version = %q", got)
	}
	if got := pot.HeaderField("POT-Creation-Date"); got != "2026-03-01 12:30+0000" {
		t.Fatalf("POT-Creation-Date = %q", got)
	}

	if err := afero.WriteFile(fs, "/proj/wpcleanadmin/languages/wp-clean-admin-zh_CN.po", []byte(zhCatalog), 0o644); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if code := run([]string{"compile", "--root", "/proj"}, &out); code != exitOK {
		t.Fatalf("compile exit = %d, logs:\n%s", code, logs)
	}
	if !strings.Contains(out.String(), "Messages: 2") {
		t.Fatalf("compile output = %q", out.String())
	}
	if ok, _ := afero.Exists(fs, "/proj/wpcleanadmin/languages/wp-clean-admin-zh_CN.mo"); !ok {
		t.Fatal("compile did not write the .mo file")
	}

	out.Reset()
	if code := run([]string{"check", "--root", "/proj"}, &out); code != exitOK {
		t.Fatalf("check exit = %d, output:\n%s\nlogs:\n%s", code, out.String(), logs)
	}
	for _, want := range []string{"Chinese (Simplified)", "2 translation calls in 1 files", "0 errors, 0 warnings"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("check output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCheckReportsIssues(t *testing.T) {
	setup(t, map[string]string{
		"/proj/wpcleanadmin/wp-clean-admin.php":          pluginMain,
		"/proj/wpcleanadmin/languages/admin-en.po":       zhCatalog,
		"/proj/wpcleanadmin/languages/wp-clean-admin.pot": "",
	})
	var out bytes.Buffer

	if code := run([]string{"check", "--root", "/proj"}, &out); code != exitIssues {
		t.Fatalf("check exit = %d, want %d\n%s", code, exitIssues, out.String())
	}
	for _, want := range []string{"admin-en.po - invalid name", "missing binary catalog admin-en.mo"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("check output missing %q:\n%s", want, out.String())
		}
	}
}

func TestCompileIsolatesBrokenCatalogs(t *testing.T) {
	fs, logs := setup(t, map[string]string{
		"/proj/wpcleanadmin/languages/wp-clean-admin-zh_CN.po": zhCatalog,
		"/proj/wpcleanadmin/languages/wp-clean-admin-de_DE.po": "msgid \"a\"\nmsgstr[0] \"b\"\n",
	})

	if code := run([]string{"compile", "--root", "/proj"}, &bytes.Buffer{}); code != exitIssues {
		t.Fatalf("compile exit = %d, want %d", code, exitIssues)
	}
	if !strings.Contains(logs.String(), "wp-clean-admin-de_DE.po") {
		t.Fatalf("failure does not name the file:\n%s", logs)
	}
	if ok, _ := afero.Exists(fs, "/proj/wpcleanadmin/languages/wp-clean-admin-zh_CN.mo"); !ok {
		t.Fatal("the good catalog was not compiled")
	}
}

func TestAbortedRuns(t *testing.T) {
	cases := []struct {
		name  string
		files map[string]string
		args  []string
	}{
		{name: "missing catalog dir", files: map[string]string{"/proj/wpcleanadmin/a.php": "<?php"}, args: []string{"check", "--root", "/proj"}},
		{name: "missing plugin root", files: nil, args: []string{"pot", "--root", "/proj"}},
		{name: "missing catalog dir for compile", files: nil, args: []string{"compile", "--root", "/proj"}},
		{name: "invalid config", files: map[string]string{"/proj/.potkit.yaml": "extensions:\n  ruby: [\".rb\"]\n"}, args: []string{"pot", "--root", "/proj"}},
		{name: "unknown flag", args: []string{"pot", "--bogus"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setup(t, tc.files)
			if code := run(tc.args, &bytes.Buffer{}); code != exitAborted {
				t.Fatalf("run(%v) = %d, want %d", tc.args, code, exitAborted)
			}
		})
	}
}

func TestPotHonorsConfigFile(t *testing.T) {
	fs, _ := setup(t, map[string]string{
		"/proj/.potkit.yaml":     "domain: my-plugin\nplugin_root: src\nreferences: true\nproject:\n  name: My Plugin\n  version: 2.0.0\n",
		"/proj/src/main.php":     "<?php __('Hi', 'my-plugin'); __('Other', 'wp-clean-admin');",
		"/proj/src/vendor/x.php": "<?php __('Vendored', 'my-plugin');",
	})

	if code := run([]string{"pot", "--root", "/proj"}, &bytes.Buffer{}); code != exitOK {
		t.Fatalf("pot exit = %d", code)
	}
	pot, err := pofile.ParseFile(fs, "/proj/src/languages/my-plugin.pot")
	if err != nil {
		t.Fatal(err)
	}
	if len(pot.Entries) != 1 || pot.Entries[0].MsgID != "Hi" {
		t.Fatalf("entries = %#v", pot.Entries)
	}
	if refs := pot.Entries[0].References; len(refs) != 1 || refs[0] != "main.php:1" {
		t.Fatalf("references = %v", refs)
	}
	if got := pot.HeaderField("Project-Id-Version"); got != "My Plugin 2.0.0" {
		t.Fatalf("Project-Id-Version = %q", got)
	}
}

func TestVersionCmd(t *testing.T) {
	setup(t, nil)
	var out bytes.Buffer
	if code := run([]string{"version"}, &out); code != exitOK {
		t.Fatalf("version exit = %d", code)
	}
	if !strings.HasPrefix(out.String(), "potkit version dev") {
		t.Fatalf("version output = %q", out.String())
	}
}
