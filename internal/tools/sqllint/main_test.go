package main

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestLintSource(t *testing.T) {
	src := []byte("package x\n\n" +
		"const ok = `--sql 8d2e61a0-4b1f-4c9e-a7d3-5f0b9c2e1a74\nSELECT 1`\n" +
		"const bad = `SELECT 2`\n" +
		"var badMarker = \"--sql nope\\nCREATE TABLE t (id int)\"\n" +
		"const notSQL = \"selection of videos\"\n")

	vs, err := lintSource("x.go", src)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 2 || vs[0].name != "bad" || vs[1].name != "badMarker" {
		t.Fatalf("violations = %+v", vs)
	}
	if vs[0].line != 5 {
		t.Fatalf("line = %d", vs[0].line)
	}
}

func TestJobstoreQueriesAreMarked(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(file), "..", "..", "jobstore")
	vs, err := lintTargets([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 0 {
		t.Fatalf("violations = %+v", vs)
	}
}
