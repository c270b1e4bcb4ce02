package main

import (
	"strings"
	"testing"
)

func TestExportFlags(t *testing.T) {
	operation := exportCmd.Flags().Lookup("operation")
	if operation == nil {
		t.Fatal("operation flag missing")
	}
	if !strings.HasSuffix(operation.Usage, "e.g. 2024-001") {
		t.Fatalf("unexpected usage %q", operation.Usage)
	}
	if format := exportCmd.Flags().Lookup("format"); format == nil || format.DefValue != "pdf" {
		t.Fatalf("format flag should default to pdf")
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := map[string]bool{"serve": false, "migrate": false, "export": false}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
