package main

import "testing"

func TestCommandTree(t *testing.T) {
	serve := serveCmd()
	if serve.Use != "serve" {
		t.Errorf("unexpected serve command use: %s", serve.Use)
	}

	migrate := migrateCmd()
	sub := map[string]bool{}
	for _, c := range migrate.Commands() {
		sub[c.Use] = true
	}
	if !sub["up"] || !sub["status"] {
		t.Errorf("migrate is missing subcommands, have %v", sub)
	}
}
