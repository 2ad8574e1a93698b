package cmd

import "testing"

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"serve", "ingest", "search", "migrate", "version"}
	for _, name := range want {
		found := false
		for _, c := range rootCmd.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	if err := searchCmd.Args(searchCmd, nil); err == nil {
		t.Error("search accepted zero arguments, want exactly one")
	}
	if err := searchCmd.Args(searchCmd, []string{"income limit"}); err != nil {
		t.Errorf("search rejected a single argument: %v", err)
	}
}
