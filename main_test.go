package main

import "testing"

func TestRootCommandOwnsErrorOutput(t *testing.T) {
	if !rootCmd.SilenceErrors {
		t.Error("rootCmd must silence cobra's error print; main prints the final error once")
	}
	if !rootCmd.SilenceUsage {
		t.Error("rootCmd must not dump usage on runtime errors")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{"run": false, "plan": false, "scenes": false, "history": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}
}
