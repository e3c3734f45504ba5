package depsolver

import "testing"

func simpleCatalog() Catalog {
	return Catalog{
		{
			Name: "frontend",
			Versions: map[string]VersionEntry{
				"2.0.0": {
					Provide: map[string]any{"frontend:rpc:api": 2},
					Require: []string{"backend and backend:rpc:hello"},
				},
				"1.0.0": {
					Provide: map[string]any{"frontend:rpc:api": 1},
					Require: []string{"backend"},
				},
			},
		},
		{
			Name: "backend",
			Versions: map[string]VersionEntry{
				"1.0.0": {
					Provide: map[string]any{"backend:rpc:hello": 1},
				},
			},
		},
	}
}

func TestSolveFindsAssignment(t *testing.T) {
	s, err := New(simpleCatalog(), nil, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := s.TakeN(0)
	if len(results) == 0 {
		t.Fatalf("expected at least one assignment")
	}
	found := false
	for _, a := range results {
		if a["frontend"] == "2.0.0" && a["backend"] == "1.0.0" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected frontend=2.0.0,backend=1.0.0 among results, got %v", results)
	}
}

func TestSolveDeduplicatesIdenticalAssignments(t *testing.T) {
	s, err := New(simpleCatalog(), nil, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	results := s.TakeN(0)
	seen := map[string]bool{}
	for _, a := range results {
		key := assignmentKey(a)
		if seen[key] {
			t.Fatalf("duplicate assignment emitted: %v", a)
		}
		seen[key] = true
	}
}

func TestAnomalyExcludesVersionFromSearch(t *testing.T) {
	catalog := Catalog{
		{
			Name: "svc",
			Versions: map[string]VersionEntry{
				"2.0.0": {Require: []string{"this is not : valid grammar((("}},
				"1.0.0": {},
			},
		},
	}
	s, err := New(catalog, nil, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(s.Anomalies()) != 1 {
		t.Fatalf("expected 1 anomaly, got %d: %v", len(s.Anomalies()), s.Anomalies())
	}
	results := s.TakeN(0)
	for _, a := range results {
		if a["svc"] == "2.0.0" {
			t.Fatalf("anomalous version should never appear in a solution")
		}
	}
}

func TestExplainCountsViolatedRequires(t *testing.T) {
	catalog := Catalog{
		{Name: "frontend", Versions: map[string]VersionEntry{
			"2.0.0": {Require: []string{"backend:rpc:goodbye == 2"}},
		}},
		{Name: "backend", Versions: map[string]VersionEntry{
			"1.0.0": {Provide: map[string]any{"backend:rpc:goodbye": 1}},
		}},
	}
	s, err := New(catalog, nil, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	count, failed, err := s.Explain()
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 violated clause, got %d (%v)", count, failed)
	}
}
