package unicorealloc

// UseCase is a named, static job-submission template consumed by this
// allocator. Per spec.md §9, use-case templates are read-only configuration
// loaded at start-up, not mutated at runtime.
type UseCase struct {
	Name     string
	Template map[string]any
}

// DefaultUseCases returns the built-in set of use-case templates shipped
// with this allocator. Deployments needing additional templates construct
// their own map and pass it to New.
func DefaultUseCases() map[string]UseCase {
	return map[string]UseCase{
		"brayns": {
			Name: "brayns",
			Template: map[string]any{
				"ApplicationName": "BRAYNS",
				"Resources": map[string]any{
					"Nodes":   1,
					"Runtime": "3600",
				},
			},
		},
		"paraview": {
			Name: "paraview",
			Template: map[string]any{
				"ApplicationName": "PARAVIEW",
				"Resources": map[string]any{
					"Nodes":   1,
					"Runtime": "3600",
				},
			},
		},
	}
}
