// Package authz checks a caller's capability set against the roles an
// endpoint requires.
package authz

const RoleAdmin = "admin"

type Result struct {
	Allowed bool
	Missing []string
}

// Check reports whether caps covers every required role, listing the ones
// it lacks.
func Check(caps []string, required ...string) Result {
	have := make(map[string]bool, len(caps))
	for _, c := range caps {
		have[c] = true
	}
	res := Result{Allowed: true}
	for _, r := range required {
		if !have[r] {
			res.Allowed = false
			res.Missing = append(res.Missing, r)
		}
	}
	return res
}
