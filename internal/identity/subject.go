package identity

import "context"

// Subject is the per-request identity. It is either fully verified
// (signature and issuer checked) or fully anonymous; there is no
// partially-trusted state. Immutable after creation, never persisted.
type Subject struct {
	Username string
	Roles    []string
	Email    string
	Name     string
	Verified bool
}

// Anonymous is the subject attached to requests that present no
// credential. Downstream components treat it as low trust; the PDP,
// not the PEP, decides what it may access.
func Anonymous() Subject {
	return Subject{Username: "anonymous", Roles: []string{}}
}

func (s Subject) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type ctxKey int

const subjectKey ctxKey = 1

func With(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// From returns the request subject, defaulting to anonymous when the
// identity stage has not run.
func From(ctx context.Context) Subject {
	if v := ctx.Value(subjectKey); v != nil {
		if s, ok := v.(Subject); ok {
			return s
		}
	}
	return Anonymous()
}
