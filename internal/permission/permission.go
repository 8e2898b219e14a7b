package permission

import (
	"errors"
	"fmt"
)

// ObjectPermission is the access level a user holds on a project, post or comment.
type ObjectPermission string

const (
	Viewer     ObjectPermission = "viewer"
	Forecaster ObjectPermission = "forecaster"
	Curator    ObjectPermission = "curator"
	Admin      ObjectPermission = "admin"
	Creator    ObjectPermission = "creator"
)

var ErrPermissionDenied = errors.New("you do not have permission to perform this action")

var ranks = map[ObjectPermission]int{
	Viewer:     1,
	Forecaster: 2,
	Curator:    3,
	Admin:      4,
	Creator:    5,
}

// Rank returns the openness rank of p, 0 for an unknown or empty permission.
func Rank(p ObjectPermission) int {
	return ranks[p]
}

// Ranks exposes a copy of the rank table.
func Ranks() map[ObjectPermission]int {
	out := make(map[ObjectPermission]int, len(ranks))
	for k, v := range ranks {
		out[k] = v
	}
	return out
}

func Parse(s string) (ObjectPermission, error) {
	p := ObjectPermission(s)
	if _, ok := ranks[p]; !ok {
		return "", fmt.Errorf("unknown permission %q", s)
	}
	return p, nil
}

func (p ObjectPermission) Valid() bool {
	_, ok := ranks[p]
	return ok
}

// Max returns the higher ranked of a and b.
func Max(a, b ObjectPermission) ObjectPermission {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// Ptr helps build nullable permission columns.
func Ptr(p ObjectPermission) *ObjectPermission {
	return &p
}

// Of dereferences a nullable permission; nil becomes the empty (no access) permission.
func Of(p *ObjectPermission) ObjectPermission {
	if p == nil {
		return ""
	}
	return *p
}

func in(p ObjectPermission, allowed ...ObjectPermission) bool {
	for _, a := range allowed {
		if p == a {
			return true
		}
	}
	return false
}

func CanView(p ObjectPermission) bool {
	return p.Valid()
}

func CanForecast(p ObjectPermission) bool {
	return in(p, Forecaster, Curator, Admin, Creator)
}

func CanComment(p ObjectPermission) bool {
	return in(p, Forecaster, Curator, Admin, Creator)
}

func CanEditPost(p ObjectPermission) bool {
	return in(p, Creator, Admin)
}

func CanDeletePost(p ObjectPermission) bool {
	return in(p, Creator, Admin)
}

func CanApprovePost(p ObjectPermission) bool {
	return in(p, Curator, Admin)
}

func CanResolve(p ObjectPermission) bool {
	return in(p, Curator, Admin)
}

func CanEditProject(p ObjectPermission) bool {
	return in(p, Admin)
}

func CanManageMembers(p ObjectPermission) bool {
	return in(p, Admin)
}

func CanEditComment(p ObjectPermission) bool {
	return in(p, Creator)
}

func CanDeleteComment(p ObjectPermission) bool {
	return in(p, Creator, Curator, Admin)
}

func ensure(ok bool) error {
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

func EnsureView(p ObjectPermission) error          { return ensure(CanView(p)) }
func EnsureForecast(p ObjectPermission) error      { return ensure(CanForecast(p)) }
func EnsureComment(p ObjectPermission) error       { return ensure(CanComment(p)) }
func EnsureEditPost(p ObjectPermission) error      { return ensure(CanEditPost(p)) }
func EnsureDeletePost(p ObjectPermission) error    { return ensure(CanDeletePost(p)) }
func EnsureApprovePost(p ObjectPermission) error   { return ensure(CanApprovePost(p)) }
func EnsureResolve(p ObjectPermission) error       { return ensure(CanResolve(p)) }
func EnsureEditProject(p ObjectPermission) error   { return ensure(CanEditProject(p)) }
func EnsureManageMembers(p ObjectPermission) error { return ensure(CanManageMembers(p)) }
func EnsureEditComment(p ObjectPermission) error   { return ensure(CanEditComment(p)) }
func EnsureDeleteComment(p ObjectPermission) error { return ensure(CanDeleteComment(p)) }
