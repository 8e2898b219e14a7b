package migrator

import "Forecast_Hub/internal/permission"

// legacy question permission bitmasks
var questionPermissionCodes = map[int64]permission.ObjectPermission{
	524287:  permission.Admin,
	294941:  permission.Forecaster,
	65535:   permission.Admin, // private project
	316860:  permission.Curator,
	360477:  permission.Forecaster,
	491549:  permission.Forecaster,
	491933:  permission.Forecaster,
	491533:  permission.Forecaster,
	316863:  permission.Curator,
	366012:  permission.Curator,
	382396:  permission.Curator,
	294940:  permission.Viewer,
	297180:  permission.Creator,
	1343516: permission.Forecaster,
}

// legacy project permission bitmasks
var projectPermissionCodes = map[int64]permission.ObjectPermission{
	0:  permission.Viewer, // still visible
	2:  permission.Viewer,
	6:  permission.Viewer,
	15: permission.Admin,
	31: permission.Admin,
}

// ConvertQuestionPermissions maps a legacy question permission code, false when unknown.
func ConvertQuestionPermissions(code int64) (permission.ObjectPermission, bool) {
	p, ok := questionPermissionCodes[code]
	return p, ok
}

// ConvertProjectPermissions maps a legacy project permission code, false when unknown.
func ConvertProjectPermissions(code int64) (permission.ObjectPermission, bool) {
	p, ok := projectPermissionCodes[code]
	return p, ok
}
