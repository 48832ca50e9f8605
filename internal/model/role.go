package model

import "strings"

// ViewerRole 当前查看页面的用户角色
type ViewerRole string

const (
	RoleTester       ViewerRole = "tester"
	RoleReportOwner  ViewerRole = "report_owner"
	RoleDataOwner    ViewerRole = "data_owner"
	RoleDataProvider ViewerRole = "data_provider"
	RoleAdmin        ViewerRole = "admin"
	RoleUnknown      ViewerRole = ""
)

// ParseViewerRole 同时接受 "Report Owner"、"report-owner"、"report_owner" 等写法
func ParseViewerRole(s string) ViewerRole {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch ViewerRole(norm) {
	case RoleTester, RoleReportOwner, RoleDataOwner, RoleDataProvider, RoleAdmin:
		return ViewerRole(norm)
	case "data_executive", "cdo":
		return RoleDataOwner
	}
	return RoleUnknown
}

// BackendName 后端任务过滤使用的角色名
func (r ViewerRole) BackendName() string {
	switch r {
	case RoleTester:
		return "Tester"
	case RoleReportOwner:
		return "Report Owner"
	case RoleDataOwner:
		return "Data Owner"
	case RoleDataProvider:
		return "Data Provider"
	case RoleAdmin:
		return "Admin"
	}
	return ""
}
