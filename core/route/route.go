package route

import (
	"fmt"
	"strings"
)

// Route 描述一条路由及其访问要求。
type Route struct {
	Name         string `toml:"name" json:"name,omitempty"`
	Path         string `toml:"path" json:"path"`
	RequiresAuth bool   `toml:"requires_auth" json:"requiresAuth"`
}

// Matches 判断路径是否命中该路由，Path 以 "/*" 结尾时匹配整个子树。
func (r Route) Matches(path string) bool {
	if prefix, ok := strings.CutSuffix(r.Path, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return path == r.Path
}

// Table 为有序路由表，先匹配者优先。
type Table []Route

// Validate 检查路由定义。
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for i, r := range t {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route: 第 %d 条路由路径必须以 / 开头: %q", i, r.Path)
		}
		if _, dup := seen[r.Path]; dup {
			return fmt.Errorf("route: 路由路径重复: %q", r.Path)
		}
		seen[r.Path] = struct{}{}
	}
	return nil
}

// Match 返回第一条命中的路由。
func (t Table) Match(path string) (Route, bool) {
	p := normalize(path)
	for _, r := range t {
		if r.Matches(p) {
			return r, true
		}
	}
	return Route{}, false
}

// normalize 去掉查询串与片段，并去除末尾多余的斜杠。
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
