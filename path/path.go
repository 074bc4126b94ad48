package path

import (
	"regexp"
	"strings"
)

type Tpathname []string

var slash *regexp.Regexp

func init() {
	slash = regexp.MustCompile(`//+`)
}

// Split breaks p into its elements, ignoring leading, trailing and
// repeated slashes.
func Split(p string) Tpathname {
	p = slash.ReplaceAllString(p, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return Tpathname{}
	}
	return strings.Split(p, "/")
}

func (path Tpathname) String() string {
	return strings.Join(path, "/")
}

// Abs renders path as an absolute pathname.
func (path Tpathname) Abs() string {
	return "/" + path.String()
}

func (path Tpathname) Append(e string) Tpathname {
	return append(path.Copy(), e)
}

func (path Tpathname) Copy() Tpathname {
	p := make(Tpathname, len(path))
	copy(p, path)
	return p
}

func (path1 Tpathname) Equal(path2 Tpathname) bool {
	if len(path1) != len(path2) {
		return false
	}
	for i := range path1 {
		if path1[i] != path2[i] {
			return false
		}
	}
	return true
}

// is c a child of parent?
func (c Tpathname) IsParent(parent Tpathname) bool {
	if len(parent) == 0 { // parent is root directory
		return true
	}
	for i := range parent {
		if i >= len(c) {
			return false
		}
		if parent[i] != c[i] {
			return false
		}
	}
	return true
}

func (path Tpathname) Dir() Tpathname {
	if len(path) < 1 {
		return Tpathname{}
	}
	return path[0 : len(path)-1]
}

func (path Tpathname) Base() string {
	if len(path) == 0 {
		return "/"
	}
	return path[len(path)-1]
}

func EndSlash(p string) bool {
	return len(p) > 0 && p[len(p)-1] == '/'
}

func IsAbs(p string) bool {
	return len(p) > 0 && p[0] == '/'
}
