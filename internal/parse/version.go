// Package parse turns the raw output of probing strategies into normalized
// version tokens. Every parser is a pure function returning the token and
// whether one was found.
package parse

import (
	"regexp"
	"strings"
)

// notFoundMarkers are sentinels that make a whole output unusable even when
// a version-shaped substring appears elsewhere in it.
var notFoundMarkers = []string{
	"package(s) not found",
	"no module named",
	"modulenotfounderror",
	"importerror",
	"traceback (most recent call last)",
	"packagesnotfounderror",
}

var versionToken = regexp.MustCompile(`^\d+(\.\d+)*([A-Za-z0-9.+\-_]*)$`)

// HasNotFoundMarker reports whether raw carries a package-manager or
// interpreter "not found" notice.
func HasNotFoundMarker(raw string) bool {
	lower := strings.ToLower(raw)
	for _, m := range notFoundMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// lines splits raw into trimmed, non-empty lines.
func lines(raw string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// IsVersion reports whether s looks like a version token ("12.2",
// "2.1.0+cu121", "535.104.05").
func IsVersion(s string) bool {
	return versionToken.MatchString(s)
}

// PipShow extracts the Version field of `pip show <pkg>` output.
func PipShow(raw string) (string, bool) {
	if HasNotFoundMarker(raw) {
		return "", false
	}
	for _, l := range lines(raw) {
		if !strings.HasPrefix(l, "Version:") {
			continue
		}
		v := strings.TrimSpace(strings.TrimPrefix(l, "Version:"))
		if IsVersion(v) {
			return v, true
		}
	}
	return "", false
}

// CondaList returns a parser that extracts the version column for pkg from
// `conda list <pkg>` output. Only an exact name match counts, so "torch"
// does not pick up "torchvision".
func CondaList(pkg string) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		if HasNotFoundMarker(raw) {
			return "", false
		}
		for _, l := range lines(raw) {
			if strings.HasPrefix(l, "#") {
				continue
			}
			fields := strings.Fields(l)
			if len(fields) >= 2 && fields[0] == pkg && IsVersion(fields[1]) {
				return fields[1], true
			}
		}
		return "", false
	}
}

// ImportedVersion reads the value printed by a one-line interpreter probe
// such as `python -c "import torch; print(torch.__version__)"`. Warnings
// printed before the value are ignored; "None" is a rejection.
func ImportedVersion(raw string) (string, bool) {
	if HasNotFoundMarker(raw) {
		return "", false
	}
	ls := lines(raw)
	if len(ls) == 0 {
		return "", false
	}
	v := ls[len(ls)-1]
	if v == "None" || !IsVersion(v) {
		return "", false
	}
	return v, true
}

// PythonVersion parses `python --version` output ("Python 3.11.4").
func PythonVersion(raw string) (string, bool) {
	for _, l := range lines(raw) {
		fields := strings.Fields(l)
		if len(fields) >= 2 && fields[0] == "Python" && IsVersion(fields[1]) {
			return fields[1], true
		}
	}
	return "", false
}

// PipVersion parses `pip --version` output
// ("pip 23.2.1 from /usr/lib/python3/dist-packages/pip (python 3.11)").
func PipVersion(raw string) (string, bool) {
	for _, l := range lines(raw) {
		fields := strings.Fields(l)
		if len(fields) >= 2 && fields[0] == "pip" && IsVersion(fields[1]) {
			return fields[1], true
		}
	}
	return "", false
}
