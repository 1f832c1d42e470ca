package parse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

var (
	nvccRelease   = regexp.MustCompile(`release (\d+\.\d+)`)
	nvccBuild     = regexp.MustCompile(`V(\d+\.\d+\.\d+)`)
	versionTxt    = regexp.MustCompile(`CUDA Version (\d+\.\d+)`)
	procDriver    = regexp.MustCompile(`Kernel Module(?:\s+for\s+\S+)?\s+(\d+\.\d+(?:\.\d+)?)`)
	driverToken   = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	majorMinorRun = regexp.MustCompile(`^(\d+\.\d+)`)
)

// NvccVersion extracts the toolkit version from `nvcc --version`. The
// "release X.Y" form wins; the "VX.Y.Z" build tag is the alternate.
func NvccVersion(raw string) (string, bool) {
	if m := nvccRelease.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	if m := nvccBuild.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// CudaVersionTxt parses the legacy toolkit version.txt ("CUDA Version 11.0.228").
func CudaVersionTxt(raw string) (string, bool) {
	if m := versionTxt.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// CudaVersionJSON parses version.json shipped by CUDA 11.1 and later and
// reports the major.minor of its "cuda" component.
func CudaVersionJSON(raw string) (string, bool) {
	var doc map[string]struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return "", false
	}
	cuda, ok := doc["cuda"]
	if !ok {
		return "", false
	}
	if m := majorMinorRun.FindStringSubmatch(cuda.Version); m != nil {
		return m[1], true
	}
	return "", false
}

// DriverVersion parses `nvidia-smi --query-gpu=driver_version` output. Every
// GPU prints a row; the first version row is reported. Diagnostic lines
// such as "WARNING: infoROM is corrupted" are skipped.
func DriverVersion(raw string) (string, bool) {
	for _, l := range lines(raw) {
		if driverToken.MatchString(l) {
			return l, true
		}
	}
	return "", false
}

// ProcDriverVersion parses /proc/driver/nvidia/version.
func ProcDriverVersion(raw string) (string, bool) {
	if m := procDriver.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

func defineValue(raw, name string) (string, bool) {
	re := regexp.MustCompile(`(?m)^\s*#\s*define\s+` + regexp.QuoteMeta(name) + `\s+(\d+)\b`)
	if m := re.FindStringSubmatch(raw); m != nil {
		return m[1], true
	}
	return "", false
}

// CudnnHeader joins the CUDNN_MAJOR, CUDNN_MINOR and CUDNN_PATCHLEVEL
// defines of cudnn_version.h (or the legacy cudnn.h). Each is located
// independently; all three must be present.
func CudnnHeader(raw string) (string, bool) {
	parts := make([]string, 0, 3)
	for _, name := range []string{"CUDNN_MAJOR", "CUDNN_MINOR", "CUDNN_PATCHLEVEL"} {
		v, ok := defineValue(raw, name)
		if !ok {
			return "", false
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "."), true
}

// CudnnVersion parses a cuDNN version printed by a framework. PyTorch
// prints an integer (8902, 90100) which is normalized to dotted form.
func CudnnVersion(raw string) (string, bool) {
	v, ok := ImportedVersion(raw)
	if !ok {
		return "", false
	}
	n, err := strconv.Atoi(v)
	if err != nil || len(v) < 4 {
		return v, true
	}
	return normalizeCudnnInt(n), true
}

// normalizeCudnnInt expands CUDNN_VERSION style integers. Before 9.0 the
// encoding was major*1000+minor*100+patch; from 9.0 on it is
// major*10000+minor*100+patch.
func normalizeCudnnInt(n int) string {
	var major, minor, patch int
	if n >= 10000 {
		major, minor, patch = n/10000, (n%10000)/100, n%100
	} else {
		major, minor, patch = n/1000, (n%1000)/100, n%100
	}
	return strconv.Itoa(major) + "." + strconv.Itoa(minor) + "." + strconv.Itoa(patch)
}
