package envutil

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	skipPathPatchEnv = "LOKKAGW_SKIP_PATH_PATCH"
	termEnv          = "TERM"
	shellEnv         = "SHELL"
	pathEnv          = "PATH"
)

type pathCacheEntry struct {
	path string
	err  error
}

var loginPathCache sync.Map

// Hooks replaced in tests.
var (
	goos          = runtime.GOOS
	loginShellRun = resolveLoginShellPATH
)

// ChildEnv returns base with overrides applied, one entry per key, and PATH
// patched so npx and node resolve for a service-launched gateway.
func ChildEnv(base []string, overrides map[string]string) []string {
	env := append([]string(nil), base...)
	for _, key := range SortedKeys(overrides) {
		env = setEnvValue(env, key, overrides[key])
	}
	return PatchPATHIfNeeded(env)
}

// SortedKeys lists the keys of env in order.
func SortedKeys(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for key := range env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PatchPATHIfNeeded prepends the login shell PATH on macOS when the gateway
// was not started from a terminal; launchd hands out a PATH without the
// Homebrew or nvm node directories.
func PatchPATHIfNeeded(env []string) []string {
	if goos != "darwin" {
		return env
	}
	if strings.TrimSpace(envVarValue(env, skipPathPatchEnv)) != "" {
		return env
	}
	if strings.TrimSpace(envVarValue(env, termEnv)) != "" {
		return env
	}
	shellPath := strings.TrimSpace(envVarValue(env, shellEnv))
	if shellPath == "" {
		shellPath = "/bin/zsh"
	}
	loginPath, err := loginShellPATH(shellPath)
	if err != nil || strings.TrimSpace(loginPath) == "" {
		return env
	}
	currentPath := envVarValue(env, pathEnv)
	merged := mergePATH(loginPath, currentPath)
	if merged == "" || merged == currentPath {
		return env
	}
	return setEnvValue(env, pathEnv, merged)
}

// envVarValue returns the last value of key, matching exec.Cmd semantics.
func envVarValue(env []string, key string) string {
	prefix := key + "="
	var value string
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			value = strings.TrimPrefix(entry, prefix)
		}
	}
	return value
}

func setEnvValue(env []string, key, value string) []string {
	prefix := key + "="
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if !strings.HasPrefix(entry, prefix) {
			out = append(out, entry)
		}
	}
	return append(out, prefix+value)
}

func loginShellPATH(shellPath string) (string, error) {
	if cached, ok := loginPathCache.Load(shellPath); ok {
		entry := cached.(pathCacheEntry)
		return entry.path, entry.err
	}
	path, err := loginShellRun(shellPath)
	loginPathCache.Store(shellPath, pathCacheEntry{path: path, err: err})
	return path, err
}

func resolveLoginShellPATH(shellPath string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, shellPath, "-lc", "echo $PATH")
	cmd.Env = append(os.Environ(), "LANG=C", "LC_ALL=C")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

func mergePATH(primary, fallback string) string {
	separator := string(os.PathListSeparator)
	seen := map[string]struct{}{}
	var out []string
	for _, path := range []string{primary, fallback} {
		for _, entry := range strings.Split(path, separator) {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if _, ok := seen[entry]; ok {
				continue
			}
			seen[entry] = struct{}{}
			out = append(out, entry)
		}
	}
	return strings.Join(out, separator)
}
