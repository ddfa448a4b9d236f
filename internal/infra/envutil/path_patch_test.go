package envutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func withPlatform(t *testing.T, platform string, login func(string) (string, error)) {
	t.Helper()
	prevOS, prevRun := goos, loginShellRun
	goos, loginShellRun = platform, login
	loginPathCache = sync.Map{}
	t.Cleanup(func() {
		goos, loginShellRun = prevOS, prevRun
		loginPathCache = sync.Map{}
	})
}

func TestChildEnv_OverridesReplaceParentValues(t *testing.T) {
	withPlatform(t, "linux", nil)
	base := []string{"PATH=/bin", "TENANT_ID=parent", "HOME=/root"}

	env := ChildEnv(base, map[string]string{"TENANT_ID": "child", "CLIENT_ID": "abc"})

	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "CLIENT_ID=abc", "TENANT_ID=child"}, env)
	assert.Equal(t, "parent", envVarValue(base, "TENANT_ID"), "base is not modified")
}

func TestPatchPATH_MacOSWithoutTerminal(t *testing.T) {
	sep := string(os.PathListSeparator)
	var shells []string
	withPlatform(t, "darwin", func(shell string) (string, error) {
		shells = append(shells, shell)
		return strings.Join([]string{"/opt/homebrew/bin", "/usr/bin"}, sep), nil
	})
	env := []string{"PATH=" + strings.Join([]string{"/usr/bin", "/bin"}, sep), "SHELL=/bin/bash"}

	patched := PatchPATHIfNeeded(env)
	PatchPATHIfNeeded(env)

	want := strings.Join([]string{"/opt/homebrew/bin", "/usr/bin", "/bin"}, sep)
	assert.Equal(t, want, envVarValue(patched, "PATH"))
	assert.Equal(t, []string{"/bin/bash"}, shells, "login shell PATH is cached")
}

func TestPatchPATH_Skipped(t *testing.T) {
	called := false
	withPlatform(t, "darwin", func(string) (string, error) {
		called = true
		return "/opt/bin", nil
	})

	tests := []struct {
		name string
		env  []string
	}{
		{name: "terminal", env: []string{"PATH=/bin", "TERM=xterm"}},
		{name: "opt out", env: []string{"PATH=/bin", skipPathPatchEnv + "=1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.env, PatchPATHIfNeeded(tt.env))
		})
	}
	assert.False(t, called)

	withPlatform(t, "linux", func(string) (string, error) {
		called = true
		return "/opt/bin", nil
	})
	env := []string{"PATH=/bin"}
	assert.Equal(t, env, PatchPATHIfNeeded(env))
	assert.False(t, called)
}

func TestMergePATHDeduplicates(t *testing.T) {
	sep := string(os.PathListSeparator)
	primary := strings.Join([]string{"/opt/bin", "/usr/bin"}, sep)
	fallback := strings.Join([]string{"/usr/bin", "", "/bin"}, sep)

	got := mergePATH(primary, fallback)
	assert.Equal(t, strings.Join([]string{"/opt/bin", "/usr/bin", "/bin"}, sep), got)
	assert.Empty(t, mergePATH("", ""))
}

func TestEnvVarValueReturnsLast(t *testing.T) {
	env := []string{"PATH=/bin", "A=1", "PATH=/usr/bin"}
	assert.Equal(t, "/usr/bin", envVarValue(env, "PATH"))
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, SortedKeys(map[string]string{"C": "", "A": "", "B": ""}))
	assert.Nil(t, SortedKeys(nil))
}
