package version

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

// TestHelperProcess stands in for git when execCommand is mocked.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 {
		if args[0] == "--" {
			args = args[1:]
			break
		}
		args = args[1:]
	}
	if len(args) == 0 {
		os.Exit(0)
	}

	cmd := args[0]
	switch cmd {
	case "git":
		if len(args) > 1 && args[1] == "describe" {
			switch {
			case len(args) > 2 && args[2] == "--always":
				if os.Getenv("MOCK_GIT_COMMIT_FAIL") == "1" {
					os.Exit(1)
				}
				os.Stdout.WriteString("3f9c2e1\n")
			case len(args) > 2 && args[2] == "--tags":
				if os.Getenv("MOCK_GIT_VERSION_FAIL") == "1" {
					os.Exit(1)
				}
				if os.Getenv("MOCK_GIT_VERSION_EMPTY") != "1" {
					os.Stdout.WriteString("v0.4.2\n")
				}
			}
		}
	}
}

func mockExecCommand(ctx context.Context, command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	// Pass through specific environment variables to control the mock
	if val := os.Getenv("MOCK_GIT_COMMIT_FAIL"); val != "" {
		cmd.Env = append(cmd.Env, "MOCK_GIT_COMMIT_FAIL="+val)
	}
	if val := os.Getenv("MOCK_GIT_VERSION_FAIL"); val != "" {
		cmd.Env = append(cmd.Env, "MOCK_GIT_VERSION_FAIL="+val)
	}
	if val := os.Getenv("MOCK_GIT_VERSION_EMPTY"); val != "" {
		cmd.Env = append(cmd.Env, "MOCK_GIT_VERSION_EMPTY="+val)
	}
	return cmd
}

func TestInfo(t *testing.T) {
	origExecCommand := execCommand
	defer func() {
		execCommand = origExecCommand
		Reset()
	}()
	execCommand = mockExecCommand

	tests := []struct {
		name           string
		mockCommitFail string
		mockVerFail    string
		mockVerEmpty   string
		expectedVer    string
		expectedCommit string
	}{
		{
			name:           "Success",
			expectedVer:    "v0.4.2",
			expectedCommit: "3f9c2e1",
		},
		{
			name:           "CommitFail",
			mockCommitFail: "1",
			expectedVer:    "v0.4.2",
			expectedCommit: "unknown",
		},
		{
			name:        "VersionFail",
			mockVerFail: "1",
			expectedVer: "dev",
			expectedCommit: "3f9c2e1",
		},
		{
			name:         "VersionEmpty",
			mockVerEmpty: "1",
			expectedVer:  "dev",
			expectedCommit: "3f9c2e1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Reset()
			t.Setenv("MOCK_GIT_COMMIT_FAIL", tt.mockCommitFail)
			t.Setenv("MOCK_GIT_VERSION_FAIL", tt.mockVerFail)
			t.Setenv("MOCK_GIT_VERSION_EMPTY", tt.mockVerEmpty)

			if got := GetVersion(); got != tt.expectedVer {
				t.Errorf("GetVersion() = %v, want %v", got, tt.expectedVer)
			}
			if got := GetCommit(); got != tt.expectedCommit {
				t.Errorf("GetCommit() = %v, want %v", got, tt.expectedCommit)
			}

			info := Info()
			if !strings.HasPrefix(info, Name+" "+tt.expectedVer) || !strings.Contains(info, tt.expectedCommit) {
				t.Errorf("Info() = %q", info)
			}
		})
	}
}

func TestGetDate(t *testing.T) {
	Reset()
	if _, err := time.Parse(time.DateOnly, GetDate()); err != nil {
		t.Errorf("GetDate() = %q, not a date: %v", GetDate(), err)
	}
}

func TestLdflagsWin(t *testing.T) {
	origExecCommand := execCommand
	defer func() {
		execCommand = origExecCommand
		buildVersion, buildCommit = "", ""
		Reset()
	}()
	execCommand = func(context.Context, string, ...string) *exec.Cmd {
		t.Fatal("git should not run when ldflags are set")
		return nil
	}

	buildVersion, buildCommit = "1.2.3", "abc1234"
	Reset()
	if GetVersion() != "1.2.3" || GetCommit() != "abc1234" {
		t.Errorf("got %s/%s", GetVersion(), GetCommit())
	}
}
