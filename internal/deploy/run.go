package deploy

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// composeRunner and composeStreamer are vars so tests can intercept the
// docker invocations.
var (
	composeRunner   = runDockerCompose
	composeStreamer = streamDockerCompose
)

func runDockerCompose(ctx context.Context, projectRoot string, args []string, env map[string]string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = projectRoot
	if len(env) > 0 {
		cmd.Env = mapToEnv(env)
	}
	return cmd.CombinedOutput()
}

func streamDockerCompose(ctx context.Context, projectRoot string, args []string, env map[string]string, out io.Writer) error {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = projectRoot
	if len(env) > 0 {
		cmd.Env = mapToEnv(env)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	return cmd.Run()
}

func mapToEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, env[k]))
	}
	return out
}

func baseComposeArgs(assembly *ComposeAssembly) []string {
	args := []string{"compose"}
	args = append(args, BuildComposeFileArgs(assembly.Files)...)
	args = append(args, "--project-directory", assembly.ProjectRoot)
	for _, envFile := range existingEnvFiles(assembly.ProjectRoot) {
		args = append(args, "--env-file", envFile)
	}
	return args
}

// BuildComposeConfigArgs renders the args for a config validation pass.
func BuildComposeConfigArgs(assembly *ComposeAssembly) []string {
	return append(baseComposeArgs(assembly), "config")
}

// BuildComposeBuildArgs renders the args for an image build.
func BuildComposeBuildArgs(assembly *ComposeAssembly) []string {
	return append(baseComposeArgs(assembly), "build")
}

// BuildComposeUpArgs renders the args for a detached up.
func BuildComposeUpArgs(assembly *ComposeAssembly) []string {
	return append(baseComposeArgs(assembly), "up", "-d")
}

// BuildComposeDownArgs renders the args for a stack teardown.
func BuildComposeDownArgs(assembly *ComposeAssembly) []string {
	return append(baseComposeArgs(assembly), "down")
}

// BuildComposeLogsArgs renders the args for a follow-mode log stream.
func BuildComposeLogsArgs(assembly *ComposeAssembly) []string {
	return append(baseComposeArgs(assembly), "logs", "-f")
}

func runCompose(ctx context.Context, assembly *ComposeAssembly, env map[string]string, args []string, verb string) error {
	output, err := composeRunner(ctx, assembly.ProjectRoot, args, env)
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed == "" {
			return fmt.Errorf("docker compose %s failed: %w", verb, err)
		}
		return fmt.Errorf("docker compose %s failed: %w: %s", verb, err, trimmed)
	}
	return nil
}

// ValidateComposeConfig runs `docker compose config` to catch interpolation
// and syntax errors before anything is built or started.
func ValidateComposeConfig(ctx context.Context, assembly *ComposeAssembly, env map[string]string) error {
	return runCompose(ctx, assembly, env, BuildComposeConfigArgs(assembly), "config")
}

// Build builds the stack's images.
func Build(ctx context.Context, assembly *ComposeAssembly, env map[string]string) error {
	return runCompose(ctx, assembly, env, BuildComposeBuildArgs(assembly), "build")
}

// Up starts the stack detached.
func Up(ctx context.Context, assembly *ComposeAssembly, env map[string]string) error {
	return runCompose(ctx, assembly, env, BuildComposeUpArgs(assembly), "up")
}

// Down stops and removes the stack.
func Down(ctx context.Context, assembly *ComposeAssembly, env map[string]string) error {
	return runCompose(ctx, assembly, env, BuildComposeDownArgs(assembly), "down")
}

// Logs follows the stack's logs to out until ctx is cancelled.
func Logs(ctx context.Context, assembly *ComposeAssembly, env map[string]string, out io.Writer) error {
	if out == nil {
		out = os.Stdout
	}
	return composeStreamer(ctx, assembly.ProjectRoot, BuildComposeLogsArgs(assembly), env, out)
}
