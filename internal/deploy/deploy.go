package deploy

import (
	"context"
	"fmt"
	"io"
)

// Options selects the deployment variant and where progress lines go.
type Options struct {
	Prod bool
	Out  io.Writer
}

// Deploy runs the full flow: env file check, required-key validation,
// compose config validation, build, up, health poll. Every step must pass
// before the next runs, and failures before `up` leave nothing started.
func Deploy(ctx context.Context, projectRoot string, opts Options) error {
	say := func(format string, args ...any) {
		if opts.Out != nil {
			fmt.Fprintf(opts.Out, format+"\n", args...)
		}
	}

	if err := RequireEnvFile(projectRoot); err != nil {
		return err
	}

	m, err := LoadManifest(projectRoot)
	if err != nil {
		return err
	}

	env, err := LoadLayeredEnv(projectRoot)
	if err != nil {
		return err
	}
	if err := ValidateRequiredEnv(env, m.RequiredEnv); err != nil {
		return err
	}
	say("environment validated (%d required keys present)", len(m.RequiredEnv))

	// the manifest probe wins over any stray HEALTHCHECK_* env
	for k, v := range m.Probe.Env() {
		env[k] = v
	}

	assembly, err := BuildComposeAssembly(projectRoot, m, opts.Prod)
	if err != nil {
		return err
	}
	if err := ValidateComposeConfig(ctx, assembly, env); err != nil {
		return err
	}
	say("compose configuration valid (%d files)", len(assembly.Files))

	if err := Build(ctx, assembly, env); err != nil {
		return err
	}
	say("images built")

	if err := Up(ctx, assembly, env); err != nil {
		return err
	}
	say("stack started, waiting for health...")

	if err := WaitHealthy(ctx, m.HealthURL, env); err != nil {
		return err
	}
	say("%s is healthy", m.Service)
	return nil
}

// Assemble is the shared preamble for the lifecycle commands: load the
// manifest and env, resolve the compose file set.
func Assemble(projectRoot string, prod bool) (*ComposeAssembly, map[string]string, Manifest, error) {
	m, err := LoadManifest(projectRoot)
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	env, err := LoadLayeredEnv(projectRoot)
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	for k, v := range m.Probe.Env() {
		env[k] = v
	}
	assembly, err := BuildComposeAssembly(projectRoot, m, prod)
	if err != nil {
		return nil, nil, Manifest{}, err
	}
	return assembly, env, m, nil
}
