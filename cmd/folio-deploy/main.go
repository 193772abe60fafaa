package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"folio/internal/deploy"
)

func main() {
	projectRoot := flag.String("project-root", ".", "project root containing compose files and .env")
	prod := flag.Bool("prod", false, "include the production overlay")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args[0], *projectRoot, *prod); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command, projectRoot string, prod bool) error {
	switch command {
	case "build":
		assembly, env, _, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		return deploy.Build(ctx, assembly, env)

	case "start":
		assembly, env, m, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		if err := deploy.ValidateRequiredEnv(env, m.RequiredEnv); err != nil {
			return err
		}
		return deploy.Up(ctx, assembly, env)

	case "stop":
		assembly, env, _, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		return deploy.Down(ctx, assembly, env)

	case "restart":
		assembly, env, _, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		if err := deploy.Down(ctx, assembly, env); err != nil {
			return err
		}
		return deploy.Up(ctx, assembly, env)

	case "logs":
		assembly, env, _, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		return deploy.Logs(ctx, assembly, env, os.Stdout)

	case "dev":
		return deploy.Deploy(ctx, projectRoot, deploy.Options{Prod: false, Out: os.Stdout})

	case "prod":
		return deploy.Deploy(ctx, projectRoot, deploy.Options{Prod: true, Out: os.Stdout})

	case "deploy":
		return deploy.Deploy(ctx, projectRoot, deploy.Options{Prod: prod, Out: os.Stdout})

	case "health":
		m, err := deploy.LoadManifest(projectRoot)
		if err != nil {
			return err
		}
		env, err := deploy.LoadLayeredEnv(projectRoot)
		if err != nil {
			return err
		}
		url := deploy.ExpandEnvDefaults(m.HealthURL, env)
		return checkHealthOnce(ctx, url)

	case "test":
		m, err := deploy.LoadManifest(projectRoot)
		if err != nil {
			return err
		}
		env, err := deploy.LoadLayeredEnv(projectRoot)
		if err != nil {
			return err
		}
		base := deploy.ExpandEnvDefaults(m.HealthURL, env)
		return testComponents(ctx, base)

	case "clean":
		assembly, env, _, err := deploy.Assemble(projectRoot, prod)
		if err != nil {
			return err
		}
		if err := deploy.Down(ctx, assembly, env); err != nil {
			return err
		}
		fmt.Println("stack removed; data/ and logs/ left in place")
		return nil

	case "dev-setup":
		return deploy.DevSetup(projectRoot, os.Stdout)

	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func checkHealthOnce(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	fmt.Printf("healthy (%d)\n", resp.StatusCode)
	return nil
}

func testComponents(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 150 * time.Second}
	url := baseURL + "test-components"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("component test failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	fmt.Println(string(body))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("component test returned %d", resp.StatusCode)
	}
	return nil
}

func printUsage() {
	fmt.Println("usage:")
	fmt.Println("  folio-deploy [-project-root .] [-prod] <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  build       build images")
	fmt.Println("  start       start the stack (validates env first)")
	fmt.Println("  stop        stop the stack")
	fmt.Println("  restart     stop then start")
	fmt.Println("  logs        follow stack logs")
	fmt.Println("  dev         full deploy with the dev compose file")
	fmt.Println("  prod        full deploy including the prod overlay")
	fmt.Println("  deploy      full deploy (honors -prod)")
	fmt.Println("  health      one-shot health check")
	fmt.Println("  test        hit /test-components on the running service")
	fmt.Println("  clean       tear the stack down")
	fmt.Println("  dev-setup   create dirs, seed .env and deploy.toml")
}
