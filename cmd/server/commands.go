package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pandeptwidyaop/xwhep-remote/internal/middleware"
	"github.com/pandeptwidyaop/xwhep-remote/internal/models"
	"github.com/pandeptwidyaop/xwhep-remote/internal/validation"
)

// parseArgs parses fs allowing flags after positional arguments. Everything
// after "--" is positional.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			break
		}
		if consumed := len(args) - len(rest); consumed > 0 && args[consumed-1] == "--" {
			positional = append(positional, rest...)
			break
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
	return positional, nil
}

func expectArgs(fs *flag.FlagSet, got []string, names ...string) error {
	if len(got) != len(names) {
		return fmt.Errorf("%s: expected arguments %v, got %d", fs.Name(), names, len(got))
	}
	return nil
}

// expectUID checks for a single, well-formed uid argument.
func expectUID(fs *flag.FlagSet, got []string) error {
	if err := expectArgs(fs, got, "uid"); err != nil {
		return err
	}
	if err := validation.ValidateUID(got[0]); err != nil {
		return fmt.Errorf("%s: uid %q: %w", fs.Name(), got[0], err)
	}
	return nil
}

func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSubmit(args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	stdinPath := fs.String("stdin", "", "file sent as the work's standard input")
	tag := fs.String("tag", "", "submission tag stored in the work sgid")
	wait := fs.Bool("wait", false, "wait for completion and download the result")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, pos, "app", "cmdline"); err != nil {
		return err
	}

	req := models.SubmitRequest{App: pos[0], Cmdline: pos[1], Tag: *tag, Wait: *wait}
	if *stdinPath != "" {
		b, err := os.ReadFile(*stdinPath)
		if err != nil {
			return err
		}
		req.Stdin = string(b)
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	if !req.Wait {
		uid, err := a.orch.Submit(ctx, req)
		if err != nil {
			return err
		}
		fmt.Println(uid)
		return nil
	}

	uid, res, err := a.orch.SubmitAndWait(ctx, req)
	if err != nil {
		if uid != "" {
			return fmt.Errorf("work %s: %w", uid, err)
		}
		return err
	}
	if res == nil {
		fmt.Printf("%s completed without result\n", uid)
		return nil
	}
	return printJSON(res)
}

func runRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, pos, "name", "os", "cpu", "source"); err != nil {
		return err
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	uid, err := a.orch.Register(ctx, pos[0], pos[1], pos[2], pos[3])
	if err != nil {
		return err
	}
	fmt.Println(uid)
	return nil
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectUID(fs, pos); err != nil {
		return err
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	status, err := a.orch.Status(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

func runResult(args []string) error {
	fs := flag.NewFlagSet("result", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	printText := fs.Bool("print", false, "print the result text instead of its location")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectUID(fs, pos); err != nil {
		return err
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	if *printText {
		out, err := a.orch.Stdout(ctx, pos[0])
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	res, err := a.orch.Result(ctx, pos[0])
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("work has no result")
	}
	return printJSON(res)
}

func runRemove(args []string) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to config file")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectUID(fs, pos); err != nil {
		return err
	}

	a, err := setup(*configPath)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext()
	defer cancel()

	return a.orch.Remove(ctx, pos[0])
}

func runHashToken(args []string) error {
	fs := flag.NewFlagSet("hash-token", flag.ExitOnError)
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if err := expectArgs(fs, pos, "token"); err != nil {
		return err
	}

	hash, err := middleware.HashToken(pos[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
