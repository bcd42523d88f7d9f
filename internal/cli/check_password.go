package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/mrlokans/roadwatch/internal/breach"
	"github.com/mrlokans/roadwatch/internal/config"
	"github.com/mrlokans/roadwatch/internal/validation"
)

// ErrPasswordRejected is returned when registration would refuse the password.
var ErrPasswordRejected = errors.New("password would be rejected")

// readPassword reads without echo; replaced in tests.
var readPassword = term.ReadPassword

// isTerminal is replaced in tests.
var isTerminal = term.IsTerminal

type CheckPasswordCommand struct {
	Email     string
	Offline   bool
	BreachURL string
	Timeout   time.Duration

	In  io.Reader
	Out io.Writer
}

func NewCheckPasswordCommand() *CheckPasswordCommand {
	return &CheckPasswordCommand{In: os.Stdin, Out: os.Stdout}
}

func (cmd *CheckPasswordCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("check-password", flag.ContinueOnError)

	fs.StringVar(&cmd.Email, "email", "", "Email the password will be used with (enables the containment rule)")
	fs.BoolVar(&cmd.Offline, "offline", false, "Skip the breach corpus lookup")
	fs.StringVar(&cmd.BreachURL, "breach-url", config.DefaultBreachBaseURL, "Base URL of the range API")
	fs.DurationVar(&cmd.Timeout, "timeout", 5*time.Second, "Timeout for the breach lookup")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s check-password [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Check a password against the registration policy and the breach corpus.\n")
		fmt.Fprintf(os.Stderr, "The password is read from the terminal without echo, or from stdin when piped.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Email != "" && !validation.ValidateEmail(cmd.Email) {
		return fmt.Errorf("invalid email: %s", cmd.Email)
	}
	return nil
}

func (cmd *CheckPasswordCommand) Run() error {
	password, err := cmd.read()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	rejected := false

	violations := validation.ValidatePassword(password, cmd.Email)
	if len(violations) == 0 {
		fmt.Fprintln(cmd.Out, "Policy: all rules pass")
	} else {
		rejected = true
		fmt.Fprintln(cmd.Out, "Policy:")
		for _, v := range violations {
			fmt.Fprintf(cmd.Out, "  - %s\n", v.Message)
		}
	}

	score := validation.Strength(password, cmd.Email)
	fmt.Fprintf(cmd.Out, "Strength: %d/4 (%s)\n", score, validation.StrengthLabel(score))

	if cmd.Offline {
		fmt.Fprintln(cmd.Out, "Breach check: skipped")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), cmd.timeout())
		defer cancel()

		res, err := breach.NewChecker(cmd.BreachURL, cmd.timeout()).Check(ctx, password)
		switch {
		case err != nil:
			// Registration fails open on the same error.
			fmt.Fprintf(cmd.Out, "Breach check: unavailable (%v)\n", err)
		case res.Breached:
			rejected = true
			fmt.Fprintf(cmd.Out, "Breach check: found %d times in known breaches\n", res.Count)
		default:
			fmt.Fprintln(cmd.Out, "Breach check: not found")
		}
	}

	if rejected {
		return ErrPasswordRejected
	}
	return nil
}

func (cmd *CheckPasswordCommand) timeout() time.Duration {
	if cmd.Timeout > 0 {
		return cmd.Timeout
	}
	return 5 * time.Second
}

// read prompts on a terminal and otherwise takes the first line of input.
func (cmd *CheckPasswordCommand) read() (string, error) {
	if f, ok := cmd.In.(*os.File); ok && isTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.Out, "Password: ")
		b, err := readPassword(int(f.Fd()))
		fmt.Fprintln(cmd.Out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(cmd.In).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
