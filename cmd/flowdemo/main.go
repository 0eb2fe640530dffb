// Package main (cmd/flowdemo) drives one authentication flow against a
// running authserver from the command line. It stands in for the browser
// side: the orchestrator runs the state machine, and the credential either
// comes from the --credential flag or is pasted on stdin when the platform
// prompt would normally appear. Useful for exercising a deployment end to
// end without a frontend.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/glideidentity/phone-auth-core/api"
	"github.com/glideidentity/phone-auth-core/authflow"
	"github.com/glideidentity/phone-auth-core/clients"
	"github.com/glideidentity/phone-auth-core/cmd/flags"
)

var appFlags = append([]cli.Flag{
	&cli.StringFlag{
		Name:  "backend-url",
		Value: "http://127.0.0.1:4567",
		Usage: "base URL of the authserver",
	},
	&cli.StringFlag{
		Name:  "use-case",
		Value: string(api.UseCaseVerifyPhoneNumber),
		Usage: "GetPhoneNumber or VerifyPhoneNumber",
	},
	&cli.StringFlag{
		Name:  "phone-number",
		Value: "",
		Usage: "phone number in E.164 format, required for VerifyPhoneNumber",
	},
	&cli.StringFlag{
		Name:  "credential",
		Value: "",
		Usage: "credential to submit; when empty it is read from stdin at prompt time",
	},
	flags.LogServiceFlagFn("flowdemo"),
}, flags.CommonFlags...)

// stdinCreds reads the credential from the terminal, standing in for the
// platform prompt. An empty line counts as a denial.
type stdinCreds struct {
	scripted string
}

func (s *stdinCreds) RequestCredential(ctx context.Context, promptData map[string]any) (string, error) {
	if s.scripted != "" {
		return s.scripted, nil
	}
	fmt.Println("Prompt parameters:", promptData)
	fmt.Print("Paste credential (empty line to deny): ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", authflow.ErrPlatformUnsupported
	}
	credential := strings.TrimSpace(line)
	if credential == "" {
		return "", authflow.ErrCredentialDenied
	}
	return credential, nil
}

func main() {
	app := &cli.App{
		Name:  "flowdemo",
		Usage: "Run one phone-auth flow against a backend",
		Flags: appFlags,
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			useCase := api.UseCase(cCtx.String("use-case"))
			if !useCase.Valid() {
				return fmt.Errorf("invalid use-case %q", cCtx.String("use-case"))
			}

			gateway, err := clients.NewGatewayClient(cCtx.String("backend-url"))
			if err != nil {
				return err
			}

			creds := &stdinCreds{scripted: cCtx.String("credential")}
			o := authflow.New(gateway, creds, logger, authflow.Config{},
				authflow.WithObserver(func(st authflow.State) {
					logger.Info("state transition", "phase", st.Phase.String(), "attempt", st.Attempt, "retries", st.RetryCount)
				}),
			)

			o.Start(cCtx.Context, &api.PrepareRequest{
				UseCase:     useCase,
				PhoneNumber: cCtx.String("phone-number"),
			})
			<-o.Done()

			st := o.State()
			switch st.Phase {
			case authflow.PhaseCompleted:
				verified := "unknown"
				if st.Result.Verified != nil {
					verified = fmt.Sprintf("%t", *st.Result.Verified)
				}
				fmt.Printf("Completed: phone=%s verified=%s\n", st.Result.PhoneNumber, verified)
				return nil
			case authflow.PhaseCancelled:
				fmt.Println("Cancelled")
				return nil
			default:
				return fmt.Errorf("authentication failed: %s (%s)", st.Failure.Message, st.Failure.Code)
			}
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
