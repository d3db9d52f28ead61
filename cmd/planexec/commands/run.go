package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/planexec/planexec/internal/planio"
	"github.com/planexec/planexec/pkg/exec"
	"github.com/planexec/planexec/pkg/policy"
	"github.com/planexec/planexec/pkg/store"
	"github.com/planexec/planexec/pkg/transport/grpcexec"
	"github.com/planexec/planexec/pkg/transport/sshexec"
)

func newRunCommand() *cobra.Command {
	var (
		planPath      string
		hierarchyPath string
		policyDirs    []string
		statePath     string
		transport     string
		grpcTarget    string
		sshHost       string
		sshPort       int
		sshUser       string
		sshAuth       string
		sshKeyPath    string
		sshPassword   string
		maxCycles     uint64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load a plan and drive it to quiescence",
		Long: `Load a JSON plan document (see internal/planio), wire up the resource
arbiter, mutex registry and external interface, and step the executive
until no candidate nodes remain and every outbound queue is empty.`,
		Example: `  # Dry run against a local plan with no external system
  planexec run --plan ./examples/drill.json

  # Drive commands over gRPC to an out-of-process executor
  planexec run --plan ./examples/drill.json --transport grpc --grpc-target localhost:7070

  # Drive commands over SSH to a single remote host
  planexec run --plan ./examples/drill.json --transport ssh \
    --ssh-host rig-07.example --ssh-user planexec --ssh-auth key --ssh-key ~/.ssh/id_ed25519`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.New().String()

			level := zerolog.InfoLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			var logger zerolog.Logger
			if jsonOutput {
				logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("run_id", runID).Logger()
			} else {
				logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Str("run_id", runID).Logger()
			}

			ctx := cmd.Context()

			arbiter := exec.NewArbiter()
			if hierarchyPath != "" {
				if err := arbiter.LoadHierarchyFile(hierarchyPath); err != nil {
					return fmt.Errorf("load resource hierarchy: %w", err)
				}
			}
			mutexes := exec.NewMutexRegistry()

			executive := exec.NewExecutive(nil, arbiter, mutexes)

			if len(policyDirs) > 0 {
				engine, err := policy.NewEngine(logger)
				if err != nil {
					return fmt.Errorf("create policy engine: %w", err)
				}
				if err := engine.LoadPolicies(ctx, policyDirs); err != nil {
					return fmt.Errorf("load policies: %w", err)
				}
				executive.SetPolicyValidator(engine)
			}

			var cache exec.StateCache
			if statePath != "" {
				st, err := store.New(ctx, store.Config{Path: statePath})
				if err != nil {
					return fmt.Errorf("open state store: %w", err)
				}
				defer st.Close()
				cache = store.NewLookupCache(st)
				executive.SetListener(store.NewStepLogger(st))
			} else {
				cache = exec.NewMemoryStateCache()
			}

			root, err := planio.LoadFile(ctx, planPath, cache)
			if err != nil {
				return err
			}

			iface, closeIface, err := buildTransport(ctx, transportConfig{
				kind:        transport,
				grpcTarget:  grpcTarget,
				sshHost:     sshHost,
				sshPort:     sshPort,
				sshUser:     sshUser,
				sshAuth:     sshAuth,
				sshKeyPath:  sshKeyPath,
				sshPassword: sshPassword,
			}, executive, logger)
			if err != nil {
				return err
			}
			defer closeIface()
			executive.SetExternalInterface(iface)

			if err := executive.AddPlan(root); err != nil {
				return fmt.Errorf("add plan: %w", err)
			}

			for executive.NeedsStep() {
				if maxCycles > 0 && executive.Cycle() >= maxCycles {
					return fmt.Errorf("run %s: exceeded max-cycles (%d) without reaching quiescence", runID, maxCycles)
				}
				if err := executive.Step(ctx); err != nil {
					return fmt.Errorf("step: %w", err)
				}
			}

			logger.Info().Uint64("cycle", executive.Cycle()).Msg("plan reached quiescence")
			printFinalStates(root, 0)
			return nil
		},
	}

	cmd.Flags().StringVar(&planPath, "plan", "", "path to a JSON plan document (required)")
	cmd.Flags().StringVar(&hierarchyPath, "resource-hierarchy", "", "path to a resource hierarchy file (see pkg/exec.Arbiter.LoadHierarchyFile)")
	cmd.Flags().StringSliceVar(&policyDirs, "policy-dir", nil, "directory of Rego policies validated before the plan is accepted (repeatable)")
	cmd.Flags().StringVar(&statePath, "state-db", "", "sqlite path for durable lookup state and step logging; in-memory if omitted")
	cmd.Flags().Uint64Var(&maxCycles, "max-cycles", 0, "abort the run if quiescence isn't reached within this many cycles (0 = unbounded)")

	cmd.Flags().StringVar(&transport, "transport", "local", "external interface: local, grpc, or ssh")
	cmd.Flags().StringVar(&grpcTarget, "grpc-target", "", "gRPC target address for --transport grpc")
	cmd.Flags().StringVar(&sshHost, "ssh-host", "", "remote host for --transport ssh")
	cmd.Flags().IntVar(&sshPort, "ssh-port", 22, "remote port for --transport ssh")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "", "remote user for --transport ssh")
	cmd.Flags().StringVar(&sshAuth, "ssh-auth", "key", "ssh auth method: password, key, or agent")
	cmd.Flags().StringVar(&sshKeyPath, "ssh-key", "", "private key path for --ssh-auth key")
	cmd.Flags().StringVar(&sshPassword, "ssh-password", "", "password for --ssh-auth password")

	_ = cmd.MarkFlagRequired("plan")

	return cmd
}

type transportConfig struct {
	kind        string
	grpcTarget  string
	sshHost     string
	sshPort     int
	sshUser     string
	sshAuth     string
	sshKeyPath  string
	sshPassword string
}

// buildTransport constructs the exec.ExternalInterface named by cfg.kind,
// along with a cleanup func to run once the executive no longer needs it.
func buildTransport(ctx context.Context, cfg transportConfig, sink callbackSink, logger zerolog.Logger) (exec.ExternalInterface, func(), error) {
	switch strings.ToLower(cfg.kind) {
	case "", "local":
		return newLocalInterface(sink, logger), func() {}, nil
	case "grpc":
		if cfg.grpcTarget == "" {
			return nil, nil, fmt.Errorf("--transport grpc requires --grpc-target")
		}
		client, err := grpcexec.NewClient(ctx, cfg.grpcTarget, sink, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("dial grpc target %s: %w", cfg.grpcTarget, err)
		}
		return client, func() { _ = client.Close() }, nil
	case "ssh":
		if cfg.sshHost == "" || cfg.sshUser == "" {
			return nil, nil, fmt.Errorf("--transport ssh requires --ssh-host and --ssh-user")
		}
		sshCfg := &sshexec.Config{
			Host:              cfg.sshHost,
			Port:              cfg.sshPort,
			User:              cfg.sshUser,
			AuthMethod:        sshexec.AuthMethod(cfg.sshAuth),
			PrivateKeyPath:    cfg.sshKeyPath,
			Password:          cfg.sshPassword,
			ConnectionTimeout: 30 * time.Second,
		}
		client, err := sshexec.NewClient(sshCfg, sink, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create ssh client: %w", err)
		}
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("connect to %s: %w", cfg.sshHost, err)
		}
		return client, func() { _ = client.Disconnect() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q (want local, grpc, or ssh)", cfg.kind)
	}
}

func printFinalStates(n *exec.Node, depth int) {
	fmt.Printf("%s%s [%s] state=%s outcome=%s\n", strings.Repeat("  ", depth), n.ID, n.Type, n.State, n.Outcome)
	for _, c := range n.Children {
		printFinalStates(c, depth+1)
	}
}
