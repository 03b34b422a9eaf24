package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crmsaas/internal/caching"
	"crmsaas/internal/config"
	"crmsaas/internal/provisioner"
	"crmsaas/internal/repositories"
	"crmsaas/internal/services"
	"crmsaas/internal/tenancy"
	"crmsaas/pkg/database"
	pkglog "crmsaas/pkg/logger"
)

// tenantctl is the operator tool for tenant lifecycle: registering tenants,
// provisioning or healing their schemas and inspecting the registry.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	control    *pgxpool.Pool
	registry   *tenancy.Registry
	prov       *provisioner.Provisioner
	tenantRepo repositories.TenantRepository
	tenantSvc  services.TenantService
	log        *zap.Logger
}

func (a *app) close() {
	a.registry.Close()
	a.control.Close()
	a.log.Sync()
}

func buildApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.ControlDSN == "" {
		return nil, errors.New("database.control_dsn is required (CRM_DATABASE_CONTROL_DSN)")
	}

	log, err := pkglog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 15*time.Second)
	control, err := database.NewPool(dialCtx, cfg.Database.ControlDSN)
	dialCancel()
	if err != nil {
		return nil, fmt.Errorf("connect control database: %w", err)
	}

	registry, err := tenancy.NewRegistry(cfg.Database.ControlDSN)
	if err != nil {
		control.Close()
		return nil, err
	}

	router := tenancy.NewRouter(control, registry)
	prov := provisioner.New(control, registry, log)
	tenantRepo := repositories.NewTenantRepo(router)
	cache := caching.NewRedisCacheService(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	tenantSvc := services.NewTenantService(tenantRepo, prov, cache, cfg.Database.TenantPrefix, log)

	return &app{
		control:    control,
		registry:   registry,
		prov:       prov,
		tenantRepo: tenantRepo,
		tenantSvc:  tenantSvc,
		log:        log,
	}, nil
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "tenantctl",
		Short:        "Manage tenants and their database schemas",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "directory containing config.yaml")

	root.AddCommand(
		newCreateCmd(&configPath),
		newProvisionCmd(&configPath),
		newListCmd(&configPath),
		newControlCmd(&configPath),
	)
	return root
}

func newCreateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Register a tenant and provision its database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			tenant, result, err := a.tenantSvc.Register(ctx, &services.RegisterTenantRequest{Name: args[0]})
			if err != nil {
				return err
			}
			fmt.Printf("tenant %s registered (database %s)\n", tenant.Name, tenant.DatabaseName)
			printResult(result)
			return nil
		},
	}
}

func newProvisionCmd(configPath *string) *cobra.Command {
	var (
		tenantName string
		all        bool
		createDB   bool
		fixFKs     bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Ensure tenant schemas match the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tenantName == "" && !all {
				return errors.New("either --tenant or --all is required")
			}

			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
			defer cancel()

			if all {
				results, err := a.tenantSvc.ProvisionAll(ctx)
				if err != nil {
					return err
				}
				for _, result := range results {
					printResult(result)
				}
				return nil
			}

			tenant, err := a.tenantRepo.GetByName(ctx, tenantName)
			if err != nil {
				return fmt.Errorf("tenant %q: %w", tenantName, err)
			}

			// Relaxation runs alone; a full catalog pass is a separate
			// invocation.
			if fixFKs {
				result, err := a.prov.RelaxForeignKeys(ctx, tenant.DatabaseName)
				if err != nil {
					return err
				}
				printResult(result)
				return nil
			}

			result, err := a.prov.EnsureSchema(ctx, tenant.DatabaseName)
			if errors.Is(err, provisioner.ErrDatabaseMissing) && createDB {
				if err := a.prov.CreateDatabase(ctx, tenant.DatabaseName); err != nil {
					return err
				}
				result, err = a.prov.EnsureSchema(ctx, tenant.DatabaseName)
			}
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantName, "tenant", "", "tenant name to provision")
	cmd.Flags().BoolVar(&all, "all", false, "provision every active tenant")
	cmd.Flags().BoolVar(&createDB, "create-db", false, "create the physical database when missing")
	cmd.Flags().BoolVar(&fixFKs, "fix-foreign-keys", false, "drop control-table foreign keys left over from single-database layouts")
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tenants",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			tenants, err := a.tenantRepo.List(ctx, 1000, 0)
			if err != nil {
				return err
			}
			for _, t := range tenants {
				state := "active"
				if !t.IsActive {
					state = "inactive"
				}
				fmt.Printf("%s\t%s\t%s\t%s\n", t.ID, t.Name, t.DatabaseName, state)
			}
			return nil
		},
	}
}

func newControlCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "control",
		Short: "Ensure the control database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			result, err := a.prov.EnsureControlSchema(ctx)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}

func printResult(r *provisioner.Result) {
	if r == nil {
		return
	}
	status := "ok"
	if !r.Success {
		status = "incomplete"
	}
	fmt.Printf("%s: %s\n", r.Database, status)
	if len(r.CreatedTables) > 0 {
		fmt.Printf("  created: %v\n", r.CreatedTables)
	}
	if len(r.AddedColumns) > 0 {
		fmt.Printf("  columns added: %v\n", r.AddedColumns)
	}
	if len(r.DroppedConstraints) > 0 {
		fmt.Printf("  constraints dropped: %v\n", r.DroppedConstraints)
	}
	if len(r.LedgerReconciled) > 0 {
		fmt.Printf("  ledger reconciled: %v\n", r.LedgerReconciled)
	}
	if len(r.MissingTables) > 0 {
		fmt.Printf("  missing: %v\n", r.MissingTables)
	}
	for _, se := range r.StatementErrors {
		fmt.Printf("  error on %s: %s\n", se.Table, se.Detail)
	}
}
