// Command federator-drv runs a Temporal worker that drives the
// plan -> consult -> execute pipeline (SPEC_FULL.md §4.7) for one
// federation location: it loads the location's infra file, dials every
// collaborator it names, and polls a Temporal task queue for
// orchestrate.RunWorkflow executions until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/worker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"goa.design/clue/log"

	"goa.design/federator/execclient"
	"goa.design/federator/infra"
	"goa.design/federator/orchestrate"
	"goa.design/federator/planner"
	"goa.design/federator/planner/sessionstore/redisstore"
	"goa.design/federator/policy"
	"goa.design/federator/telemetry"
)

func main() {
	var (
		infraPathF  = flag.String("infra", "infra.yaml", "path to this location's infra file (spec.md §6)")
		locationF   = flag.String("location", "", "this worker's own location id within the infra file")
		redisAddrF  = flag.String("redis", "localhost:6379", "redis address backing the planner's session store")
		temporalF   = flag.String("temporal", "localhost:7233", "Temporal frontend host:port")
		namespaceF  = flag.String("namespace", "default", "Temporal namespace")
		taskQueueF  = flag.String("task-queue", "federator-orchestrate", "Temporal task queue to poll")
		registryURL = flag.String("registry", "", "this location's own data/package registry base URL")
		dbgF        = flag.Bool("debug", false, "log request/response bodies and debug-level events")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	if *locationF == "" {
		log.Fatalf(ctx, fmt.Errorf("missing required flag"), "-location is required")
	}

	infraFile, err := infra.LoadInfraFile(*infraPathF)
	if err != nil {
		log.Fatalf(ctx, err, "failed to load infra file %s", *infraPathF)
	}

	checkers := make(map[string]policy.WorkflowChecker, len(infraFile))
	registries := make(map[string]policy.TransferChecker, len(infraFile))
	for id, loc := range infraFile {
		conn, err := dialDelegate(loc.Delegate)
		if err != nil {
			log.Fatalf(ctx, err, "failed to dial delegate for location %s", id)
		}
		checkers[id] = infra.NewCheckerClient(conn)
		registries[id] = infra.NewHTTPClient(loc.Registry)
	}
	locations := policy.NewStaticLocations(checkers, registries)

	ownLoc, ok := infraFile[*locationF]
	if !ok {
		log.Fatalf(ctx, fmt.Errorf("location not found"), "location %q is not present in %s", *locationF, *infraPathF)
	}
	execConn, err := dialDelegate(ownLoc.Delegate)
	if err != nil {
		log.Fatalf(ctx, err, "failed to dial own delegate %s", ownLoc.Delegate)
	}
	execStarter := execclient.NewExecutionStarter(infra.NewExecutionClient(execConn))
	execClient := execclient.New(execStarter, execclient.WithLogger(telemetry.NewClueLogger()), execclient.WithTracer(telemetry.NewClueTracer()))

	registryBase := *registryURL
	if registryBase == "" {
		registryBase = ownLoc.Registry
	}
	httpClient := infra.NewHTTPClient(registryBase)
	dataIdx := infra.NewDataIndexClient(httpClient)
	if err := dataIdx.Refresh(ctx); err != nil {
		log.Fatalf(ctx, err, "failed to fetch initial data index from %s", registryBase)
	}
	capClient := infra.NewCapabilityClient(httpClient)

	rdb := redis.NewClient(&redis.Options{Addr: *redisAddrF})
	sessions := redisstore.New(rdb, "federator:sessions:")

	p := planner.New(dataIdx, capClient, infraFile.Locations(), planner.WithSessionStore(sessions))

	activities := &orchestrate.Activities{
		Planner:    p,
		Locations:  locations,
		ExecClient: execClient,
	}

	temporalClient, err := orchestrate.NewClient(*temporalF, *namespaceF)
	if err != nil {
		log.Fatalf(ctx, err, "failed to connect to Temporal at %s", *temporalF)
	}
	defer temporalClient.Close()

	w := orchestrate.NewWorker(temporalClient, *taskQueueF, activities)

	log.Print(ctx, log.KV{K: "location", V: *locationF}, log.KV{K: "task-queue", V: *taskQueueF})

	// worker.InterruptCh delivers SIGINT/SIGTERM to Run itself, which then
	// drains in-flight activities before returning.
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf(ctx, err, "worker stopped with an error")
	}
}

// dialDelegate connects to a "grpc://" or "grpcs://" delegate address.
func dialDelegate(addr string) (*grpc.ClientConn, error) {
	target, creds, err := splitDelegateScheme(addr)
	if err != nil {
		return nil, err
	}
	return grpc.NewClient(target, grpc.WithTransportCredentials(creds))
}

func splitDelegateScheme(addr string) (target string, creds credentials.TransportCredentials, err error) {
	switch {
	case len(addr) > len("grpcs://") && addr[:len("grpcs://")] == "grpcs://":
		return addr[len("grpcs://"):], credentials.NewTLS(nil), nil
	case len(addr) > len("grpc://") && addr[:len("grpc://")] == "grpc://":
		return addr[len("grpc://"):], insecure.NewCredentials(), nil
	default:
		return "", nil, fmt.Errorf("federator-drv: delegate address %q must use grpc:// or grpcs://", addr)
	}
}
