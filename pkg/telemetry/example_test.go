package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/planexec/planexec/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Example_basicSetup demonstrates basic telemetry setup.
func Example_basicSetup() {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceName = "planexec"
	cfg.ServiceVersion = "1.0.0"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	if err := tel.StartMetricsServer(); err != nil {
		panic(err)
	}

	ctx := tel.WithContext(context.Background())

	logger := telemetry.FromContext(ctx)
	logger.Info("Executive started")

	// Output can vary, so we don't specify output for this example
}

// Example_structuredLogging demonstrates structured logging features.
func Example_structuredLogging() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	logger := tel.Logger.NewComponentLogger("executive")

	logger = logger.WithFields(map[string]interface{}{
		"run_id":  "run-123",
		"node_id": "drill-node",
	})

	logger.Debug("Entering EXECUTING")
	logger.Info("Command dispatched")
	logger.Warn("Resource arbitration denied")

	err := fmt.Errorf("interface timeout")
	logger.WithError(err).Error("Command dispatch failed")

	// Output varies, no output specified
}

// Example_distributedTracing demonstrates distributed tracing usage.
func Example_distributedTracing() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "stdout"

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ctx, span := tel.Tracer.Start(ctx, "executive.step")
	defer span.End()

	span.SetAttributes(
		attribute.String("plan.id", "plan-789"),
		attribute.Int64("cycle", 5),
	)

	span.AddEvent("quiescence.reached")

	ctx, childSpan := tel.Tracer.Start(ctx, "node.execute")
	defer childSpan.End()

	childSpan.SetAttributes(
		attribute.String("node.id", "drill-node"),
		attribute.String("node.type", "Command"),
	)

	time.Sleep(10 * time.Millisecond)

	telemetry.RecordSuccess(childSpan)

	// Output varies, no output specified
}

// Example_metricsCollection demonstrates metrics collection.
func Example_metricsCollection() {
	cfg := telemetry.DefaultConfig()
	cfg.Metrics.Enabled = true

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Metrics.RecordRunStarted("operator@example.com")

	start := time.Now()
	time.Sleep(50 * time.Millisecond)
	duration := time.Since(start)

	tel.Metrics.RecordRunCompleted("succeeded", duration)

	tel.Metrics.RecordNodeTransition("Command", "EXECUTING")
	tel.Metrics.RecordNodeFinished("Command", "SUCCESS", 25*time.Millisecond)

	tel.Metrics.RecordCommandDispatched("drill.run", 15*time.Millisecond)

	tel.Metrics.RecordError("interface", "TIMEOUT")

	tel.Metrics.SetArbiterAllocated("battery", 0.7)
	tel.Metrics.SetQueueDepth("pending", 2)

	fmt.Println("Metrics recorded successfully")
	// Output: Metrics recorded successfully
}

// Example_eventPublishing demonstrates event publishing and subscription.
func Example_eventPublishing() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false // Synchronous for example

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
	}, nil) // No filter, receive all events

	tel.Events.PublishRunStarted("run-123", "operator@example.com")
	tel.Events.PublishNodeStarted("run-123", "drill-node", "Command")
	tel.Events.PublishNodeCompleted("run-123", "drill-node", 25*time.Millisecond)

	// Output varies due to async nature, no output specified
}

// Example_runInstrumentation demonstrates instrumenting a complete run.
func Example_runInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	cfg.Tracing.Exporter = "none" // the stdout exporter would print spans
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	runID := "run-123"
	user := "operator@example.com"
	ctx = telemetry.WithRunContext(ctx, runID, user)

	executeRun(ctx, runID)

	telemetry.EndRunContext(ctx, runID, "succeeded", nil)

	fmt.Println("Run instrumentation complete")
	// Output: Run instrumentation complete
}

func executeRun(ctx context.Context, runID string) {
	nodeID := "drill-node"
	nodeType := "Command"

	ctx = telemetry.WithNodeContext(ctx, runID, nodeID, nodeType)

	logger := telemetry.FromContext(ctx)
	logger.Info("Executing node")

	time.Sleep(10 * time.Millisecond)

	telemetry.EndNodeContext(ctx, runID, nodeID, nodeType, "SUCCESS", nil)
}

// Example_commandInstrumentation demonstrates instrumenting command dispatch.
func Example_commandInstrumentation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Tracing.Exporter = "none" // the stdout exporter would print spans
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	err := telemetry.RecordCommandOperation(ctx, "drill-node", "drill.run", func() error {
		time.Sleep(15 * time.Millisecond)
		return nil
	})

	if err == nil {
		fmt.Println("Command dispatch completed successfully")
	}

	// Output: Command dispatch completed successfully
}

// Example_instrumentedOperation demonstrates using the InstrumentedContext helper.
func Example_instrumentedOperation() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	cfg.Tracing.Exporter = "none" // the stdout exporter would print spans
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ic := telemetry.StartOperation(ctx, "validate_plan",
		attribute.String("config.path", "/etc/planexec/config.yaml"),
	)
	defer ic.End(nil)

	ic.Logger.Info("Validating plan")

	time.Sleep(5 * time.Millisecond)

	ic.Logger.Debug("Plan validation complete")

	fmt.Println("Operation instrumentation complete")
	// Output: Operation instrumentation complete
}

// Example_eventFiltering demonstrates event filtering.
func Example_eventFiltering() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.Enabled = true
	cfg.Events.EnableAsync = false

	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Important event: %s\n", event.Type)
	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))

	tel.Events.Subscribe(func(event telemetry.Event) {
		fmt.Printf("Arbitration event: %s\n", event.Message)
	}, telemetry.FilterByType("arbitration.denied"))

	tel.Events.PublishRunStarted("run-123", "operator") // Info - filtered by level filter
	tel.Events.PublishArbitrationDenied("drill-node", "battery") // Warning - passes level filter
	tel.Events.PublishRunFailed("run-123", "error")              // Error - passes level filter

	// Output varies, no output specified
}

// Example_productionConfiguration demonstrates production-ready configuration.
func Example_productionConfiguration() {
	cfg := telemetry.ProductionConfig()

	cfg.ServiceName = "planexec"
	cfg.ServiceVersion = "1.2.3"
	cfg.Environment = "production"

	cfg.Tracing.Exporter = "otlp"
	cfg.Tracing.Endpoint = "otel-collector.monitoring.svc.cluster.local:4317"
	cfg.Tracing.SamplingRate = 0.1 // 10% sampling
	cfg.Tracing.Insecure = false   // Use TLS in production

	cfg.Metrics.ListenAddress = ":9090"
	cfg.Metrics.Namespace = "planexec"

	cfg.Events.BufferSize = 10000
	cfg.Events.FlushInterval = 5 * time.Second

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	fmt.Println("Production configuration validated")
	// Output: Production configuration validated
}

// Example_errorRecording demonstrates error recording with proper classification.
func Example_errorRecording() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	cfg.Tracing.Exporter = "none" // the stdout exporter would print spans
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	ctx := tel.WithContext(context.Background())

	ctx, span := tel.Tracer.Start(ctx, "risky_operation")
	defer span.End()

	err := fmt.Errorf("mutex acquire timeout")

	if err != nil {
		telemetry.RecordError(span, err)

		tel.Metrics.RecordError("internal", "MUTEX_TIMEOUT")

		logger := telemetry.FromContext(ctx)
		logger.WithError(err).Error("Operation failed")
	}

	fmt.Println("Error recording complete")
	// Output: Error recording complete
}

// Example_multipleComponents demonstrates telemetry in a multi-component system.
func Example_multipleComponents() {
	cfg := telemetry.DevelopmentConfig()
	cfg.Logging.Output = "stderr" // keep log lines out of the checked output
	tel, _ := telemetry.NewTelemetry(cfg)
	defer tel.Shutdown(context.Background())

	executiveLogger := tel.Logger.NewComponentLogger("executive")
	arbiterLogger := tel.Logger.NewComponentLogger("arbiter")
	transportLogger := tel.Logger.NewComponentLogger("transport")

	executiveLogger.Info("Executive initialized")
	arbiterLogger.Info("Resource hierarchy loaded")
	transportLogger.Info("External interface connected")

	fmt.Println("Multi-component logging complete")
	// Output: Multi-component logging complete
}
