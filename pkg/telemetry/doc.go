// Package telemetry provides observability instrumentation for the
// planexec plan executive.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring and debugging the quiescence-loop executive.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for queue depths, arbiter
//     decisions, and command dispatch
//  4. Event Publishing - Async event system for node lifecycle and arbiter
//     denials
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "planexec"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
//	logger := tel.Logger.NewComponentLogger("executive")
//	logger = logger.WithRunID("run-123").WithNodeID("drill-node")
//	logger.Info("Starting node execution")
//	logger.WithError(err).Error("Command dispatch failed")
//
// # Distributed Tracing
//
//	ctx, span := tel.Tracer.Start(ctx, "executive.step")
//	defer span.End()
//	span.SetAttributes(attribute.String("node.id", nodeID))
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), stdout (development), none (testing)
//
// # Metrics
//
//	tel.Metrics.RecordRunStarted("operator@example.com")
//	tel.Metrics.RecordNodeTransition("Command", "EXECUTING")
//	tel.Metrics.RecordArbiterDecision("battery", "rejected")
//	tel.Metrics.SetQueueDepth("pending", 3)
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
//	tel.Events.PublishNodeStarted(runID, nodeID, "Command")
//	tel.Events.PublishArbitrationDenied(nodeID, "battery")
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// # Context Helpers
//
//	ctx = telemetry.WithRunContext(ctx, runID, user)
//	defer telemetry.EndRunContext(ctx, runID, status, err)
//
//	ctx = telemetry.WithNodeContext(ctx, runID, nodeID, "Command")
//	defer telemetry.EndNodeContext(ctx, runID, nodeID, "Command", outcome, err)
//
//	err := telemetry.RecordCommandOperation(ctx, nodeID, "drill.run", func() error {
//	    return iface.ExecuteCommand(ctx, cmd)
//	})
package telemetry
