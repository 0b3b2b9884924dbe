// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wires the order service together: the consumer engine, the
// broker connectivity monitor, and the HTTP query API.
package app

import (
	"context"
	"net/http"

	"github.com/z5labs/orderflow/app"
	"github.com/z5labs/orderflow/health"
	"github.com/z5labs/orderflow/httpserver"
	"github.com/z5labs/orderflow/kafka"
	"github.com/z5labs/orderflow/orders"
	"github.com/z5labs/orderflow/orders/endpoint"
	"github.com/z5labs/orderflow/rest"

	"github.com/sourcegraph/conc/pool"
)

// BuildRuntime assembles the order service runtime.
//
// The connectivity monitor owns the consumer engine's lifecycle: the poll
// loop starts once the broker is reachable and stops while it is not. The
// monitor also backs the readiness endpoint, so the service only reports
// ready while the broker answers metadata probes.
func BuildRuntime(ctx context.Context, hooks *app.HookRegistry, srv httpserver.Server) (app.Runtime, error) {
	store := orders.NewStore()
	processor := orders.NewProcessor(store, orders.NewOffsetIndex())

	engine, err := kafka.NewEngine(ctx, kafka.EngineConfig{
		Brokers:          kafka.BrokersFromEnv(),
		GroupID:          kafka.GroupIDFromEnv(),
		Topic:            kafka.TopicFromEnv(),
		DLTTopic:         kafka.DLTTopicFromEnv(),
		SessionTimeout:   kafka.SessionTimeoutFromEnv(),
		RebalanceTimeout: kafka.RebalanceTimeoutFromEnv(),

		ProcessMaxRetries:     kafka.ProcessMaxRetriesFromEnv(),
		ProcessBackoffInitial: kafka.ProcessBackoffInitialFromEnv(),
		ProcessBackoffMax:     kafka.ProcessBackoffMaxFromEnv(),
	}, processor)
	if err != nil {
		return nil, err
	}
	hooks.OnPostRun(func(ctx context.Context) error {
		engine.Stop()
		return nil
	})

	monitor, err := kafka.NewMonitor(ctx, kafka.MonitorConfig{
		Brokers:      kafka.BrokersFromEnv(),
		Topic:        kafka.TopicFromEnv(),
		Interval:     kafka.ProbeIntervalFromEnv(),
		ProbeTimeout: kafka.ProbeTimeoutFromEnv(),
	}, engine)
	if err != nil {
		return nil, err
	}

	var live health.Binary
	live.MarkHealthy()

	router := rest.NewRouter(
		"order service",
		"v1.0.0",
		rest.Liveness(&live),
		rest.Readiness(monitor),
	)

	query := orders.NewQuery(store)
	endpoint.OrderDetails(router, query)
	endpoint.ListOrders(router, query)

	httpApp, err := httpserver.Build(srv, app.BuilderFunc[http.Handler](func(context.Context) (http.Handler, error) {
		return router, nil
	})).Build(ctx)
	if err != nil {
		return nil, err
	}

	return app.RuntimeFunc(func(ctx context.Context) error {
		p := pool.New().WithContext(ctx)
		p.Go(monitor.Run)
		p.Go(httpApp.Run)
		return p.Wait()
	}), nil
}
