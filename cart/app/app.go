// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app wires the cart service together: the Kafka publisher, the
// local order store, the broker connectivity monitor, and the HTTP API.
package app

import (
	"context"
	"net/http"

	"github.com/z5labs/orderflow/app"
	"github.com/z5labs/orderflow/cart"
	"github.com/z5labs/orderflow/cart/endpoint"
	"github.com/z5labs/orderflow/health"
	"github.com/z5labs/orderflow/httpserver"
	"github.com/z5labs/orderflow/kafka"
	"github.com/z5labs/orderflow/rest"

	"github.com/sourcegraph/conc/pool"
)

// BuildRuntime assembles the cart service runtime.
//
// The connectivity monitor backs the readiness endpoint so the service only
// reports ready while the broker answers metadata probes. Publishing itself
// never consults the monitor; a publish against an unreachable broker fails
// fast through the circuit breaker instead.
func BuildRuntime(ctx context.Context, hooks *app.HookRegistry, srv httpserver.Server) (app.Runtime, error) {
	publisher, err := kafka.NewPublisher(ctx, kafka.PublisherConfig{
		Brokers:      kafka.BrokersFromEnv(),
		Topic:        kafka.TopicFromEnv(),
		DLTTopic:     kafka.DLTTopicFromEnv(),
		FallbackPath: kafka.FallbackPathFromEnv(),

		ProduceRequestTimeout: kafka.ProduceRequestTimeoutFromEnv(),
		RecordDeliveryTimeout: kafka.RecordDeliveryTimeoutFromEnv(),
		PublishTimeout:        kafka.PublishTimeoutFromEnv(),
	})
	if err != nil {
		return nil, err
	}
	hooks.OnPostRun(func(ctx context.Context) error {
		return publisher.Close()
	})

	monitor, err := kafka.NewMonitor(ctx, kafka.MonitorConfig{
		Brokers:      kafka.BrokersFromEnv(),
		Topic:        kafka.TopicFromEnv(),
		Interval:     kafka.ProbeIntervalFromEnv(),
		ProbeTimeout: kafka.ProbeTimeoutFromEnv(),
	})
	if err != nil {
		return nil, err
	}

	svc := cart.NewService(cart.NewStore(), publisher)

	var live health.Binary
	live.MarkHealthy()

	router := rest.NewRouter(
		"cart service",
		"v1.0.0",
		rest.Liveness(&live),
		rest.Readiness(monitor),
	)
	endpoint.CreateOrder(router, svc)
	endpoint.UpdateOrder(router, svc)

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
