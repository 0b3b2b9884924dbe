// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
)

// HookFunc is a function that runs after the inner runtime completes.
type HookFunc func(context.Context) error

// HookRegistry collects post-run hooks during application initialization.
// Hooks are executed in the order they are registered.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers a hook to be executed after the inner runtime completes.
// All hooks will run even if the runtime or previous hooks fail.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

type hookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run executes the inner runtime and then runs all registered hooks.
// Errors from the runtime and hooks are collected and joined.
func (rt hookRuntime) Run(ctx context.Context) error {
	runtimeErr := rt.inner.Run(ctx)

	var hookErrors error
	for _, hook := range rt.hooks {
		if err := hook(ctx); err != nil {
			hookErrors = errors.Join(hookErrors, err)
		}
	}

	return errors.Join(runtimeErr, hookErrors)
}

// WithHooks wraps a builder function with post-run hook support.
// The provided function receives a [HookRegistry], allowing it to register
// cleanup hooks during initialization. After the inner runtime completes,
// all registered hooks are executed in the order they were registered.
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[hookRuntime] {
	return BuilderFunc[hookRuntime](func(ctx context.Context) (hookRuntime, error) {
		registry := &HookRegistry{}

		inner, err := f(ctx, registry)
		if err != nil {
			return hookRuntime{}, err
		}

		return hookRuntime{
			inner: inner,
			hooks: registry.hooks,
		}, nil
	})
}
